package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/promptlab/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "promptlab",
	Short: "Prompt framework evaluation across LLM providers",
	Long: `Promptlab generates system prompts from framework descriptions, answers
your test questions with them and scores the answers, looping until the
results are good enough. It speaks to OpenAI, Google and Anthropic
models through one adapter layer.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
