package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/promptlab/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and test the model catalog",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available models",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")

		registry := llm.DefaultRegistry()
		for _, m := range registry.Models() {
			if provider != "" && m.Provider != provider {
				continue
			}
			line := fmt.Sprintf("%-32s %s", m.ID, m.Provider)
			if m.Pricing != nil {
				line += fmt.Sprintf("  $%.2f in / $%.2f out per 1M tokens", m.Pricing.InputPerMillion, m.Pricing.OutputPerMillion)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var modelsTestCmd = &cobra.Command{
	Use:   "test <model>",
	Short: "Send a connectivity probe to a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		result := newService(cfg).TestModel(cmd.Context(), args[0])
		if !result.Success {
			return fmt.Errorf("%s: %s (%s)", args[0], result.Error.Message, result.Error.Code)
		}
		fmt.Printf("%s responded in %s (%d attempt(s), $%.6f)\n", args[0], result.Duration.Round(time.Millisecond), result.Attempts, result.Cost)
		return nil
	},
}

var modelsCompareCmd = &cobra.Command{
	Use:   "compare <model> [model...]",
	Short: "Send one prompt to several models and print each reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		if prompt == "" {
			return fmt.Errorf("--prompt is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		results := newService(cfg).CompareModels(cmd.Context(), args, []llm.ChatMessage{llm.UserMessage(prompt)}, llm.GenerationParams{})
		for _, r := range results {
			fmt.Printf("=== %s ===\n", r.Model)
			if !r.Success {
				fmt.Printf("error: %s (%s)\n\n", r.Error.Message, r.Error.Code)
				continue
			}
			fmt.Printf("%s\n", strings.TrimSpace(r.Response.Content))
			fmt.Printf("[%s, $%.6f]\n\n", r.Duration.Round(time.Millisecond), r.Cost)
		}
		return nil
	},
}

func init() {
	modelsListCmd.Flags().String("provider", "", "only list models from this provider")
	modelsCompareCmd.Flags().String("prompt", "", "prompt to send to every model")
	modelsCmd.AddCommand(modelsListCmd, modelsTestCmd, modelsCompareCmd)
	rootCmd.AddCommand(modelsCmd)
}
