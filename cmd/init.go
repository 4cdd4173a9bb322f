package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/promptlab/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize promptlab configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure promptlab, writes .promptlab.yml and scaffolds the evaluation workspace directories.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}
		return scaffoldWorkspace(cfg.ProjectDir)
	},
}

// scaffoldWorkspace creates the workspace layout the run command
// expects. Existing files are left alone.
func scaffoldWorkspace(dir string) error {
	for _, sub := range []string{"frameworks", "questions", "knowledge"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	casesPath := filepath.Join(dir, "questions", "test_cases.json")
	if _, err := os.Stat(casesPath); os.IsNotExist(err) {
		if err := os.WriteFile(casesPath, []byte("[]\n"), 0644); err != nil {
			return fmt.Errorf("creating %s: %w", casesPath, err)
		}
	}

	fmt.Printf("Workspace scaffolded under %s\n", dir)
	fmt.Println("Add framework markdown files to frameworks/ and questions with `promptlab questions add`.")
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
