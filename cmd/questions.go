package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/promptlab/internal/project"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the workspace's evaluation questions",
}

func loadWorkspace() (*project.Project, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	proj, err := project.Load(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("loading workspace %s: %w", cfg.ProjectDir, err)
	}
	return proj, nil
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the evaluation questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := loadWorkspace()
		if err != nil {
			return err
		}
		if len(proj.TestCases) == 0 {
			fmt.Println("No questions yet. Add one with `promptlab questions add`.")
			return nil
		}
		for _, tc := range proj.TestCases {
			fmt.Printf("%-36s  (max %d)  %s\n", tc.ID, tc.MaxScore, tc.Question)
		}
		return nil
	},
}

var questionsAddCmd = &cobra.Command{
	Use:   "add <question>",
	Short: "Add an evaluation question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxScore, _ := cmd.Flags().GetInt("max-score")
		answer, _ := cmd.Flags().GetString("answer")

		proj, err := loadWorkspace()
		if err != nil {
			return err
		}
		created, err := proj.AddTestCase(project.TestCase{Question: args[0], Answer: answer, MaxScore: maxScore})
		if err != nil {
			return err
		}
		fmt.Printf("Added question %s\n", created.ID)
		return nil
	},
}

var questionsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an evaluation question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := loadWorkspace()
		if err != nil {
			return err
		}
		if err := proj.RemoveTestCase(args[0]); err != nil {
			return err
		}
		fmt.Println("Removed.")
		return nil
	},
}

func init() {
	questionsAddCmd.Flags().Int("max-score", 10, "maximum score for the question")
	questionsAddCmd.Flags().String("answer", "", "reference answer the scoring model grades against")
	questionsCmd.AddCommand(questionsListCmd, questionsAddCmd, questionsRemoveCmd)
	rootCmd.AddCommand(questionsCmd)
}
