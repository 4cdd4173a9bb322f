package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past evaluation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		history, err := openHistory(cfg)
		if err != nil {
			return err
		}
		if history == nil {
			return fmt.Errorf("run history is disabled (history_db is empty)")
		}
		defer history.Close()

		runs, err := history.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-18s  %4d/%-4d tasks  $%.4f  %s\n",
				r.StartedAt.Format(time.DateTime), r.Status, r.Completed, r.Total, r.Cost, r.ID)
		}
		return nil
	},
}

var historyResultsCmd = &cobra.Command{
	Use:   "results <run-id>",
	Short: "Show the result rows of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		history, err := openHistory(cfg)
		if err != nil {
			return err
		}
		if history == nil {
			return fmt.Errorf("run history is disabled (history_db is empty)")
		}
		defer history.Close()

		run, err := history.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("unknown run %s", args[0])
		}

		results, err := history.RunResults(run.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s (%s), results in %s\n\n", run.ID, run.Status, run.RunDir)
		for _, res := range results {
			fmt.Printf("loop %d  %-20s  %2d/%-2d  %s\n", res.Loop, res.Framework, res.Score, res.MaxScore, res.Question)
			if res.Error != "" {
				fmt.Printf("        error: %s\n", res.Error)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	historyCmd.AddCommand(historyResultsCmd)
	rootCmd.AddCommand(historyCmd)
}
