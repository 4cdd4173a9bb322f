package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/promptlab/internal/eval"
	"github.com/ziadkadry99/promptlab/internal/mcptools"
	"github.com/ziadkadry99/promptlab/internal/progress"
	"github.com/ziadkadry99/promptlab/internal/project"
	"github.com/ziadkadry99/promptlab/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a prompt framework evaluation",
	Long: `Loads the evaluation workspace, generates a system prompt for each
framework, answers every test question with it and scores the answers.
Results land under the output directory, one folder per run.`,
	RunE: runEval,
}

func init() {
	runCmd.Flags().Int("loops", 0, "evaluation loops (overrides config)")
	runCmd.Flags().Float64("threshold", 0, "stop early once the loop average reaches this score percentage")
	runCmd.Flags().Int("max-loops", 0, "loop cap in threshold mode (overrides config)")
	runCmd.Flags().String("prompt-model", "", "model that generates system prompts")
	runCmd.Flags().String("answer-model", "", "model that answers the test questions")
	runCmd.Flags().String("scoring-model", "", "model that scores the answers")
	runCmd.Flags().String("project", "", "workspace directory (overrides config)")
	runCmd.Flags().String("out", "", "output directory for results (overrides config)")
	runCmd.Flags().Bool("no-history", false, "skip recording the run in the history database")
	rootCmd.AddCommand(runCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("project"); v != "" {
		cfg.ProjectDir = v
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := cmd.Flags().GetInt("loops"); v > 0 {
		cfg.Eval.Loops = v
	}
	if v, _ := cmd.Flags().GetFloat64("threshold"); v > 0 {
		cfg.Eval.Threshold = v
	}
	if v, _ := cmd.Flags().GetInt("max-loops"); v > 0 {
		cfg.Eval.MaxLoops = v
	}
	if v, _ := cmd.Flags().GetString("prompt-model"); v != "" {
		cfg.Eval.PromptModel = v
	}
	if v, _ := cmd.Flags().GetString("answer-model"); v != "" {
		cfg.Eval.AnswerModel = v
	}
	if v, _ := cmd.Flags().GetString("scoring-model"); v != "" {
		cfg.Eval.ScoringModel = v
	}

	proj, err := project.Load(cfg.ProjectDir)
	if err != nil {
		return fmt.Errorf("loading workspace %s: %w", cfg.ProjectDir, err)
	}
	if err := proj.Validate(); err != nil {
		return fmt.Errorf("workspace %s: %w", cfg.ProjectDir, err)
	}

	runCfg := eval.RunConfig{
		Project:    proj,
		Store:      store.New(cfg.OutputDir),
		Models:     eval.ModelRoles{Prompt: cfg.Eval.PromptModel, Answer: cfg.Eval.AnswerModel, Scoring: cfg.Eval.ScoringModel},
		Loops:      cfg.Eval.Loops,
		Threshold:  cfg.Eval.Threshold,
		MaxLoops:   cfg.Eval.MaxLoops,
		StageDelay: time.Duration(cfg.Eval.StageDelayMS) * time.Millisecond,
	}

	if cfg.MCPServerURL != "" {
		probeCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		inv, err := mcptools.Probe(probeCtx, cfg.MCPServerURL)
		cancel()
		if err != nil {
			warnf("MCP server %s unreachable: %v; continuing without tool context", cfg.MCPServerURL, err)
		} else {
			runCfg.ToolContext = inv.Context()
		}
	}

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		history, err := openHistory(cfg)
		if err != nil {
			warnf("%v; continuing without run history", err)
		} else if history != nil {
			defer history.Close()
			runCfg.Recorder = history
		}
	}

	// Ctrl-C cancels the run; it still finishes its bookkeeping and
	// reports a cancelled status.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := eval.NewRunner(newService(cfg)).Start(ctx, runCfg)
	if err != nil {
		return err
	}

	status := progress.Consume(run, progress.NewReporter())
	summary := run.Wait()

	fmt.Printf("\nRun %s %s\n", summary.RunID, status)
	fmt.Printf("  Results: %s\n", summary.RunDir)
	fmt.Printf("  Tasks:   %d/%d\n", summary.Completed, summary.Total)
	fmt.Printf("  Cost:    $%.4f\n", summary.TotalCost)
	fmt.Printf("  Took:    %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))

	if status == eval.StatusCancelled || status == eval.StatusFailed {
		return fmt.Errorf("run ended with status %s", status)
	}
	return nil
}
