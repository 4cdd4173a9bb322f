package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/promptlab/internal/project"
)

// handleListModels lists the registry's models, optionally filtered by
// provider.
func (s *Server) handleListModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider := request.GetString("provider", "")

	var b strings.Builder
	for _, m := range s.registry.Models() {
		if provider != "" && m.Provider != provider {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %s", m.ID, m.Provider, m.Name)
		if m.Capabilities.Streaming {
			b.WriteString(", streaming")
		}
		if m.Pricing != nil && m.Pricing.InputPerMillion > 0 {
			fmt.Fprintf(&b, ", $%.2f/$%.2f per 1M tokens", m.Pricing.InputPerMillion, m.Pricing.OutputPerMillion)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return mcp.NewToolResultText("No models registered."), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleListFrameworks loads the workspace and describes its frameworks.
func (s *Server) handleListFrameworks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := project.Load(s.projectDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading workspace: %v", err)), nil
	}
	if len(p.Frameworks) == 0 {
		return mcp.NewToolResultText("No frameworks found. Add markdown files under frameworks/."), nil
	}

	var b strings.Builder
	for _, fw := range p.Frameworks {
		fmt.Fprintf(&b, "## %s (%s)\n\n", fw.Title, fw.Name)
		if fw.Description != "" {
			b.WriteString(fw.Description + "\n")
		}
		for _, c := range fw.Components {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleListTestCases lists the workspace's questions.
func (s *Server) handleListTestCases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := project.Load(s.projectDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading workspace: %v", err)), nil
	}
	if len(p.TestCases) == 0 {
		return mcp.NewToolResultText("No test cases found. Add questions/test_cases.json."), nil
	}

	var b strings.Builder
	for _, tc := range p.TestCases {
		fmt.Fprintf(&b, "- [%s] %s (max score %d)\n", tc.ID, tc.Question, tc.MaxScore)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleRunHistory lists past runs from the history database.
func (s *Server) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("run history is not enabled"), nil
	}
	limit := request.GetInt("limit", 20)

	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing runs: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No runs recorded yet."), nil
	}

	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "- %s  %s  %d/%d tasks  $%.4f  (%s)\n",
			r.ID, r.Status, r.Completed, r.Total, r.Cost, r.StartedAt.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleRunResults returns the per-question rows for one run.
func (s *Server) handleRunResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("run history is not enabled"), nil
	}
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: run_id"), nil
	}

	run, err := s.history.GetRun(runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading run: %v", err)), nil
	}
	if run == nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %q not found", runID)), nil
	}

	results, err := s.history.RunResults(runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading results: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s), models %s/%s/%s\n\n", run.ID, run.Status, run.PromptModel, run.AnswerModel, run.ScoringModel)
	for _, r := range results {
		fmt.Fprintf(&b, "- loop %d, %s: %q scored %d/%d", r.Loop, r.Framework, r.Question, r.Score, r.MaxScore)
		if r.Error != "" {
			fmt.Fprintf(&b, " (error: %s)", r.Error)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
