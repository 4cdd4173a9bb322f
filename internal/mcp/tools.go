package mcp

import "github.com/mark3labs/mcp-go/mcp"

// listModelsTool defines the list_models MCP tool.
var listModelsTool = mcp.NewTool("list_models",
	mcp.WithDescription("List the registered LLM models with their providers, capabilities and pricing."),
	mcp.WithString("provider",
		mcp.Description("Only list models from this provider"),
		mcp.Enum("openai", "google", "anthropic"),
	),
)

// listFrameworksTool defines the list_frameworks MCP tool.
var listFrameworksTool = mcp.NewTool("list_frameworks",
	mcp.WithDescription("List the system-prompt frameworks in the evaluation workspace, with titles and core components."),
)

// listTestCasesTool defines the list_test_cases MCP tool.
var listTestCasesTool = mcp.NewTool("list_test_cases",
	mcp.WithDescription("List the evaluation questions and their maximum scores."),
)

// runHistoryTool defines the run_history MCP tool.
var runHistoryTool = mcp.NewTool("run_history",
	mcp.WithDescription("List past evaluation runs with status, task counts and cost."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of runs to return (default 20)"),
	),
)

// runResultsTool defines the run_results MCP tool.
var runResultsTool = mcp.NewTool("run_results",
	mcp.WithDescription("Get the per-question scores of one evaluation run."),
	mcp.WithString("run_id",
		mcp.Required(),
		mcp.Description("Run identifier from run_history"),
	),
)
