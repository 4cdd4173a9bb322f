// Package mcp exposes the evaluation workspace over the Model Context
// Protocol, so agent tooling can inspect models, frameworks, test
// cases and run history.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/promptlab/internal/db"
	"github.com/ziadkadry99/promptlab/internal/llm"
	"github.com/ziadkadry99/promptlab/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server over a promptlab workspace.
type Server struct {
	registry   *llm.Registry
	projectDir string
	store      *store.Store
	history    *db.DB
	mcp        *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
// history may be nil when run history is disabled.
func NewServer(registry *llm.Registry, projectDir string, st *store.Store, history *db.DB) *Server {
	s := &Server{
		registry:   registry,
		projectDir: projectDir,
		store:      st,
		history:    history,
	}

	s.mcp = server.NewMCPServer(
		"promptlab",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listModelsTool, s.handleListModels)
	s.mcp.AddTool(listFrameworksTool, s.handleListFrameworks)
	s.mcp.AddTool(listTestCasesTool, s.handleListTestCases)
	s.mcp.AddTool(runHistoryTool, s.handleRunHistory)
	s.mcp.AddTool(runResultsTool, s.handleRunResults)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
