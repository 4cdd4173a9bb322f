package mcptools

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newToolServer(t *testing.T, tools ...string) *client.Client {
	t.Helper()
	srv := server.NewMCPServer("toolbox", "1.0.0")
	for _, name := range tools {
		srv.AddTool(
			mcp.NewTool(name, mcp.WithDescription("does "+name)),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("ok"), nil
			},
		)
	}
	c, err := client.NewInProcessClient(srv)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestProbeListsTools(t *testing.T) {
	c := newToolServer(t, "search", "fetch")

	inv, err := ProbeClient(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if inv.ServerName != "toolbox" {
		t.Errorf("expected server name toolbox, got %q", inv.ServerName)
	}
	if len(inv.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(inv.Tools))
	}
	// The server may list tools in any order.
	byName := make(map[string]string)
	for _, tool := range inv.Tools {
		byName[tool.Name] = tool.Description
	}
	for _, name := range []string{"search", "fetch"} {
		if byName[name] != "does "+name {
			t.Errorf("tool %s missing or mislabelled: %q", name, byName[name])
		}
	}
}

func TestInventoryContext(t *testing.T) {
	c := newToolServer(t, "search")
	inv, err := ProbeClient(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}

	ctx := inv.Context()
	if !strings.Contains(ctx, "Available MCP tools (toolbox)") {
		t.Errorf("context missing header: %q", ctx)
	}
	if !strings.Contains(ctx, "- search: does search") {
		t.Errorf("context missing tool line: %q", ctx)
	}
}

func TestEmptyInventoryContext(t *testing.T) {
	c := newToolServer(t)
	inv, err := ProbeClient(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if got := inv.Context(); got != "" {
		t.Errorf("expected empty context for no tools, got %q", got)
	}

	var nilInv *Inventory
	if got := nilInv.Context(); got != "" {
		t.Errorf("expected empty context for nil inventory, got %q", got)
	}
}
