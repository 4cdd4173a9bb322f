// Package mcptools probes an MCP server and folds its tool inventory
// into the context given to the prompt-generation model.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolInfo is one tool advertised by an MCP server.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Inventory is the result of probing an MCP server.
type Inventory struct {
	ServerName    string     `json:"serverName"`
	ServerVersion string     `json:"serverVersion"`
	Tools         []ToolInfo `json:"tools"`
}

// Probe connects to an MCP server over streamable HTTP, performs the
// initialize handshake and lists its tools.
func Probe(ctx context.Context, url string) (*Inventory, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %s: %w", url, err)
	}
	return ProbeClient(ctx, c)
}

// ProbeClient runs the handshake and tool listing over an established
// client. The client is closed before returning.
func ProbeClient(ctx context.Context, c *client.Client) (*Inventory, error) {
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MCP transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "promptlab", Version: "dev"}
	initResult, err := c.Initialize(ctx, initReq)
	if err != nil {
		return nil, fmt.Errorf("MCP initialize: %w", err)
	}

	inv := &Inventory{
		ServerName:    initResult.ServerInfo.Name,
		ServerVersion: initResult.ServerInfo.Version,
	}

	// Servers without the tools capability reject tools/list; an empty
	// inventory is the right answer there, not an error.
	if initResult.Capabilities.Tools == nil {
		return inv, nil
	}

	toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}
	for _, tool := range toolsResult.Tools {
		inv.Tools = append(inv.Tools, ToolInfo{Name: tool.Name, Description: tool.Description})
	}
	return inv, nil
}

// Context renders the inventory as a markdown block for inclusion in
// the prompt-generation context.
func (inv *Inventory) Context() string {
	if inv == nil || len(inv.Tools) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Available MCP tools (%s)\n\n", inv.ServerName)
	b.WriteString("The generated prompt may assume the assistant can call these tools:\n")
	for _, tool := range inv.Tools {
		if tool.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", tool.Name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
