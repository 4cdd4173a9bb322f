package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/promptlab/internal/mcp"
	"github.com/ziadkadry99/promptlab/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the model catalog, the evaluation workspace and run history to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		history, err := openHistory(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v; run history tools disabled\n", err)
		} else if history != nil {
			defer history.Close()
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "promptlab MCP server started on stdio (workspace=%s)\n", cfg.ProjectDir)

		srv := mcpserver.NewServer(newService(cfg).Registry(), cfg.ProjectDir, store.New(cfg.OutputDir), history)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
