package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/promptlab/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the promptlab HTTP server",
	Long:  `Starts the REST API for starting and watching evaluation runs, testing models and editing test cases. Run events stream over SSE and WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serverPort > 0 {
			cfg.Server.Port = serverPort
		}

		history, err := openHistory(cfg)
		if err != nil {
			warnf("%v; run history endpoints disabled", err)
		}
		if history != nil {
			defer history.Close()
		}

		srv := server.New(server.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ProjectDir:   cfg.ProjectDir,
			OutputDir:    cfg.OutputDir,
			MCPServerURL: cfg.MCPServerURL,
			AllowAll:     true,
			Eval:         cfg.Eval,
		}, newService(cfg), history)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "promptlab server v%s starting on %s:%d\n", Version, cfg.Server.Host, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Workspace: %s\n", cfg.ProjectDir)
		fmt.Fprintf(os.Stderr, "  Results:   %s\n", cfg.OutputDir)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
