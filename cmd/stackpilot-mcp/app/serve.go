package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/config"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
	mcpserver "github.com/stackpilot-hq/stackpilot-mcp/pkg/mcp/server"
)

var (
	serveTransport string
	serveHost      string
	servePort      string
)

// newServeCommand creates the 'serve' subcommand.
func newServeCommand() *cobra.Command {
	// Check for STACKPILOT_MCP_PORT environment variable
	defaultPort := mcpserver.DefaultMCPPort
	if envPort := os.Getenv("STACKPILOT_MCP_PORT"); envPort != "" {
		defaultPort = envPort
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the StackPilot MCP server",
		Long: `Start the MCP (Model Context Protocol) server that exposes StackPilot
deployment operations as tools.

By default the server speaks MCP over stdio, which is how assistant hosts
launch it. Use --transport streamable-http to listen on a port instead; the
port can also be set via the STACKPILOT_MCP_PORT environment variable.`,
		RunE: serveCmdFunc,
	}

	cmd.Flags().StringVar(&serveTransport, "transport", mcpserver.TransportStdio,
		fmt.Sprintf("Transport to serve on (%s or %s)", mcpserver.TransportStdio, mcpserver.TransportStreamableHTTP))
	cmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to listen on (streamable-http only)")
	cmd.Flags().StringVar(&servePort, "port", defaultPort, "Port to listen on (streamable-http only)")

	return cmd
}

// serveCmdFunc is the main function for the serve command.
func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	if serveTransport != mcpserver.TransportStdio && serveTransport != mcpserver.TransportStreamableHTTP {
		return fmt.Errorf("unknown transport %q", serveTransport)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	srv, err := mcpserver.New(ctx, &mcpserver.Config{
		Transport: serveTransport,
		Host:      serveHost,
		Port:      servePort,
		Settings:  config.Load(),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Wait for shutdown signal or server exit
	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		return err
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
