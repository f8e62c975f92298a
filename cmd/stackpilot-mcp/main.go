// Package main is the entry point for the stackpilot-mcp agent.
package main

import (
	"os"

	"github.com/stackpilot-hq/stackpilot-mcp/cmd/stackpilot-mcp/app"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
