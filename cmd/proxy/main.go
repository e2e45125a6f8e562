// Package main is the entry point for the MCP Hub aggregation proxy.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcp-hub/proxy/cmd/proxy/app"
	"github.com/mcp-hub/proxy/pkg/logger"
)

func main() {
	logger.Initialize()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	root := app.NewRootCmd()
	err := root.ExecuteContext(ctx)
	os.Exit(app.ExitCode(err))
}
