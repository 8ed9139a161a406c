// Package main is the entry point for the review CLI.
//
// Usage:
//
//	review [flags] <command> [args]
//
// Commands:
//
//	submit   - Upload a slide and a recording and follow the evaluation live
//	replay   - Run a recorded NDJSON evaluation through the classifier
//	history  - List past evaluations from the backend database
//	export   - Write the audio sample and slide suggestion of a recording
//	mcp      - Serve the normalizer and history as MCP tools over stdio
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/reviewmeeting/review/cmd/review/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
