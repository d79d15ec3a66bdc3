// pipeline-engine: an MCP server that drives multi-stage, multi-agent
// development tasks through a persisted, resumable pipeline.
//
// Usage:
//
//	pipeline-engine serve    # Start MCP server (stdio transport)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoofy-labs/pipeline-engine/internal/app"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("pipeline-engine v%s\n", app.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := app.New(app.Config{ProjectRoot: os.Getenv("PIPELINE_ENGINE_PROJECT_ROOT")})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return mcpserver.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pipeline-engine v%s

Usage:
  pipeline-engine serve    Start the MCP server (stdio transport)

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "pipeline-engine": {
        "command": "pipeline-engine",
        "args": ["serve"]
      }
    }
  }

Environment:
  PIPELINE_ENGINE_PROJECT_ROOT   project directory holding .pipeline/settings.json
                                 and the pipeline.db store (default ".")
`, app.Version)
}
