package main

import (
	"fmt"
	"os"

	"github.com/annosearch/anno/cmd/anno/serve"
	"github.com/annosearch/anno/cmd/anno/snapshot"
	"github.com/annosearch/anno/cmd/anno/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve.Run(os.Args[2:])
	case "snapshot":
		snapshot.Run(os.Args[2:])
	case "version":
		version.Run()
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`anno - Annotated-Record Search and Aggregation Engine

Usage:
  anno <command> [options]

Commands:
  serve     Start the HTTP server
  snapshot  Export, restore, or list dataset snapshots
  version   Print version information
  help      Show this help message

Run 'anno <command> --help' for more information on a command.`)
}
