package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code. Without a
// command name the arguments are treated as flags of the ingest service.
func Run(args []string) int {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
			printUsage()
			return 0
		}
		return runService(args)
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help":
		printUsage()
		return 0
	case "run":
		return runService(args[1:])
	case "validate-config":
		return runValidateConfig(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "catalog-ingest")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  catalog-ingest [--config path] [--once] [--serve] [--port N] [--host H] [--env .env]")
	fmt.Fprintln(os.Stderr, "  catalog-ingest <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Without --once or --serve the service ingests immediately and then on the")
	fmt.Fprintln(os.Stderr, "configured interval until interrupted.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run              Same as running without a command")
	fmt.Fprintln(os.Stderr, "  validate-config  Validate an ingestion config file and exit")
	fmt.Fprintln(os.Stderr, "  help             Show this message")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"catalog-ingest <command> -h\" for command-specific flags.")
}
