package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "assign":
		return runAssign(args[1:])
	case "cluster", "run-once":
		return runCluster(args[1:])
	case "promote":
		return runPromote(args[1:])
	case "list":
		return runList(args[1:])
	case "metrics":
		return runMetrics(args[1:])
	case "schedule":
		return runSchedule(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "storyline CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  storyline <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity and tuning file validity")
	fmt.Fprintln(os.Stderr, "  assign    Assign one item to a story cluster")
	fmt.Fprintln(os.Stderr, "  cluster   Cluster all unassigned items in one batch run")
	fmt.Fprintln(os.Stderr, "  run-once  Alias for cluster")
	fmt.Fprintln(os.Stderr, "  promote   Promote enriched pending clusters to active")
	fmt.Fprintln(os.Stderr, "  list      Print recently updated clusters as JSON lines")
	fmt.Fprintln(os.Stderr, "  metrics   Recompute cluster rollups and search documents")
	fmt.Fprintln(os.Stderr, "  schedule  Run batch clustering on a cron schedule")
	fmt.Fprintln(os.Stderr, "  serve     Start the read-only feed API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"storyline <command> -h\" for command-specific flags.")
}
