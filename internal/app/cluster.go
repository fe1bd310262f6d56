package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/globaltime"
)

// runCluster drains the unassigned-item backlog in one batch run.
func runCluster(args []string) int {
	fs := flag.NewFlagSet("cluster", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	limit := fs.Int("limit", 0, "Max items to process this run (0 = no limit)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Batch run timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := envLoader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing with process environment)\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return 1
	}
	defer rt.close()

	result, err := rt.service.ClusterUnassignedItems(ctx, globaltime.Now().UTC(), *limit)
	if err != nil {
		rt.logger.Error().Err(err).Msg("Batch clustering failed")
		return 1
	}

	rt.logger.Info().
		Int("items_processed", result.ItemsProcessed).
		Int("items_attached", result.ItemsAttached).
		Int("clusters_created", result.ClustersCreated).
		Msg("Batch clustering finished")
	return 0
}
