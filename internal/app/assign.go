package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/cluster"
	"horse.fit/storyline/internal/globaltime"
)

// runAssign clusters a single item immediately, including rollup refresh.
func runAssign(args []string) int {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	itemID := fs.Int64("item", 0, "Item ID to assign (required)")
	timeout := fs.Duration("timeout", 30*time.Second, "Assignment timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *itemID <= 0 {
		fmt.Fprintln(os.Stderr, "assign: --item is required and must be > 0")
		fs.Usage()
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

	result, err := rt.service.AssignItemToCluster(ctx, *itemID, globaltime.Now().UTC(), false)
	if err != nil {
		rt.logger.Error().Err(err).Int64("item_id", *itemID).Msg("Assignment failed")
		return 1
	}

	evt := rt.logger.Info().
		Int64("item_id", *itemID).
		Str("outcome", string(result.Outcome))
	switch result.Outcome {
	case cluster.OutcomeAttached, cluster.OutcomeCreated:
		evt = evt.Int64("cluster_id", result.ClusterID).Str("match_path", result.MatchPath)
		if result.Score != nil {
			evt = evt.Float64("score", *result.Score)
		}
	case cluster.OutcomeSkipped:
		evt = evt.Str("reason", result.SkipReason)
	}
	evt.Msg("Assignment finished")

	if result.Outcome == cluster.OutcomeNotFound {
		fmt.Fprintf(os.Stderr, "assign: item %d not found\n", *itemID)
		return 1
	}
	return 0
}
