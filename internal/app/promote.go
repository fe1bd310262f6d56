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

// runPromote flips pending clusters that already carry editorial context
// (takeaway, intuition, at least one topic) to active.
func runPromote(args []string) int {
	fs := flag.NewFlagSet("promote", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Promotion timeout")
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

	promoted, err := rt.service.PromoteEligibleClusters(ctx, globaltime.Now().UTC())
	if err != nil {
		rt.logger.Error().Err(err).Msg("Promotion failed")
		return 1
	}

	rt.logger.Info().Int("promoted", promoted).Msg("Promotion finished")
	return 0
}
