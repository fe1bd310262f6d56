package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/storyline/internal/cli"
)

// runHealth checks that the tuning file parses and the database answers.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Overall health check timeout")
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

	var one int
	if err := rt.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		rt.logger.Error().Err(err).Msg("Database health query failed")
		return 1
	}

	rt.logger.Info().
		Str("tuning_path", rt.cfg.TuningPath).
		Float64("attach_score", rt.tuning.Thresholds.AttachScore).
		Msg("Health check passed")
	fmt.Println("ok")
	return 0
}
