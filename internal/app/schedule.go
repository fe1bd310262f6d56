package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/globaltime"
)

// runSchedule keeps a long-lived process that drains the backlog on a
// cron schedule and recomputes metrics for whatever the runs touched.
func runSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	spec := fs.String("cron", "*/5 * * * *", "Cron expression for batch clustering runs")
	limit := fs.Int("limit", 0, "Max items per run (0 = no limit)")
	promoteEach := fs.Bool("promote", true, "Also promote eligible clusters after each run")
	runTimeout := fs.Duration("run-timeout", 25*time.Minute, "Timeout for a single scheduled run")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := envLoader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing with process environment)\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return 1
	}
	defer rt.close()

	cronLogger := cron.PrintfLogger(&rt.logger)
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	_, err = scheduler.AddFunc(*spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, *runTimeout)
		defer cancel()

		result, err := rt.service.ClusterUnassignedItems(runCtx, globaltime.Now().UTC(), *limit)
		if err != nil {
			rt.logger.Error().Err(err).Msg("Scheduled clustering run failed")
			return
		}
		rt.logger.Info().
			Int("items_processed", result.ItemsProcessed).
			Int("items_attached", result.ItemsAttached).
			Int("clusters_created", result.ClustersCreated).
			Msg("Scheduled clustering run finished")

		if !*promoteEach {
			return
		}
		promoted, err := rt.service.PromoteEligibleClusters(runCtx, globaltime.Now().UTC())
		if err != nil {
			rt.logger.Error().Err(err).Msg("Scheduled promotion failed")
			return
		}
		if promoted > 0 {
			rt.logger.Info().Int("promoted", promoted).Msg("Scheduled promotion finished")
		}
	})
	if err != nil {
		rt.logger.Error().Err(err).Str("cron", *spec).Msg("Invalid cron expression")
		return 2
	}

	rt.logger.Info().Str("cron", *spec).Msg("Scheduler started")
	scheduler.Start()

	<-ctx.Done()
	rt.logger.Info().Msg("Shutting down scheduler")

	// Let an in-flight run finish before closing the pool.
	<-scheduler.Stop().Done()
	return 0
}
