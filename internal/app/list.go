package app

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/globaltime"
)

// runList prints recently updated clusters as JSON lines, for inspection
// after a batch run.
func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	statusCSV := fs.String("status", "pending,active", "Comma-separated cluster statuses")
	since := fs.Duration("since", 24*time.Hour, "Only clusters updated within this window")
	limit := fs.Int("limit", 50, "Max clusters to print")
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")
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

	statuses := splitCSV(*statusCSV)
	cutoff := globaltime.Now().UTC().Add(-*since)

	clusters, err := rt.pool.ListRecentClusters(ctx, statuses, cutoff, *limit)
	if err != nil {
		rt.logger.Error().Err(err).Msg("Listing clusters failed")
		return 1
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, cluster := range clusters {
		if err := encoder.Encode(cluster); err != nil {
			rt.logger.Error().Err(err).Msg("Encoding cluster failed")
			return 1
		}
	}
	rt.logger.Info().Int("clusters", len(clusters)).Msg("Listing finished")
	return 0
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
