package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/storyline/internal/cli"
	"horse.fit/storyline/internal/globaltime"
)

// runMetrics recomputes rollups and search documents, either for an
// explicit cluster list or for every pending and active cluster.
func runMetrics(args []string) int {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	clustersCSV := fs.String("clusters", "", "Comma-separated cluster IDs (empty = all pending and active)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Recompute timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	clusterIDs, err := parseClusterIDs(*clustersCSV)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrics: %v\n", err)
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

	refreshed, err := rt.service.RecomputeClusterMetrics(ctx, clusterIDs, globaltime.Now().UTC())
	if err != nil {
		rt.logger.Error().Err(err).Msg("Metrics recompute failed")
		return 1
	}

	rt.logger.Info().Int("clusters_refreshed", refreshed).Msg("Metrics recompute finished")
	return 0
}

func parseClusterIDs(csv string) ([]int64, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid cluster ID %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
