package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/storyline/internal/cluster"
	"horse.fit/storyline/internal/config"
	"horse.fit/storyline/internal/db"
	"horse.fit/storyline/internal/logging"
	"horse.fit/storyline/internal/tuning"
)

// runtime bundles the shared wiring every command needs: config, a
// logger, the database pool and a clustering service built from the
// tuning file.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	pool    *db.Pool
	tuning  *tuning.Config
	service *cluster.Service
}

func (r *runtime) close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// newRuntime loads configuration from the environment, opens the pool
// and parses the tuning file. Early errors go to stderr because the
// logger may not exist yet when they occur.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return nil, err
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return nil, err
	}

	tun, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.TuningPath).Msg("Failed to load tuning file")
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		tuning:  tun,
		service: cluster.NewService(pool, tun, logger),
	}, nil
}
