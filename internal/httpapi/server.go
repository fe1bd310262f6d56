// Package httpapi exposes the read-only boundary consumed by downstream
// feed/notification tooling: active clusters ranked by trending score and
// per-cluster membership detail. Assignment itself never goes through HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/storyline/internal/db"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	pool   *db.Pool
	logger zerolog.Logger
	opts   Options
	echo   *echo.Echo
}

func NewServer(pool *db.Pool, logger zerolog.Logger, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		pool:   pool,
		logger: logger,
		opts:   opts,
		echo:   e,
	}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/api/feed", s.handleFeed)
	e.GET("/api/clusters/:uuid", s.handleClusterDetail)

	return s
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	s.echo.Server.ReadTimeout = s.opts.ReadTimeout
	s.echo.Server.WriteTimeout = s.opts.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.logger.Info().Str("addr", addr).Msg("http server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return internalError(c, "database unavailable")
	}
	return success(c, map[string]string{"status": "ok"})
}

func (s *Server) handleFeed(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			return fail(c, http.StatusBadRequest, "limit must be an integer between 1 and 200")
		}
		limit = parsed
	}

	clusters, err := s.pool.ListActiveClusters(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("feed query failed")
		return internalError(c, "failed to load feed")
	}
	return success(c, map[string]any{"clusters": clusters})
}

func (s *Server) handleClusterDetail(c echo.Context) error {
	detail, err := s.pool.GetClusterDetail(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "cluster not found")
		}
		s.logger.Error().Err(err).Str("cluster_uuid", c.Param("uuid")).Msg("cluster detail query failed")
		return internalError(c, "failed to load cluster")
	}
	return success(c, detail)
}
