// Package cluster implements the story-clustering engine: the decision
// procedure that attaches each ingested item to an existing story cluster or
// starts a new one, plus the rollup and search-document maintenance that
// keeps clusters queryable.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/storyline/internal/db"
	"horse.fit/storyline/internal/tuning"
)

type Service struct {
	pool   *db.Pool
	cfg    *tuning.Config
	logger zerolog.Logger
}

func NewService(pool *db.Pool, cfg *tuning.Config, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		cfg:    cfg,
		logger: logger,
	}
}

type Outcome string

const (
	OutcomeAttached Outcome = "attached_existing"
	OutcomeCreated  Outcome = "created_new"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeNotFound Outcome = "not_found"
)

// AssignResult is the tagged outcome of a single-item decision. Skipped and
// NotFound are expected, non-error outcomes.
type AssignResult struct {
	Outcome    Outcome
	ClusterID  int64
	MatchPath  string
	Score      *float64
	SkipReason string
}

// RunResult summarizes one batch invocation.
type RunResult struct {
	ItemsProcessed  int `json:"items_processed"`
	ItemsAttached   int `json:"items_attached"`
	ClustersCreated int `json:"clusters_created"`
}

// AssignItemToCluster runs the decision procedure for one item. The whole
// decision (membership, representative reselection, audit log and, unless
// deferred, metrics) commits in a single transaction, or none of it does.
func (s *Service) AssignItemToCluster(ctx context.Context, itemID int64, now time.Time, deferMetrics bool) (AssignResult, error) {
	if s == nil || s.pool == nil {
		return AssignResult{}, fmt.Errorf("cluster service is not initialized")
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return AssignResult{}, fmt.Errorf("begin assign tx: %w", err)
	}

	result, err := s.assignOneTx(ctx, tx, itemID, now, deferMetrics)
	if err != nil {
		_ = tx.Rollback(ctx)
		return AssignResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return AssignResult{}, fmt.Errorf("commit assign tx: %w", err)
	}
	return result, nil
}

func (s *Service) assignOneTx(ctx context.Context, tx db.Tx, itemID int64, now time.Time, deferMetrics bool) (AssignResult, error) {
	item, found, err := loadItemTx(ctx, tx, itemID)
	if err != nil {
		return AssignResult{}, err
	}
	if !found {
		return AssignResult{Outcome: OutcomeNotFound}, nil
	}

	assigned, err := itemAssignedTx(ctx, tx, itemID)
	if err != nil {
		return AssignResult{}, err
	}
	if assigned {
		return AssignResult{Outcome: OutcomeSkipped, SkipReason: "already_assigned"}, nil
	}

	result, err := s.decideItemTx(ctx, tx, item, now)
	if err != nil {
		return AssignResult{}, err
	}

	if !deferMetrics && (result.Outcome == OutcomeAttached || result.Outcome == OutcomeCreated) {
		if err := refreshClusters(ctx, tx, s.cfg, []int64{result.ClusterID}, now); err != nil {
			return AssignResult{}, err
		}
	}
	return result, nil
}

// ClusterUnassignedItems scans unclustered items oldest-published-first, runs
// the decision engine on each with metrics deferred, then performs one
// batched rollup/search-doc recompute over every cluster touched in the run.
// A crash between item processing and the final batch step leaves correct
// membership with stale rollups, which the next recompute heals.
func (s *Service) ClusterUnassignedItems(ctx context.Context, now time.Time, limitItems int) (RunResult, error) {
	if s == nil || s.pool == nil {
		return RunResult{}, fmt.Errorf("cluster service is not initialized")
	}

	runID, err := s.startRun(ctx, now)
	if err != nil {
		return RunResult{}, err
	}

	var result RunResult
	dirty := make(map[int64]struct{})

	runErr := func() error {
		// limitItems <= 0 means no cap; the loop ends when the backlog is
		// drained.
		for limitItems <= 0 || result.ItemsProcessed < limitItems {
			tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
			if err != nil {
				return fmt.Errorf("begin cluster tx: %w", err)
			}

			item, found, err := claimOneUnassignedItemTx(ctx, tx)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
			if !found {
				if err := tx.Commit(ctx); err != nil {
					_ = tx.Rollback(ctx)
					return fmt.Errorf("commit empty cluster tx: %w", err)
				}
				break
			}

			decision, err := s.decideItemTx(ctx, tx, item, now)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			if err := tx.Commit(ctx); err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("commit cluster tx: %w", err)
			}

			result.ItemsProcessed++
			switch decision.Outcome {
			case OutcomeAttached:
				result.ItemsAttached++
				dirty[decision.ClusterID] = struct{}{}
			case OutcomeCreated:
				result.ClustersCreated++
				dirty[decision.ClusterID] = struct{}{}
			}
		}

		if len(dirty) > 0 {
			if err := refreshClusters(ctx, s.pool, s.cfg, sortedClusterIDs(dirty), now); err != nil {
				return err
			}
		}
		return nil
	}()

	if runErr != nil {
		s.finishRun(ctx, runID, "failed", result, runErr)
		return result, runErr
	}

	s.finishRun(ctx, runID, "completed", result, nil)
	return result, nil
}

// RecomputeClusterMetrics recomputes rollups and search documents for the
// given clusters, or for every pending/active cluster when none are given.
// Operational repair surface: aggregates are a pure function of membership,
// so recomputation is always safe.
func (s *Service) RecomputeClusterMetrics(ctx context.Context, clusterIDs []int64, now time.Time) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("cluster service is not initialized")
	}

	if len(clusterIDs) == 0 {
		const q = `
SELECT cluster_id
FROM news.story_clusters
WHERE status IN ('pending', 'active')
ORDER BY cluster_id
`
		rows, err := s.pool.Query(ctx, q)
		if err != nil {
			return 0, fmt.Errorf("query clusters for recompute: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return 0, fmt.Errorf("scan cluster id: %w", err)
			}
			clusterIDs = append(clusterIDs, id)
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("iterate cluster ids: %w", err)
		}
	}

	if err := refreshClusters(ctx, s.pool, s.cfg, clusterIDs, now); err != nil {
		return 0, err
	}
	return len(clusterIDs), nil
}

// PromoteEligibleClusters transitions pending clusters to active once
// downstream enrichment has produced a takeaway, an intuition summary and at
// least one topic tag. Publish-readiness gates on enrichment, not on
// clustering itself.
func (s *Service) PromoteEligibleClusters(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("cluster service is not initialized")
	}

	const q = `
UPDATE news.story_clusters c
SET status = 'active',
	updated_at = $1
WHERE c.status = 'pending'
  AND c.takeaway IS NOT NULL AND btrim(c.takeaway) <> ''
  AND c.intuition IS NOT NULL AND btrim(c.intuition) <> ''
  AND EXISTS (
	SELECT 1 FROM news.cluster_topics t WHERE t.cluster_id = c.cluster_id
  )
`
	tag, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("promote clusters: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const itemColumns = `
	i.item_id,
	i.source_id,
	i.title,
	i.canonical_url,
	i.content_type,
	i.published_at,
	i.fetched_at,
	i.arxiv_id,
	i.doi
`

func loadItemTx(ctx context.Context, tx db.Tx, itemID int64) (itemRow, bool, error) {
	q := `
SELECT` + itemColumns + `
FROM news.items i
WHERE i.item_id = $1
FOR UPDATE OF i
`
	var item itemRow
	if err := scanItemRow(tx.QueryRow(ctx, q, itemID), &item); err != nil {
		if db.IsNoRows(err) {
			return itemRow{}, false, nil
		}
		return itemRow{}, false, fmt.Errorf("load item item_id=%d: %w", itemID, err)
	}
	return item, true, nil
}

func itemAssignedTx(ctx context.Context, tx db.Tx, itemID int64) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1 FROM news.cluster_items ci WHERE ci.item_id = $1
)
`
	var assigned bool
	if err := tx.QueryRow(ctx, q, itemID).Scan(&assigned); err != nil {
		return false, fmt.Errorf("check item membership item_id=%d: %w", itemID, err)
	}
	return assigned, nil
}

func claimOneUnassignedItemTx(ctx context.Context, tx db.Tx) (itemRow, bool, error) {
	q := `
SELECT` + itemColumns + `
FROM news.items i
WHERE NOT EXISTS (
	SELECT 1 FROM news.cluster_items ci WHERE ci.item_id = i.item_id
)
ORDER BY COALESCE(i.published_at, i.fetched_at) ASC, i.item_id ASC
LIMIT 1
FOR UPDATE OF i SKIP LOCKED
`
	var item itemRow
	if err := scanItemRow(tx.QueryRow(ctx, q), &item); err != nil {
		if db.IsNoRows(err) {
			return itemRow{}, false, nil
		}
		return itemRow{}, false, fmt.Errorf("claim unassigned item: %w", err)
	}
	return item, true, nil
}

func scanItemRow(row *db.Row, dst *itemRow) error {
	return row.Scan(
		&dst.ItemID,
		&dst.SourceID,
		&dst.Title,
		&dst.CanonicalURL,
		&dst.ContentType,
		&dst.PublishedAt,
		&dst.FetchedAt,
		&dst.ArxivID,
		&dst.DOI,
	)
}

func (s *Service) startRun(ctx context.Context, now time.Time) (int64, error) {
	const q = `
INSERT INTO news.cluster_runs (run_uuid, started_at, status)
VALUES ($1, $2, 'running')
RETURNING run_id
`
	var runID int64
	if err := s.pool.QueryRow(ctx, q, uuid.NewString(), now).Scan(&runID); err != nil {
		return 0, fmt.Errorf("insert cluster run: %w", err)
	}
	return runID, nil
}

// finishRun closes the run ledger row. Best-effort: the ledger is
// observability, never the source of truth.
func (s *Service) finishRun(ctx context.Context, runID int64, status string, result RunResult, runErr error) {
	const q = `
UPDATE news.cluster_runs
SET finished_at = now(),
	status = $2,
	items_processed = $3,
	items_attached = $4,
	clusters_created = $5,
	error_message = $6
WHERE run_id = $1
`
	var errMessage *string
	if runErr != nil {
		msg := runErr.Error()
		errMessage = &msg
	}
	if _, err := s.pool.Exec(
		ctx,
		q,
		runID,
		status,
		result.ItemsProcessed,
		result.ItemsAttached,
		result.ClustersCreated,
		errMessage,
	); err != nil {
		s.logger.Warn().Err(err).Int64("run_id", runID).Msg("failed to close cluster run ledger row")
	}
}

func sortedClusterIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
