package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"horse.fit/storyline/internal/db"
)

const (
	StatusPending     = "pending"
	StatusActive      = "active"
	StatusMerged      = "merged"
	StatusQuarantined = "quarantined"
)

const (
	RolePrimary    = "primary"
	RoleSupporting = "supporting"
)

const (
	ContentTypePeerReviewed = "peer_reviewed"
	ContentTypePreprint     = "preprint"
	ContentTypeReport       = "report"
	ContentTypePressRelease = "press_release"
	ContentTypeNews         = "news"
)

const (
	DecisionAttachedExisting = "attached_existing"
	DecisionCreatedNew       = "created_new"
)

const (
	MatchPathExternalID = "external_id"
	MatchPathLexical    = "lexical"
	MatchPathNone       = "none"
)

// itemRow is the typed projection of news.items the engine operates on.
type itemRow struct {
	ItemID       int64
	SourceID     int64
	Title        string
	CanonicalURL *string
	ContentType  string
	PublishedAt  *time.Time
	FetchedAt    time.Time
	ArxivID      *string
	DOI          *string
}

// seenAt is the item's clustering timestamp: published-at, falling back to
// fetched-at.
func (i itemRow) seenAt() time.Time {
	if i.PublishedAt != nil && !i.PublishedAt.IsZero() {
		return i.PublishedAt.UTC()
	}
	return i.FetchedAt.UTC()
}

// candidateRecord is one considered candidate as persisted to the assignment
// log, in retrieval order.
type candidateRecord struct {
	ClusterID      int64    `json:"cluster_id"`
	Rank           int      `json:"rank"`
	TotalScore     *float64 `json:"total_score,omitempty"`
	RejectedByGate bool     `json:"rejected_by_gate,omitempty"`
}

type scoredCandidate struct {
	Candidate lexicalCandidate
	Score     ScoreBreakdown
}

// decideItemTx runs the full decision procedure for one item inside its
// transaction: external-ID retrieval first (authoritative, no threshold),
// then lexical retrieval + scoring against the attach threshold, then
// mutation and audit logging. Returns the result and the ID of the cluster
// whose rollups are now stale.
func (s *Service) decideItemTx(ctx context.Context, tx db.Tx, item itemRow, now time.Time) (AssignResult, error) {
	item = s.backfillExternalIDsTx(ctx, tx, item, now)

	if clusterID, found, err := findExternalIDClusterTx(ctx, tx, item.ArxivID, item.DOI); err != nil {
		return AssignResult{}, err
	} else if found {
		attached, err := s.attachExistingTx(ctx, tx, clusterID, item, now)
		if err != nil {
			return AssignResult{}, err
		}
		if !attached {
			return AssignResult{Outcome: OutcomeSkipped, SkipReason: "already_assigned"}, nil
		}
		if err := insertAssignmentLogTx(ctx, tx, assignmentLogRecord{
			ItemID:    item.ItemID,
			ClusterID: clusterID,
			Decision:  DecisionAttachedExisting,
			MatchPath: MatchPathExternalID,
			Candidates: []candidateRecord{
				{ClusterID: clusterID, Rank: 0},
			},
			Breakdown:       nil,
			AttachThreshold: s.cfg.Thresholds.AttachScore,
			CreatedAt:       now,
		}); err != nil {
			return AssignResult{}, err
		}
		return AssignResult{
			Outcome:   OutcomeAttached,
			ClusterID: clusterID,
			MatchPath: MatchPathExternalID,
		}, nil
	}

	itemTokens := TitleTokens(s.cfg, item.Title)
	candidates, err := findLexicalCandidatesTx(ctx, tx, s.cfg, itemTokens, item.SourceID, now)
	if err != nil {
		return AssignResult{}, err
	}

	itemSeenAt := item.seenAt()
	records := make([]candidateRecord, 0, len(candidates))
	scored := make([]scoredCandidate, 0, len(candidates))
	for rank, candidate := range candidates {
		candidateTokens := TitleTokens(s.cfg, candidate.CanonicalTitle)
		breakdown, ok := ScoreCandidate(
			s.cfg,
			itemTokens,
			candidateTokens,
			itemSeenAt,
			candidate.LastUpdatedAt,
			candidate.SharesSource,
		)
		if !ok {
			records = append(records, candidateRecord{
				ClusterID:      candidate.ClusterID,
				Rank:           rank,
				RejectedByGate: true,
			})
			continue
		}
		total := breakdown.TotalScore
		records = append(records, candidateRecord{
			ClusterID:  candidate.ClusterID,
			Rank:       rank,
			TotalScore: &total,
		})
		scored = append(scored, scoredCandidate{Candidate: candidate, Score: breakdown})
	}

	best, hasBest := bestScored(scored)

	if hasBest && shouldAttach(best.Score.TotalScore, s.cfg.Thresholds.AttachScore) {
		attached, err := s.attachExistingTx(ctx, tx, best.Candidate.ClusterID, item, now)
		if err != nil {
			return AssignResult{}, err
		}
		if !attached {
			return AssignResult{Outcome: OutcomeSkipped, SkipReason: "already_assigned"}, nil
		}
		if err := insertAssignmentLogTx(ctx, tx, assignmentLogRecord{
			ItemID:          item.ItemID,
			ClusterID:       best.Candidate.ClusterID,
			Decision:        DecisionAttachedExisting,
			MatchPath:       MatchPathLexical,
			Candidates:      records,
			Breakdown:       &best.Score,
			AttachThreshold: s.cfg.Thresholds.AttachScore,
			CreatedAt:       now,
		}); err != nil {
			return AssignResult{}, err
		}
		total := best.Score.TotalScore
		return AssignResult{
			Outcome:   OutcomeAttached,
			ClusterID: best.Candidate.ClusterID,
			MatchPath: MatchPathLexical,
			Score:     &total,
		}, nil
	}

	clusterID, created, err := s.createClusterTx(ctx, tx, item, now)
	if err != nil {
		return AssignResult{}, err
	}
	if !created {
		return AssignResult{Outcome: OutcomeSkipped, SkipReason: "already_assigned"}, nil
	}

	var breakdown *ScoreBreakdown
	if hasBest {
		breakdown = &best.Score
	}
	if err := insertAssignmentLogTx(ctx, tx, assignmentLogRecord{
		ItemID:          item.ItemID,
		ClusterID:       clusterID,
		Decision:        DecisionCreatedNew,
		MatchPath:       MatchPathNone,
		Candidates:      records,
		Breakdown:       breakdown,
		AttachThreshold: s.cfg.Thresholds.AttachScore,
		CreatedAt:       now,
	}); err != nil {
		return AssignResult{}, err
	}

	return AssignResult{
		Outcome:   OutcomeCreated,
		ClusterID: clusterID,
		MatchPath: MatchPathNone,
	}, nil
}

// shouldAttach is the attach cutoff. The comparison is inclusive: a total
// exactly at the threshold attaches, anything under it forces a new cluster.
func shouldAttach(total, threshold float64) bool {
	return total >= threshold
}

// bestScored picks the candidate with the maximum total score. Replacement
// is strictly-greater, so ties resolve to the earliest retrieval rank, which
// is deterministic given identical input state.
func bestScored(scored []scoredCandidate) (scoredCandidate, bool) {
	if len(scored) == 0 {
		return scoredCandidate{}, false
	}
	best := scored[0]
	for _, c := range scored[1:] {
		if c.Score.TotalScore > best.Score.TotalScore {
			best = c
		}
	}
	return best, true
}

// backfillExternalIDsTx fills missing arxiv_id/doi from title and URL text.
// The write runs under a savepoint: a failed statement would otherwise abort
// the enclosing transaction, and the decision must still go through with the
// extracted values even when persisting them fails.
func (s *Service) backfillExternalIDsTx(ctx context.Context, tx db.Tx, item itemRow, now time.Time) itemRow {
	if item.ArxivID != nil && item.DOI != nil {
		return item
	}

	ids := ExtractExternalIDs(item.Title, derefOrEmpty(item.CanonicalURL))

	changed := false
	if item.ArxivID == nil && ids.ArxivID != "" {
		arxiv := ids.ArxivID
		item.ArxivID = &arxiv
		changed = true
	}
	if item.DOI == nil && ids.DOI != "" {
		doi := ids.DOI
		item.DOI = &doi
		changed = true
	}
	if !changed {
		return item
	}

	const update = `
UPDATE news.items
SET arxiv_id = COALESCE(arxiv_id, $2),
	doi = COALESCE(doi, $3),
	updated_at = $4
WHERE item_id = $1
`
	if _, err := tx.Exec(ctx, "SAVEPOINT external_id_backfill"); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("item_id", item.ItemID).
			Msg("external id backfill skipped; savepoint failed")
		return item
	}
	if _, err := tx.Exec(ctx, update, item.ItemID, item.ArxivID, item.DOI, now); err != nil {
		_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT external_id_backfill")
		s.logger.Warn().
			Err(err).
			Int64("item_id", item.ItemID).
			Msg("external id backfill failed; continuing with extracted values")
		return item
	}
	_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT external_id_backfill")
	return item
}

// attachExistingTx inserts the membership row and performs the follow-on
// effects of an attach. The uniqueness constraint on item_id, not application
// logic, provides the at-most-once guarantee: a conflicting insert from a
// concurrent run makes this a no-op.
func (s *Service) attachExistingTx(ctx context.Context, tx db.Tx, clusterID int64, item itemRow, now time.Time) (bool, error) {
	const insert = `
INSERT INTO news.cluster_items (cluster_id, item_id, role, matched_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (item_id) DO NOTHING
`
	tag, err := tx.Exec(ctx, insert, clusterID, item.ItemID, RoleSupporting, now)
	if err != nil {
		return false, fmt.Errorf("insert cluster_item cluster_id=%d item_id=%d: %w", clusterID, item.ItemID, err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	const touch = `
UPDATE news.story_clusters
SET last_updated_at = GREATEST(last_updated_at, $2),
	updated_at = $2
WHERE cluster_id = $1
`
	if _, err := tx.Exec(ctx, touch, clusterID, now); err != nil {
		return false, fmt.Errorf("touch cluster cluster_id=%d: %w", clusterID, err)
	}

	if err := reselectRepresentativeTx(ctx, tx, clusterID, now); err != nil {
		return false, err
	}

	if isHardEvidence(item.ContentType) {
		if err := insertUpdateLogTx(ctx, tx, clusterID, item.ItemID, now); err != nil {
			return false, err
		}
	}

	return true, nil
}

// createClusterTx inserts a new pending cluster seeded with the item as its
// representative and primary member. Seed rollups match what a recompute at
// zero age would produce.
func (s *Service) createClusterTx(ctx context.Context, tx db.Tx, item itemRow, now time.Time) (int64, bool, error) {
	seedRecency := RecencyScore(0)
	seedTrending := TrendingScore(1, 1, 1, seedRecency)

	const insertCluster = `
INSERT INTO news.story_clusters (
	status,
	canonical_title,
	representative_item_id,
	item_count,
	source_count,
	source_type_count,
	velocity_6h,
	velocity_24h,
	recency_score,
	trending_score,
	last_updated_at,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, 1, 1, 1, 1, 1, $4, $5, $6, $6, $6)
RETURNING cluster_id
`
	var clusterID int64
	if err := tx.QueryRow(
		ctx,
		insertCluster,
		StatusPending,
		item.Title,
		item.ItemID,
		seedRecency,
		seedTrending,
		now,
	).Scan(&clusterID); err != nil {
		return 0, false, fmt.Errorf("insert cluster for item_id=%d: %w", item.ItemID, err)
	}

	const insertMember = `
INSERT INTO news.cluster_items (cluster_id, item_id, role, matched_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (item_id) DO NOTHING
`
	tag, err := tx.Exec(ctx, insertMember, clusterID, item.ItemID, RolePrimary, now)
	if err != nil {
		return 0, false, fmt.Errorf("insert primary cluster_item cluster_id=%d item_id=%d: %w", clusterID, item.ItemID, err)
	}
	if tag.RowsAffected() != 1 {
		// Lost the race: another writer attached this item while we were
		// deciding. Drop the now-empty cluster and report a no-op.
		if _, err := tx.Exec(ctx, `DELETE FROM news.story_clusters WHERE cluster_id = $1`, clusterID); err != nil {
			return 0, false, fmt.Errorf("delete empty cluster cluster_id=%d: %w", clusterID, err)
		}
		return 0, false, nil
	}

	return clusterID, true, nil
}

func isHardEvidence(contentType string) bool {
	switch contentType {
	case ContentTypePeerReviewed, ContentTypePreprint, ContentTypeReport:
		return true
	default:
		return false
	}
}

func insertUpdateLogTx(ctx context.Context, tx db.Tx, clusterID, itemID int64, now time.Time) error {
	const insert = `
INSERT INTO news.update_log (cluster_id, item_id, kind, created_at)
VALUES ($1, $2, 'new_evidence', $3)
ON CONFLICT (item_id) DO NOTHING
`
	if _, err := tx.Exec(ctx, insert, clusterID, itemID, now); err != nil {
		return fmt.Errorf("insert update_log cluster_id=%d item_id=%d: %w", clusterID, itemID, err)
	}
	return nil
}

type assignmentLogRecord struct {
	ItemID          int64
	ClusterID       int64
	Decision        string
	MatchPath       string
	Candidates      []candidateRecord
	Breakdown       *ScoreBreakdown
	AttachThreshold float64
	CreatedAt       time.Time
}

func insertAssignmentLogTx(ctx context.Context, tx db.Tx, record assignmentLogRecord) error {
	candidates := record.Candidates
	if candidates == nil {
		candidates = []candidateRecord{}
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("marshal assignment log candidates: %w", err)
	}

	var breakdownJSON []byte
	if record.Breakdown != nil {
		breakdownJSON, err = json.Marshal(record.Breakdown)
	} else {
		breakdownJSON = []byte("{}")
	}
	if err != nil {
		return fmt.Errorf("marshal assignment log breakdown: %w", err)
	}

	const insert = `
INSERT INTO news.cluster_assignment_logs (
	item_id,
	cluster_id,
	decision,
	match_path,
	candidates,
	score_breakdown,
	attach_threshold,
	created_at
)
VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8)
ON CONFLICT (item_id) DO NOTHING
`
	if _, err := tx.Exec(
		ctx,
		insert,
		record.ItemID,
		record.ClusterID,
		record.Decision,
		record.MatchPath,
		string(candidatesJSON),
		string(breakdownJSON),
		record.AttachThreshold,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert assignment log item_id=%d: %w", record.ItemID, err)
	}
	return nil
}
