package cluster

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"horse.fit/storyline/internal/db"
	"horse.fit/storyline/internal/tuning"
)

// lexicalCandidate is one cluster returned by full-text retrieval, in
// retrieval order (text-search rank, then recency, then cluster ID).
type lexicalCandidate struct {
	ClusterID      int64
	CanonicalTitle string
	LastUpdatedAt  time.Time
	Rank           float64
	SharesSource   bool
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// findExternalIDClusterTx looks for a cluster whose members share the item's
// exact arXiv ID or DOI. This path is authoritative: when it returns a
// cluster, lexical retrieval and scoring are skipped entirely.
func findExternalIDClusterTx(ctx context.Context, q db.Querier, arxivID, doi *string) (int64, bool, error) {
	arxiv := derefOrEmpty(arxivID)
	normalizedDOI := derefOrEmpty(doi)
	if arxiv == "" && normalizedDOI == "" {
		return 0, false, nil
	}

	const query = `
SELECT c.cluster_id
FROM news.story_clusters c
JOIN news.cluster_items ci
	ON ci.cluster_id = c.cluster_id
JOIN news.items i
	ON i.item_id = ci.item_id
WHERE c.status IN ('active', 'pending')
  AND (($1 <> '' AND i.arxiv_id = $1) OR ($2 <> '' AND i.doi = $2))
ORDER BY c.last_updated_at DESC, c.cluster_id ASC
LIMIT 1
`

	var clusterID int64
	if err := q.QueryRow(ctx, query, arxiv, normalizedDOI).Scan(&clusterID); err != nil {
		if db.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find external-id cluster: %w", err)
	}
	return clusterID, true, nil
}

// findLexicalCandidatesTx searches the per-cluster search documents for
// plausible matches within the configured lookback window. Ordering is made
// fully explicit (rank, recency, cluster ID) so retrieval order, and with it
// the decision tie-break, is reproducible across runs.
func findLexicalCandidatesTx(
	ctx context.Context,
	q db.Querier,
	cfg *tuning.Config,
	tokens map[string]struct{},
	sourceID int64,
	now time.Time,
) ([]lexicalCandidate, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	searchQuery := strings.Join(SortedTokens(tokens), " ")
	cutoff := now.AddDate(0, 0, -cfg.TimeWindowDays)

	builder := psql.
		Select("c.cluster_id", "c.canonical_title", "c.last_updated_at").
		Column(sq.Expr(
			"ts_rank_cd(d.search_vector, plainto_tsquery(d.language::regconfig, ?)) AS rank",
			searchQuery,
		)).
		Column(sq.Expr(`EXISTS (
			SELECT 1
			FROM news.cluster_items ci
			JOIN news.items mi ON mi.item_id = ci.item_id
			WHERE ci.cluster_id = c.cluster_id AND mi.source_id = ?
		) AS shares_source`, sourceID)).
		From("news.story_clusters c").
		Join("news.cluster_search_docs d ON d.cluster_id = c.cluster_id").
		Where(sq.Eq{"c.status": []string{StatusActive, StatusPending}}).
		Where(sq.GtOrEq{"c.last_updated_at": cutoff.UTC()}).
		Where(sq.Expr("d.search_vector @@ plainto_tsquery(d.language::regconfig, ?)", searchQuery)).
		OrderBy("rank DESC", "c.last_updated_at DESC", "c.cluster_id ASC").
		Limit(uint64(cfg.MaxCandidates))

	sqlText, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lexical candidate query: %w", err)
	}

	rows, err := q.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query lexical candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]lexicalCandidate, 0, cfg.MaxCandidates)
	for rows.Next() {
		var c lexicalCandidate
		if err := rows.Scan(&c.ClusterID, &c.CanonicalTitle, &c.LastUpdatedAt, &c.Rank, &c.SharesSource); err != nil {
			return nil, fmt.Errorf("scan lexical candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical candidates: %w", err)
	}
	return candidates, nil
}

func derefOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
