package cluster

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"horse.fit/storyline/internal/db"
	"horse.fit/storyline/internal/langdetect"
	"horse.fit/storyline/internal/tuning"
)

// RecencyScore decays a cluster's freshness with a 24-hour half-life
// constant: 1.0 for activity right now, approaching 0 as it ages.
func RecencyScore(ageHours float64) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-ageHours / 24)
}

// TrendingScore composes short-term velocity and source diversity, decayed
// by recency. Source diversity saturates at 10 distinct sources.
func TrendingScore(velocity6h, velocity24h, sourceCount int, recency float64) float64 {
	diversity := math.Min(float64(sourceCount), 10) * 0.3
	return (float64(velocity6h) + 0.5*float64(velocity24h) + diversity) * recency
}

type clusterAggregates struct {
	ClusterID       int64
	ItemCount       int
	SourceCount     int
	SourceTypeCount int
	Velocity6h      int
	Velocity24h     int
	LastMatchedAt   time.Time
}

// refreshClusters recomputes rollups for the given clusters and rebuilds each
// one's search document. The same code path serves both execution modes,
// immediate (single cluster inside the item's transaction) and batched (dirty
// set after a whole run), so both produce identical results for the same
// membership state. Every output is a pure function of current membership.
func refreshClusters(ctx context.Context, q db.Querier, cfg *tuning.Config, clusterIDs []int64, now time.Time) error {
	if len(clusterIDs) == 0 {
		return nil
	}

	builder := psql.
		Select(
			"ci.cluster_id",
			"COUNT(*)::int AS item_count",
			"COUNT(DISTINCT i.source_id)::int AS source_count",
			"COUNT(DISTINCT s.source_type)::int AS source_type_count",
		).
		Column(sq.Expr("COUNT(*) FILTER (WHERE ci.matched_at >= ?)::int AS velocity_6h", now.Add(-6*time.Hour))).
		Column(sq.Expr("COUNT(*) FILTER (WHERE ci.matched_at >= ?)::int AS velocity_24h", now.Add(-24*time.Hour))).
		Column("MAX(ci.matched_at) AS last_matched_at").
		From("news.cluster_items ci").
		Join("news.items i ON i.item_id = ci.item_id").
		Join("news.sources s ON s.source_id = i.source_id").
		Where(sq.Eq{"ci.cluster_id": clusterIDs}).
		GroupBy("ci.cluster_id")

	sqlText, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build cluster aggregate query: %w", err)
	}

	rows, err := q.Query(ctx, sqlText, args...)
	if err != nil {
		return fmt.Errorf("query cluster aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make([]clusterAggregates, 0, len(clusterIDs))
	for rows.Next() {
		var agg clusterAggregates
		if err := rows.Scan(
			&agg.ClusterID,
			&agg.ItemCount,
			&agg.SourceCount,
			&agg.SourceTypeCount,
			&agg.Velocity6h,
			&agg.Velocity24h,
			&agg.LastMatchedAt,
		); err != nil {
			return fmt.Errorf("scan cluster aggregates: %w", err)
		}
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cluster aggregates: %w", err)
	}

	const update = `
UPDATE news.story_clusters
SET item_count = $2,
	source_count = $3,
	source_type_count = $4,
	velocity_6h = $5,
	velocity_24h = $6,
	recency_score = $7,
	trending_score = $8,
	last_updated_at = $9,
	updated_at = $10
WHERE cluster_id = $1
`

	for _, agg := range aggregates {
		recency := RecencyScore(now.Sub(agg.LastMatchedAt).Hours())
		trending := TrendingScore(agg.Velocity6h, agg.Velocity24h, agg.SourceCount, recency)

		if _, err := q.Exec(
			ctx,
			update,
			agg.ClusterID,
			agg.ItemCount,
			agg.SourceCount,
			agg.SourceTypeCount,
			agg.Velocity6h,
			agg.Velocity24h,
			recency,
			trending,
			agg.LastMatchedAt,
			now,
		); err != nil {
			return fmt.Errorf("update cluster rollups cluster_id=%d: %w", agg.ClusterID, err)
		}
	}

	// Search docs are rebuilt after the rollups so lexical retrieval always
	// indexes the membership state the rollups describe.
	for _, agg := range aggregates {
		if err := rebuildSearchDoc(ctx, q, cfg, agg.ClusterID, now); err != nil {
			return err
		}
	}

	return nil
}

// rebuildSearchDoc regenerates the denormalized full-text document for one
// cluster: canonical title, the most recent member titles (capped), and all
// member external identifiers.
func rebuildSearchDoc(ctx context.Context, q db.Querier, cfg *tuning.Config, clusterID int64, now time.Time) error {
	const headQuery = `
SELECT canonical_title
FROM news.story_clusters
WHERE cluster_id = $1
`
	var canonicalTitle string
	if err := q.QueryRow(ctx, headQuery, clusterID).Scan(&canonicalTitle); err != nil {
		return fmt.Errorf("query cluster title cluster_id=%d: %w", clusterID, err)
	}

	const membersQuery = `
SELECT i.title, i.arxiv_id, i.doi
FROM news.cluster_items ci
JOIN news.items i
	ON i.item_id = ci.item_id
WHERE ci.cluster_id = $1
ORDER BY ci.matched_at DESC, i.item_id DESC
LIMIT $2
`

	rows, err := q.Query(ctx, membersQuery, clusterID, cfg.SearchDocTitlesLimit)
	if err != nil {
		return fmt.Errorf("query search doc members cluster_id=%d: %w", clusterID, err)
	}
	defer rows.Close()

	lines := make([]string, 0, cfg.SearchDocTitlesLimit+1)
	lines = append(lines, canonicalTitle)
	for rows.Next() {
		var title string
		var arxivID, doi *string
		if err := rows.Scan(&title, &arxivID, &doi); err != nil {
			return fmt.Errorf("scan search doc member: %w", err)
		}
		if title != canonicalTitle {
			lines = append(lines, title)
		}
		if arxivID != nil && *arxivID != "" {
			lines = append(lines, *arxivID)
		}
		if doi != nil && *doi != "" {
			lines = append(lines, *doi)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate search doc members: %w", err)
	}

	docText := strings.Join(lines, "\n")
	language := searchConfigForText(docText)

	const upsert = `
INSERT INTO news.cluster_search_docs (cluster_id, doc_text, language, search_vector, updated_at)
VALUES ($1, $2, $3, to_tsvector($3::regconfig, $2), $4)
ON CONFLICT (cluster_id) DO UPDATE
SET doc_text = EXCLUDED.doc_text,
	language = EXCLUDED.language,
	search_vector = EXCLUDED.search_vector,
	updated_at = EXCLUDED.updated_at
`
	if _, err := q.Exec(ctx, upsert, clusterID, docText, language, now); err != nil {
		return fmt.Errorf("upsert search doc cluster_id=%d: %w", clusterID, err)
	}
	return nil
}

// searchConfigForText maps detected language to a Postgres text-search
// configuration. Only English gets stemming; everything else indexes with
// the neutral config.
func searchConfigForText(text string) string {
	if langdetect.DetectISO6391(text) == "en" {
		return "english"
	}
	return "simple"
}
