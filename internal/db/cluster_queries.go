package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ClusterSummary is a read model used by the feed API and list commands.
type ClusterSummary struct {
	ClusterID            int64     `json:"cluster_id"`
	ClusterUUID          string    `json:"cluster_uuid"`
	Status               string    `json:"status"`
	CanonicalTitle       string    `json:"canonical_title"`
	RepresentativeItemID *int64    `json:"representative_item_id,omitempty"`
	ItemCount            int       `json:"item_count"`
	SourceCount          int       `json:"source_count"`
	SourceTypeCount      int       `json:"source_type_count"`
	Velocity6h           int       `json:"velocity_6h"`
	Velocity24h          int       `json:"velocity_24h"`
	RecencyScore         float64   `json:"recency_score"`
	TrendingScore        float64   `json:"trending_score"`
	LastUpdatedAt        time.Time `json:"last_updated_at"`
	CreatedAt            time.Time `json:"created_at"`
}

// ClusterDetail contains one cluster and all member items.
type ClusterDetail struct {
	Cluster ClusterSummary      `json:"cluster"`
	Items   []ClusterDetailItem `json:"items"`
}

// ClusterDetailItem is an item row within a cluster.
type ClusterDetailItem struct {
	ItemID      int64      `json:"item_id"`
	ItemUUID    string     `json:"item_uuid"`
	Title       string     `json:"title"`
	URL         *string    `json:"url,omitempty"`
	SourceName  string     `json:"source_name"`
	ContentType string     `json:"content_type"`
	Role        string     `json:"role"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	MatchedAt   time.Time  `json:"matched_at"`
}

const clusterSummaryColumns = `
	c.cluster_id,
	c.cluster_uuid::text,
	c.status,
	c.canonical_title,
	c.representative_item_id,
	c.item_count,
	c.source_count,
	c.source_type_count,
	c.velocity_6h,
	c.velocity_24h,
	c.recency_score,
	c.trending_score,
	c.last_updated_at,
	c.created_at
`

// ListActiveClusters lists active clusters ranked by trending score; the feed
// surface for downstream consumers.
func (p *Pool) ListActiveClusters(ctx context.Context, limit int) ([]ClusterSummary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	q := `
SELECT` + clusterSummaryColumns + `
FROM news.story_clusters c
WHERE c.status = 'active'
ORDER BY c.trending_score DESC, c.last_updated_at DESC, c.cluster_id DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query active clusters: %w", err)
	}
	defer rows.Close()

	return scanClusterSummaries(rows, limit)
}

// ListRecentClusters lists clusters in any of the given statuses with recent
// assignment activity; the CLI inspection surface.
func (p *Pool) ListRecentClusters(ctx context.Context, statuses []string, since time.Time, limit int) ([]ClusterSummary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	normalized := normalizeStatuses(statuses)
	if len(normalized) == 0 {
		normalized = []string{"pending", "active"}
	}

	q, args, err := psql.
		Select(clusterSummaryColumns).
		From("news.story_clusters c").
		Where(sq.Eq{"c.status": normalized}).
		Where(sq.GtOrEq{"c.last_updated_at": since.UTC()}).
		OrderBy("c.last_updated_at DESC", "c.cluster_id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent clusters query: %w", err)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent clusters: %w", err)
	}
	defer rows.Close()

	return scanClusterSummaries(rows, limit)
}

// GetClusterDetail returns one cluster by UUID with all member items.
func (p *Pool) GetClusterDetail(ctx context.Context, clusterUUID string) (*ClusterDetail, error) {
	trimmedUUID := strings.TrimSpace(clusterUUID)
	if trimmedUUID == "" {
		return nil, fmt.Errorf("cluster UUID is required")
	}

	headQuery := `
SELECT` + clusterSummaryColumns + `
FROM news.story_clusters c
WHERE c.cluster_uuid = $1::uuid
`

	var head ClusterSummary
	if err := scanClusterSummary(p.QueryRow(ctx, headQuery, trimmedUUID), &head); err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query cluster detail header: %w", err)
	}

	const membersQuery = `
SELECT
	i.item_id,
	i.item_uuid::text,
	i.title,
	i.canonical_url,
	s.name,
	i.content_type,
	ci.role,
	i.published_at,
	ci.matched_at
FROM news.cluster_items ci
JOIN news.items i
	ON i.item_id = ci.item_id
JOIN news.sources s
	ON s.source_id = i.source_id
WHERE ci.cluster_id = $1
ORDER BY ci.matched_at DESC, i.item_id DESC
`

	rows, err := p.Query(ctx, membersQuery, head.ClusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster members: %w", err)
	}
	defer rows.Close()

	members := make([]ClusterDetailItem, 0, head.ItemCount)
	for rows.Next() {
		var member ClusterDetailItem
		if err := rows.Scan(
			&member.ItemID,
			&member.ItemUUID,
			&member.Title,
			&member.URL,
			&member.SourceName,
			&member.ContentType,
			&member.Role,
			&member.PublishedAt,
			&member.MatchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cluster member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster members: %w", err)
	}

	return &ClusterDetail{
		Cluster: head,
		Items:   members,
	}, nil
}

func scanClusterSummaries(rows *Rows, capacity int) ([]ClusterSummary, error) {
	if capacity < 0 {
		capacity = 0
	}

	items := make([]ClusterSummary, 0, capacity)
	for rows.Next() {
		var row ClusterSummary
		if err := rows.Scan(
			&row.ClusterID,
			&row.ClusterUUID,
			&row.Status,
			&row.CanonicalTitle,
			&row.RepresentativeItemID,
			&row.ItemCount,
			&row.SourceCount,
			&row.SourceTypeCount,
			&row.Velocity6h,
			&row.Velocity24h,
			&row.RecencyScore,
			&row.TrendingScore,
			&row.LastUpdatedAt,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cluster summary row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster summary rows: %w", err)
	}
	return items, nil
}

func scanClusterSummary(row *Row, dst *ClusterSummary) error {
	return row.Scan(
		&dst.ClusterID,
		&dst.ClusterUUID,
		&dst.Status,
		&dst.CanonicalTitle,
		&dst.RepresentativeItemID,
		&dst.ItemCount,
		&dst.SourceCount,
		&dst.SourceTypeCount,
		&dst.Velocity6h,
		&dst.Velocity24h,
		&dst.RecencyScore,
		&dst.TrendingScore,
		&dst.LastUpdatedAt,
		&dst.CreatedAt,
	)
}

// normalizeStatuses lowercases and trims status filters, dropping empties.
// Values reach the query as ordinary bind parameters, so no quoting rules
// apply here.
func normalizeStatuses(statuses []string) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		trimmed := strings.ToLower(strings.TrimSpace(status))
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
