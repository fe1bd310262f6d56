package cluster

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"horse.fit/storyline/internal/db"
)

// representativeWindow bounds the reselection scan to the most recent
// members so the rubric stays cheap on large clusters.
const representativeWindow = 50

const (
	titleSweetSpotMin = 30
	titleSweetSpotMax = 160
)

var contentTypeWeights = map[string]float64{
	ContentTypePeerReviewed: 5,
	ContentTypePreprint:     4,
	ContentTypeReport:       3,
	ContentTypePressRelease: 2,
	ContentTypeNews:         1,
}

type memberItem struct {
	ItemID          int64
	Title           string
	ContentType     string
	ReliabilityTier int
	SeenAt          time.Time
}

// representativeScore ranks a member item by how well its title represents
// the cluster: content-type weight first, then source reliability, a bonus
// for headline-length titles and a penalty for shouting.
func representativeScore(m memberItem) float64 {
	score, ok := contentTypeWeights[m.ContentType]
	if !ok {
		score = contentTypeWeights[ContentTypeNews]
	}

	tier := m.ReliabilityTier
	if tier < 1 {
		tier = 1
	}
	if tier > 3 {
		tier = 3
	}
	score += float64(4-tier) * 0.5

	titleLen := len([]rune(strings.TrimSpace(m.Title)))
	if titleLen >= titleSweetSpotMin && titleLen <= titleSweetSpotMax {
		score += 1
	}

	if isAllCaps(m.Title) {
		score -= 2
	}

	return score
}

// pickRepresentative returns the highest-scoring member, ties broken by most
// recent timestamp, then item ID, so reselection is deterministic.
func pickRepresentative(members []memberItem) (memberItem, bool) {
	if len(members) == 0 {
		return memberItem{}, false
	}

	best := members[0]
	bestScore := representativeScore(best)
	for _, m := range members[1:] {
		score := representativeScore(m)
		switch {
		case score > bestScore:
			best, bestScore = m, score
		case score == bestScore && m.SeenAt.After(best.SeenAt):
			best = m
		case score == bestScore && m.SeenAt.Equal(best.SeenAt) && m.ItemID > best.ItemID:
			best = m
		}
	}
	return best, true
}

// reselectRepresentativeTx re-derives the cluster's representative item and
// canonical title from current membership. Runs after every membership change
// so the best available title is always the one displayed.
func reselectRepresentativeTx(ctx context.Context, q db.Querier, clusterID int64, now time.Time) error {
	const query = `
SELECT
	i.item_id,
	i.title,
	i.content_type,
	s.reliability_tier,
	COALESCE(i.published_at, i.fetched_at) AS seen_at
FROM news.cluster_items ci
JOIN news.items i
	ON i.item_id = ci.item_id
JOIN news.sources s
	ON s.source_id = i.source_id
WHERE ci.cluster_id = $1
ORDER BY COALESCE(i.published_at, i.fetched_at) DESC, i.item_id DESC
LIMIT $2
`

	rows, err := q.Query(ctx, query, clusterID, representativeWindow)
	if err != nil {
		return fmt.Errorf("query representative candidates cluster_id=%d: %w", clusterID, err)
	}
	defer rows.Close()

	members := make([]memberItem, 0, representativeWindow)
	for rows.Next() {
		var m memberItem
		if err := rows.Scan(&m.ItemID, &m.Title, &m.ContentType, &m.ReliabilityTier, &m.SeenAt); err != nil {
			return fmt.Errorf("scan representative candidate: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate representative candidates: %w", err)
	}

	best, ok := pickRepresentative(members)
	if !ok {
		return nil
	}

	const update = `
UPDATE news.story_clusters
SET representative_item_id = $2,
	canonical_title = $3,
	updated_at = $4
WHERE cluster_id = $1
`
	if _, err := q.Exec(ctx, update, clusterID, best.ItemID, best.Title, now); err != nil {
		return fmt.Errorf("update representative cluster_id=%d: %w", clusterID, err)
	}
	return nil
}

func isAllCaps(title string) bool {
	letters := 0
	for _, r := range title {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsLower(r) {
			return false
		}
	}
	return letters > 0
}
