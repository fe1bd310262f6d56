package cluster

import (
	"math"
	"time"

	"horse.fit/storyline/internal/tuning"
)

// overlapSaturation caps the token-overlap term so very long titles cannot
// accumulate unbounded reward.
const overlapSaturation = 6.0

// ScoreBreakdown is the full per-candidate scoring record persisted to the
// assignment log.
type ScoreBreakdown struct {
	TokenOverlap   int     `json:"token_overlap"`
	TitleJaccard   float64 `json:"title_jaccard"`
	TimeProximity  float64 `json:"time_proximity"`
	OverlapTerm    float64 `json:"overlap_term"`
	BaseScore      float64 `json:"base_score"`
	NewSourceBonus float64 `json:"new_source_bonus"`
	TotalScore     float64 `json:"total_score"`
	HighConfidence bool    `json:"high_confidence"`
}

// ScoreCandidate computes the weighted similarity between an item and a
// candidate cluster. Hard gates run first: a candidate below the overlap or
// jaccard floors, or caught by the single-token guard, is rejected outright
// (ok=false) regardless of what the weighted score would have been. A single
// shared rare token is not reliable evidence of the same story.
//
// Pure function of its inputs; no hidden state.
func ScoreCandidate(
	cfg *tuning.Config,
	itemTokens map[string]struct{},
	candidateTokens map[string]struct{},
	itemSeenAt time.Time,
	clusterUpdatedAt time.Time,
	sharesSource bool,
) (ScoreBreakdown, bool) {
	overlap := tokenOverlap(itemTokens, candidateTokens)
	if overlap < cfg.Thresholds.MinTokenOverlap {
		return ScoreBreakdown{}, false
	}

	jaccard := tokenJaccard(itemTokens, candidateTokens, overlap)
	if jaccard < cfg.Thresholds.MinTitleJaccard {
		return ScoreBreakdown{}, false
	}

	if cfg.Thresholds.SingleTokenGuard && overlap == 1 {
		return ScoreBreakdown{}, false
	}

	proximity := TimeProximity(itemSeenAt, clusterUpdatedAt, cfg.TimeDecayDays)
	overlapTerm := math.Min(float64(overlap)/overlapSaturation, 1.0)

	base := cfg.ScoringWeights.TitleJaccard*jaccard +
		cfg.ScoringWeights.TimeProximity*proximity +
		cfg.ScoringWeights.TokenOverlap*overlapTerm

	bonus := 0.0
	if !sharesSource {
		bonus = cfg.Bonuses.NewSourceBonus
	}

	total := base + bonus

	return ScoreBreakdown{
		TokenOverlap:   overlap,
		TitleJaccard:   jaccard,
		TimeProximity:  proximity,
		OverlapTerm:    overlapTerm,
		BaseScore:      base,
		NewSourceBonus: bonus,
		TotalScore:     total,
		HighConfidence: total >= cfg.Thresholds.HighConfidenceAttachScore,
	}, true
}

// TimeProximity is exponential decay over the absolute distance between two
// timestamps: 1.0 at zero distance, asymptotically approaching 0, never
// negative.
func TimeProximity(a, b time.Time, decayDays float64) float64 {
	if decayDays <= 0 {
		return 0
	}
	deltaDays := math.Abs(a.Sub(b).Hours()) / 24
	return math.Exp(-deltaDays / decayDays)
}
