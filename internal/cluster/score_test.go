package cluster

import (
	"math"
	"testing"
	"time"
)

const scoreEpsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < scoreEpsilon
}

func TestScoreCandidateGates(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		itemTokens      map[string]struct{}
		candidateTokens map[string]struct{}
	}{
		{
			name:            "overlap below floor",
			itemTokens:      tokenSet("quantum", "computing", "finance"),
			candidateTokens: tokenSet("quantum", "biology", "cells"),
		},
		{
			name:            "no overlap at all",
			itemTokens:      tokenSet("alpha", "beta"),
			candidateTokens: tokenSet("gamma", "delta"),
		},
		{
			name:            "jaccard below floor",
			itemTokens:      tokenSet("a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "shared1", "shared2"),
			candidateTokens: tokenSet("b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8", "shared1", "shared2"),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, ok := ScoreCandidate(cfg, tt.itemTokens, tt.candidateTokens, now, now, false)
			if ok {
				t.Error("expected candidate rejected by hard gate")
			}
		})
	}
}

func TestScoreCandidateSingleTokenGuard(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	// Relax the overlap floor so the guard itself is the deciding gate.
	cfg.Thresholds.MinTokenOverlap = 1
	cfg.Thresholds.MinTitleJaccard = 0

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	item := tokenSet("superconductor", "breakthrough")
	candidate := tokenSet("superconductor", "market")

	if _, ok := ScoreCandidate(cfg, item, candidate, now, now, false); ok {
		t.Error("expected single shared token rejected while guard is on")
	}

	cfg.Thresholds.SingleTokenGuard = false
	if _, ok := ScoreCandidate(cfg, item, candidate, now, now, false); !ok {
		t.Error("expected single shared token accepted with guard off")
	}
}

func TestScoreCandidateBreakdown(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	item := tokenSet("quantum", "computing", "finance", "banks")
	candidate := tokenSet("quantum", "computing", "finance", "trading")

	breakdown, ok := ScoreCandidate(cfg, item, candidate, now, now, false)
	if !ok {
		t.Fatal("expected candidate to pass the gates")
	}

	if breakdown.TokenOverlap != 3 {
		t.Errorf("TokenOverlap = %d, want 3", breakdown.TokenOverlap)
	}
	if !almostEqual(breakdown.TitleJaccard, 0.6) {
		t.Errorf("TitleJaccard = %v, want 0.6", breakdown.TitleJaccard)
	}
	if !almostEqual(breakdown.TimeProximity, 1.0) {
		t.Errorf("TimeProximity = %v, want 1.0", breakdown.TimeProximity)
	}
	if !almostEqual(breakdown.OverlapTerm, 0.5) {
		t.Errorf("OverlapTerm = %v, want 0.5", breakdown.OverlapTerm)
	}

	wantBase := 1.0*0.6 + 0.5*1.0 + 0.5*0.5
	if !almostEqual(breakdown.BaseScore, wantBase) {
		t.Errorf("BaseScore = %v, want %v", breakdown.BaseScore, wantBase)
	}
	wantTotal := wantBase + 0.1
	if !almostEqual(breakdown.TotalScore, wantTotal) {
		t.Errorf("TotalScore = %v, want %v", breakdown.TotalScore, wantTotal)
	}
	if !breakdown.HighConfidence {
		t.Errorf("HighConfidence = false, want true for total %v >= 1.4", breakdown.TotalScore)
	}
}

func TestScoreCandidateNewSourceBonus(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	item := tokenSet("fusion", "reactor", "milestone")
	candidate := tokenSet("fusion", "reactor", "record")

	withBonus, ok := ScoreCandidate(cfg, item, candidate, now, now, false)
	if !ok {
		t.Fatal("expected candidate to pass the gates")
	}
	withoutBonus, ok := ScoreCandidate(cfg, item, candidate, now, now, true)
	if !ok {
		t.Fatal("expected candidate to pass the gates")
	}

	if !almostEqual(withBonus.NewSourceBonus, cfg.Bonuses.NewSourceBonus) {
		t.Errorf("NewSourceBonus = %v, want %v", withBonus.NewSourceBonus, cfg.Bonuses.NewSourceBonus)
	}
	if !almostEqual(withoutBonus.NewSourceBonus, 0) {
		t.Errorf("NewSourceBonus for shared source = %v, want 0", withoutBonus.NewSourceBonus)
	}
	if !almostEqual(withBonus.TotalScore-withoutBonus.TotalScore, cfg.Bonuses.NewSourceBonus) {
		t.Errorf("bonus delta = %v, want %v", withBonus.TotalScore-withoutBonus.TotalScore, cfg.Bonuses.NewSourceBonus)
	}
}

func TestScoreCandidateOverlapSaturation(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Thresholds.MinTitleJaccard = 0

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	shared := []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8", "t9", "t10"}
	item := tokenSet(shared...)
	candidate := tokenSet(shared...)

	breakdown, ok := ScoreCandidate(cfg, item, candidate, now, now, true)
	if !ok {
		t.Fatal("expected candidate to pass the gates")
	}
	if !almostEqual(breakdown.OverlapTerm, 1.0) {
		t.Errorf("OverlapTerm = %v, want saturated at 1.0", breakdown.OverlapTerm)
	}
}

func TestTimeProximity(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		a, b      time.Time
		decayDays float64
		want      float64
	}{
		{
			name:      "same instant",
			a:         base,
			b:         base,
			decayDays: 3,
			want:      1.0,
		},
		{
			name:      "one decay constant apart",
			a:         base,
			b:         base.Add(3 * 24 * time.Hour),
			decayDays: 3,
			want:      math.Exp(-1),
		},
		{
			name:      "symmetric in argument order",
			a:         base.Add(48 * time.Hour),
			b:         base,
			decayDays: 3,
			want:      math.Exp(-2.0 / 3.0),
		},
		{
			name:      "zero decay yields zero",
			a:         base,
			b:         base,
			decayDays: 0,
			want:      0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TimeProximity(tt.a, tt.b, tt.decayDays)
			if !almostEqual(got, tt.want) {
				t.Errorf("TimeProximity = %v, want %v", got, tt.want)
			}
		})
	}
}
