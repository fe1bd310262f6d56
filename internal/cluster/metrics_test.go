package cluster

import (
	"math"
	"testing"
)

func TestRecencyScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ageHours float64
		want     float64
	}{
		{"zero age", 0, 1.0},
		{"one day old", 24, math.Exp(-1)},
		{"negative age clamps to now", -5, 1.0},
		{"week old", 168, math.Exp(-7)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RecencyScore(tt.ageHours)
			if !almostEqual(got, tt.want) {
				t.Errorf("RecencyScore(%v) = %v, want %v", tt.ageHours, got, tt.want)
			}
		})
	}
}

func TestTrendingScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		v6, v24     int
		sourceCount int
		recency     float64
		want        float64
	}{
		{
			name: "fresh single item cluster",
			v6:   1, v24: 1, sourceCount: 1, recency: 1.0,
			want: 1 + 0.5 + 0.3,
		},
		{
			name: "burst across many sources",
			v6:   4, v24: 10, sourceCount: 6, recency: 1.0,
			want: 4 + 5 + 1.8,
		},
		{
			name: "source diversity saturates at ten",
			v6:   0, v24: 0, sourceCount: 25, recency: 1.0,
			want: 3.0,
		},
		{
			name: "recency scales the whole score",
			v6:   2, v24: 4, sourceCount: 2, recency: 0.5,
			want: (2 + 2 + 0.6) * 0.5,
		},
		{
			name: "dead cluster",
			v6:   0, v24: 0, sourceCount: 3, recency: 0,
			want: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TrendingScore(tt.v6, tt.v24, tt.sourceCount, tt.recency)
			if !almostEqual(got, tt.want) {
				t.Errorf("TrendingScore = %v, want %v", got, tt.want)
			}
		})
	}
}

// A cluster created with one member must carry the same rollups a zero-age
// recompute would produce, so immediate and batched paths agree.
func TestSeedRollupsMatchRecompute(t *testing.T) {
	t.Parallel()

	recency := RecencyScore(0)
	if !almostEqual(recency, 1.0) {
		t.Fatalf("RecencyScore(0) = %v, want 1.0", recency)
	}
	trending := TrendingScore(1, 1, 1, recency)
	if !almostEqual(trending, 1.8) {
		t.Errorf("TrendingScore(1, 1, 1, 1.0) = %v, want 1.8", trending)
	}
}
