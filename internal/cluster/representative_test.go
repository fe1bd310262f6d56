package cluster

import (
	"testing"
	"time"
)

func TestRepresentativeScore(t *testing.T) {
	t.Parallel()

	base := memberItem{
		ItemID:          1,
		Title:           "Quantum computing reaches a practical milestone in finance",
		ContentType:     ContentTypeNews,
		ReliabilityTier: 2,
	}

	tests := []struct {
		name   string
		mutate func(m memberItem) memberItem
		want   float64
	}{
		{
			name:   "news tier two sweet spot title",
			mutate: func(m memberItem) memberItem { return m },
			want:   1 + 1.0 + 1, // news weight + tier bonus + length bonus
		},
		{
			name: "peer reviewed outranks news",
			mutate: func(m memberItem) memberItem {
				m.ContentType = ContentTypePeerReviewed
				return m
			},
			want: 5 + 1.0 + 1,
		},
		{
			name: "unknown content type falls back to news weight",
			mutate: func(m memberItem) memberItem {
				m.ContentType = "podcast"
				return m
			},
			want: 1 + 1.0 + 1,
		},
		{
			name: "tier one beats tier three",
			mutate: func(m memberItem) memberItem {
				m.ReliabilityTier = 1
				return m
			},
			want: 1 + 1.5 + 1,
		},
		{
			name: "out of range tier clamps",
			mutate: func(m memberItem) memberItem {
				m.ReliabilityTier = 9
				return m
			},
			want: 1 + 0.5 + 1,
		},
		{
			name: "short title loses the length bonus",
			mutate: func(m memberItem) memberItem {
				m.Title = "Quantum milestone"
				return m
			},
			want: 1 + 1.0,
		},
		{
			name: "all caps penalized",
			mutate: func(m memberItem) memberItem {
				m.Title = "QUANTUM COMPUTING REACHES A PRACTICAL MILESTONE IN FINANCE"
				return m
			},
			want: 1 + 1.0 + 1 - 2,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := representativeScore(tt.mutate(base))
			if !almostEqual(got, tt.want) {
				t.Errorf("representativeScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPickRepresentative(t *testing.T) {
	t.Parallel()

	seen := func(h int) time.Time {
		return time.Date(2026, 8, 1, h, 0, 0, 0, time.UTC)
	}

	t.Run("empty membership", func(t *testing.T) {
		t.Parallel()
		if _, ok := pickRepresentative(nil); ok {
			t.Error("expected no representative for empty membership")
		}
	})

	t.Run("peer reviewed beats press release", func(t *testing.T) {
		t.Parallel()
		members := []memberItem{
			{ItemID: 1, Title: "Company announces breakthrough in quantum computing", ContentType: ContentTypePressRelease, ReliabilityTier: 1, SeenAt: seen(10)},
			{ItemID: 2, Title: "Evidence for logical qubit error suppression at scale", ContentType: ContentTypePeerReviewed, ReliabilityTier: 2, SeenAt: seen(8)},
		}
		best, ok := pickRepresentative(members)
		if !ok || best.ItemID != 2 {
			t.Errorf("picked item %d, want 2", best.ItemID)
		}
	})

	t.Run("later press release does not displace peer reviewed", func(t *testing.T) {
		t.Parallel()
		members := []memberItem{
			{ItemID: 1, Title: "Evidence for logical qubit error suppression at scale", ContentType: ContentTypePeerReviewed, ReliabilityTier: 2, SeenAt: seen(8)},
			{ItemID: 9, Title: "Vendor celebrates its latest quantum computing milestone", ContentType: ContentTypePressRelease, ReliabilityTier: 1, SeenAt: seen(23)},
		}
		best, ok := pickRepresentative(members)
		if !ok || best.ItemID != 1 {
			t.Errorf("picked item %d, want 1", best.ItemID)
		}
	})

	t.Run("score tie resolves to most recent", func(t *testing.T) {
		t.Parallel()
		members := []memberItem{
			{ItemID: 1, Title: "First wire story about the fusion reactor milestone", ContentType: ContentTypeNews, ReliabilityTier: 2, SeenAt: seen(8)},
			{ItemID: 2, Title: "Later wire story about the fusion reactor milestone", ContentType: ContentTypeNews, ReliabilityTier: 2, SeenAt: seen(12)},
		}
		best, ok := pickRepresentative(members)
		if !ok || best.ItemID != 2 {
			t.Errorf("picked item %d, want 2", best.ItemID)
		}
	})

	t.Run("full tie resolves to higher item id", func(t *testing.T) {
		t.Parallel()
		members := []memberItem{
			{ItemID: 7, Title: "Wire story about the fusion reactor build milestone", ContentType: ContentTypeNews, ReliabilityTier: 2, SeenAt: seen(8)},
			{ItemID: 3, Title: "Other story about the fusion reactor build milestone", ContentType: ContentTypeNews, ReliabilityTier: 2, SeenAt: seen(8)},
		}
		best, ok := pickRepresentative(members)
		if !ok || best.ItemID != 7 {
			t.Errorf("picked item %d, want 7", best.ItemID)
		}
	})
}

func TestIsAllCaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  bool
	}{
		{"BREAKING NEWS ON MARKETS", true},
		{"Breaking news on markets", false},
		{"ALL CAPS WITH 123 NUMBERS", true},
		{"", false},
		{"1234 5678", false},
	}

	for _, tt := range tests {
		tt := tt
		if got := isAllCaps(tt.title); got != tt.want {
			t.Errorf("isAllCaps(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}
