package cluster

import (
	"reflect"
	"testing"
)

func TestTitleTokens(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "lowercases and drops stopwords",
			title: "The Rise of Quantum Computing in Finance",
			want:  []string{"computing", "finance", "quantum", "rise"},
		},
		{
			name:  "hyphens split into separate tokens",
			title: "State-of-the-art self-driving benchmark",
			want:  []string{"art", "benchmark", "driving", "self", "state"},
		},
		{
			name:  "short tokens dropped unless allow-listed",
			title: "AI vs ML: an overview",
			want:  []string{"ai", "ml", "overview"},
		},
		{
			name:  "punctuation is a boundary",
			title: "Quantum chips: IBM's next bet?",
			want:  []string{"bet", "chips", "ibm", "next", "quantum"},
		},
		{
			name:  "duplicates collapse into a set",
			title: "Climate climate CLIMATE report",
			want:  []string{"climate", "report"},
		},
		{
			name:  "empty title",
			title: "",
			want:  []string{},
		},
		{
			name:  "only stopwords",
			title: "The Of And",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SortedTokens(TitleTokens(cfg, tt.title))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TitleTokens(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestTitleTokensShortNumberKept(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	// "5" is shorter than the rare-token floor and not allow-listed.
	tokens := TitleTokens(cfg, "Top 5 stories")
	if _, ok := tokens["5"]; ok {
		t.Errorf("expected short numeric token dropped, got %v", SortedTokens(tokens))
	}
	if _, ok := tokens["stories"]; !ok {
		t.Errorf("expected %q kept, got %v", "stories", SortedTokens(tokens))
	}
}

func TestTokenOverlapAndJaccard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		left, right map[string]struct{}
		wantOverlap int
		wantJaccard float64
	}{
		{
			name:        "identical sets",
			left:        tokenSet("alpha", "beta"),
			right:       tokenSet("alpha", "beta"),
			wantOverlap: 2,
			wantJaccard: 1.0,
		},
		{
			name:        "partial overlap",
			left:        tokenSet("alpha", "beta", "gamma"),
			right:       tokenSet("beta", "gamma", "delta"),
			wantOverlap: 2,
			wantJaccard: 0.5,
		},
		{
			name:        "disjoint sets",
			left:        tokenSet("alpha"),
			right:       tokenSet("beta"),
			wantOverlap: 0,
			wantJaccard: 0,
		},
		{
			name:        "both empty",
			left:        tokenSet(),
			right:       tokenSet(),
			wantOverlap: 0,
			wantJaccard: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			overlap := tokenOverlap(tt.left, tt.right)
			if overlap != tt.wantOverlap {
				t.Fatalf("tokenOverlap = %d, want %d", overlap, tt.wantOverlap)
			}
			jaccard := tokenJaccard(tt.left, tt.right, overlap)
			if jaccard != tt.wantJaccard {
				t.Errorf("tokenJaccard = %v, want %v", jaccard, tt.wantJaccard)
			}
		})
	}
}

func TestSortedTokensDeterministic(t *testing.T) {
	t.Parallel()

	set := tokenSet("zebra", "apple", "mango")
	want := []string{"apple", "mango", "zebra"}
	for i := 0; i < 5; i++ {
		if got := SortedTokens(set); !reflect.DeepEqual(got, want) {
			t.Fatalf("SortedTokens = %v, want %v", got, want)
		}
	}
}
