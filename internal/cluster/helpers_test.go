package cluster

import (
	"testing"

	"horse.fit/storyline/internal/tuning"
)

const testTuningJSON = `{
  "time_window_days": 14,
  "max_candidates": 25,
  "thresholds": {
    "attach_score": 1.0,
    "high_confidence_attach_score": 1.4,
    "min_token_overlap": 2,
    "min_title_jaccard": 0.18,
    "single_token_guard": true
  },
  "scoring_weights": {
    "title_jaccard": 1.0,
    "time_proximity": 0.5,
    "token_overlap": 0.5
  },
  "bonuses": {
    "new_source_bonus": 0.1
  },
  "time_decay_days": 3,
  "stopwords": ["the", "a", "an", "of", "to", "in", "and", "for", "on", "with"],
  "rare_token_min_length": 3,
  "allow_short_tokens": ["ai", "ml", "go"],
  "search_doc_titles_limit": 12
}`

func testConfig(t *testing.T) *tuning.Config {
	t.Helper()
	cfg, err := tuning.Parse([]byte(testTuningJSON))
	if err != nil {
		t.Fatalf("parse test tuning: %v", err)
	}
	return cfg
}

func tokenSet(tokens ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}
