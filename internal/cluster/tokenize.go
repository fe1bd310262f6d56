package cluster

import (
	"sort"
	"strings"
	"unicode"

	"horse.fit/storyline/internal/tuning"
)

// TitleTokens normalizes a title into its set of salient tokens: lowercase,
// hyphens become spaces, split on non-alphanumeric boundaries, stopwords
// dropped, short tokens kept only when explicitly allow-listed.
func TitleTokens(cfg *tuning.Config, text string) map[string]struct{} {
	lowered := strings.ToLower(strings.ReplaceAll(text, "-", " "))

	parts := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	set := make(map[string]struct{}, len(parts))
	for _, token := range parts {
		if cfg.IsStopword(token) {
			continue
		}
		if len([]rune(token)) >= cfg.RareTokenMinLength || cfg.AllowsShortToken(token) {
			set[token] = struct{}{}
		}
	}
	return set
}

// SortedTokens returns the token set in lexical order, the deterministic
// form used to build the full-text search query.
func SortedTokens(set map[string]struct{}) []string {
	tokens := make([]string, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func tokenOverlap(left, right map[string]struct{}) int {
	if len(left) > len(right) {
		left, right = right, left
	}
	overlap := 0
	for token := range left {
		if _, ok := right[token]; ok {
			overlap++
		}
	}
	return overlap
}

func tokenJaccard(left, right map[string]struct{}, overlap int) float64 {
	union := len(left) + len(right) - overlap
	if union <= 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}
