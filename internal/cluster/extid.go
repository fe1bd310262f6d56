package cluster

import (
	"regexp"
	"strings"
)

// External identifier extraction is shared between ingestion backfill and
// clustering so both agree on what counts as a valid arXiv ID or DOI.

// arXiv IDs come in two generations: the 2007+ form (2406.01234) and the
// older archive-prefixed form (hep-th/9901001, math.GT/0309136).
const arxivIDExpr = `(?:[0-9]{4}\.[0-9]{4,5}|[a-z-]+(?:\.[a-z]{2})?/[0-9]{7})`

var (
	arxivURLPattern   = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/(` + arxivIDExpr + `)(?:v[0-9]+)?`)
	arxivLabelPattern = regexp.MustCompile(`(?i)\barxiv:\s*(` + arxivIDExpr + `)(?:v[0-9]+)?\b`)
	doiPattern        = regexp.MustCompile(`(?i)\b(10\.[0-9]{4,9}/[-._;()/:a-zA-Z0-9]+)`)
)

// ExternalIDs holds normalized external identifiers extracted from free text.
type ExternalIDs struct {
	ArxivID string
	DOI     string
}

// ExtractExternalIDs pulls an arXiv ID and/or DOI out of a title and URL.
// Version suffixes are stripped so revisions of the same work compare equal;
// DOIs are lowercased per the DOI handbook's case-insensitivity rule.
func ExtractExternalIDs(title, rawURL string) ExternalIDs {
	var ids ExternalIDs

	for _, text := range []string{rawURL, title} {
		if ids.ArxivID == "" {
			if m := arxivURLPattern.FindStringSubmatch(text); m != nil {
				ids.ArxivID = strings.ToLower(m[1])
			} else if m := arxivLabelPattern.FindStringSubmatch(text); m != nil {
				ids.ArxivID = strings.ToLower(m[1])
			}
		}
		if ids.DOI == "" {
			if m := doiPattern.FindStringSubmatch(text); m != nil {
				ids.DOI = normalizeDOI(m[1])
			}
		}
	}

	return ids
}

func normalizeDOI(raw string) string {
	doi := strings.ToLower(strings.TrimSpace(raw))
	// Sentence-final punctuation is never part of the identifier.
	doi = strings.TrimRight(doi, ".,;)")
	return doi
}
