package cluster

import "testing"

func TestExtractExternalIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		title     string
		url       string
		wantArxiv string
		wantDOI   string
	}{
		{
			name:      "arxiv abs URL",
			title:     "Scaling laws revisited",
			url:       "https://arxiv.org/abs/2406.01234",
			wantArxiv: "2406.01234",
		},
		{
			name:      "arxiv pdf URL with version stripped",
			title:     "Scaling laws revisited",
			url:       "https://arxiv.org/pdf/2406.01234v3",
			wantArxiv: "2406.01234",
		},
		{
			name:      "arxiv label in title",
			title:     "New preprint (arXiv:2312.04567v2) on distillation",
			url:       "https://example.com/post/1",
			wantArxiv: "2312.04567",
		},
		{
			name:    "doi in URL lowercased",
			title:   "Nature paper on room-temperature superconductivity",
			url:     "https://doi.org/10.1038/S41586-024-07123-5",
			wantDOI: "10.1038/s41586-024-07123-5",
		},
		{
			name:    "doi in title with trailing period trimmed",
			title:   "Published today: 10.1126/science.abq1234.",
			url:     "https://example.com/news",
			wantDOI: "10.1126/science.abq1234",
		},
		{
			name:      "both identifiers present",
			title:     "arXiv:2501.00987 now in print, doi:10.1145/3576915.3616677",
			url:       "",
			wantArxiv: "2501.00987",
			wantDOI:   "10.1145/3576915.3616677",
		},
		{
			name:  "url takes precedence over title",
			title: "Comment on arXiv:1901.11111",
			url:   "https://arxiv.org/abs/2405.55555",
			// The URL identifies the item itself; the title mentions
			// another work.
			wantArxiv: "2405.55555",
		},
		{
			name:  "no identifiers",
			title: "Markets rally after rate decision",
			url:   "https://example.com/markets",
		},
		{
			name:      "old-style archive-prefixed id",
			title:     "Classic paper arXiv:hep-th/9901001",
			url:       "",
			wantArxiv: "hep-th/9901001",
		},
		{
			name:      "old-style id with subject class lowercased",
			title:     "Revisiting arXiv:math.GT/0309136",
			url:       "",
			wantArxiv: "math.gt/0309136",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ids := ExtractExternalIDs(tt.title, tt.url)
			if ids.ArxivID != tt.wantArxiv {
				t.Errorf("ArxivID = %q, want %q", ids.ArxivID, tt.wantArxiv)
			}
			if ids.DOI != tt.wantDOI {
				t.Errorf("DOI = %q, want %q", ids.DOI, tt.wantDOI)
			}
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"10.1038/S41586-024-07123-5", "10.1038/s41586-024-07123-5"},
		{"10.1126/science.abq1234.", "10.1126/science.abq1234"},
		{"10.1145/3576915.3616677;", "10.1145/3576915.3616677"},
		{"  10.1000/xyz123  ", "10.1000/xyz123"},
	}

	for _, tt := range tests {
		tt := tt
		if got := normalizeDOI(tt.in); got != tt.want {
			t.Errorf("normalizeDOI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
