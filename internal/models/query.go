package models

import "strings"

// Candidate sources for a disease search.
const (
	// CandidatesAll ranks every stored record.
	CandidatesAll = "all"
	// CandidatesKeyword ranks only records that contain a query variant.
	CandidatesKeyword = "keyword"
)

// SearchQuery represents a disease search request.
type SearchQuery struct {
	Query           string `json:"query"`
	Candidates      string `json:"candidates,omitempty"`       // "all" (default) or "keyword"
	SkipTranslation bool   `json:"skip_translation,omitempty"` // search the raw query even if it contains Hangul
}

// Validate ensures the search query has valid fields and sets defaults.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return InvalidInputf("query cannot be empty")
	}
	switch q.Candidates {
	case "":
		q.Candidates = CandidatesAll
	case CandidatesAll, CandidatesKeyword:
	default:
		return InvalidInputf("unknown candidate source %q", q.Candidates)
	}
	return nil
}

// QueryVariants returns the query and its singular form (trailing "s" removed),
// without duplicates. An empty singular form is dropped.
func QueryVariants(q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	variants := []string{q}
	if singular := strings.TrimRight(q, "s"); singular != "" && singular != q {
		variants = append(variants, singular)
	}
	return variants
}
