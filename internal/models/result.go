package models

// RankedDisease is a disease record with its ranking scores.
type RankedDisease struct {
	Disease     *DiseaseRecord `json:"disease"`
	Similarity  float64        `json:"similarity"`
	Occurrences int            `json:"occurrences"`
}

// SearchResponse is the response for a disease search.
// TitleResults are records whose title contains the query; ContentResults
// are the top keyword-occurrence matches.
type SearchResponse struct {
	Query           string           `json:"query"`
	TranslatedQuery string           `json:"translated_query,omitempty"`
	Variants        []string         `json:"variants"`
	TitleResults    []*RankedDisease `json:"title_results"`
	ContentResults  []*RankedDisease `json:"content_results"`
	Similar         []*RankedDisease `json:"similar"`
	QueryTime       int64            `json:"query_time_ms"`
}
