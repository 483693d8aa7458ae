// Package ranking orders disease candidates by embedding similarity and keyword occurrences.
package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/vector"
)

// Ranking holds the two parallel result lists of a ranking pass.
type Ranking struct {
	// Similar is the union of the similarity set and the keyword set, by similarity descending.
	Similar []*models.RankedDisease `json:"similar"`
	// Keyword is the keyword set by occurrences descending, capped at KeywordTopN.
	Keyword []*models.RankedDisease `json:"keyword"`
}

// Ranker scores candidates against a query. It performs no I/O and is safe for concurrent use.
type Ranker struct {
	config *Config
}

// NewRanker creates a new Ranker with the given configuration.
func NewRanker(config *Config) *Ranker {
	if config == nil {
		config = DefaultConfig()
	}
	config.ApplyDefaults()
	return &Ranker{config: config}
}

// Config returns the ranker configuration.
func (r *Ranker) Config() Config {
	return *r.config
}

// Rank scores candidates by cosine similarity to queryEmbedding and counts
// case-insensitive occurrences of queryText in their paragraphs and attribute values.
// Every candidate embedding must be finite and have the query's length; otherwise
// models.ErrInvalidInput is returned before anything is scored.
func (r *Ranker) Rank(queryEmbedding []float32, candidates []*models.DiseaseRecord, queryText string) (*Ranking, error) {
	out := &Ranking{
		Similar: []*models.RankedDisease{},
		Keyword: []*models.RankedDisease{},
	}
	if len(candidates) == 0 {
		return out, nil
	}
	if err := vector.Validate(queryEmbedding); err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if len(c.Embedding) != len(queryEmbedding) {
			return nil, models.InvalidInputf("embedding of %q has %d dimensions, query has %d",
				c.Title, len(c.Embedding), len(queryEmbedding))
		}
		if err := vector.Validate(c.Embedding); err != nil {
			return nil, fmt.Errorf("embedding of %q: %w", c.Title, err)
		}
	}

	needle := strings.ToLower(queryText)
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		sim, err := vector.Cosine(queryEmbedding, c.Embedding)
		if err != nil {
			return nil, err
		}
		ranked := &models.RankedDisease{Disease: c, Similarity: sim}
		if needle != "" {
			ranked.Occurrences = CountOccurrences(c.Content(), needle)
		}

		inSimilar := sim >= r.config.SimilarityThreshold
		inKeyword := ranked.Occurrences > 0
		if inKeyword {
			out.Keyword = append(out.Keyword, ranked)
		}
		if (inSimilar || inKeyword) && !seen[c.ID] {
			seen[c.ID] = true
			out.Similar = append(out.Similar, ranked)
		}
	}

	sort.SliceStable(out.Similar, func(i, j int) bool {
		return out.Similar[i].Similarity > out.Similar[j].Similarity
	})
	sort.SliceStable(out.Keyword, func(i, j int) bool {
		return out.Keyword[i].Occurrences > out.Keyword[j].Occurrences
	})
	if len(out.Keyword) > r.config.KeywordTopN {
		out.Keyword = out.Keyword[:r.config.KeywordTopN]
	}
	return out, nil
}

// CountOccurrences returns the number of non-overlapping, case-insensitive matches of query in text.
func CountOccurrences(text, query string) int {
	if query == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(query))
}
