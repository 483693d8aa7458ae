package ranking

import (
	"fmt"

	"github.com/hyperjump/nursesim/internal/config"
)

// Config holds the ranking parameters.
type Config struct {
	// SimilarityThreshold is the cosine similarity a candidate needs to join the similarity set.
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // default: 0.9
	// KeywordTopN caps the keyword ranking.
	KeywordTopN int `yaml:"keyword_top_n"` // default: 9
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() *Config {
	return &Config{
		SimilarityThreshold: config.DefaultSimilarityThreshold,
		KeywordTopN:         9,
	}
}

// FromSearchConfig builds a ranking configuration from the search section.
func FromSearchConfig(sc config.SearchConfig) *Config {
	c := &Config{SimilarityThreshold: sc.Threshold(), KeywordTopN: sc.KeywordTopN}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in a zero KeywordTopN.
func (c *Config) ApplyDefaults() {
	if c.KeywordTopN <= 0 {
		c.KeywordTopN = 9
	}
}

// Validate checks that the threshold is a valid cosine value.
func (c *Config) Validate() error {
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be within [-1, 1], got %v", c.SimilarityThreshold)
	}
	return nil
}
