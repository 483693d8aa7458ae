// Package models defines core data structures for disease records, scenarios, queries, and search results.
package models

import (
	"sort"
	"strings"
	"time"
)

// DiseaseRecord represents a stored disease entry with its precomputed embedding.
type DiseaseRecord struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Paragraphs []string          `json:"paragraphs"`
	Attributes map[string]string `json:"attributes"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Source     string            `json:"source,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Normalize replaces nil paragraphs and attributes with empty values.
func (d *DiseaseRecord) Normalize() {
	if d.Paragraphs == nil {
		d.Paragraphs = []string{}
	}
	if d.Attributes == nil {
		d.Attributes = map[string]string{}
	}
}

// AttributeKeys returns the attribute names in sorted order.
func (d *DiseaseRecord) AttributeKeys() []string {
	keys := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Content returns the joined paragraphs followed by the attribute values.
// Attribute values are ordered by key so the result is deterministic.
func (d *DiseaseRecord) Content() string {
	values := make([]string, 0, len(d.Attributes))
	for _, k := range d.AttributeKeys() {
		values = append(values, d.Attributes[k])
	}
	return strings.Join(d.Paragraphs, " ") + " " + strings.Join(values, " ")
}

// EmbeddingText is the text an embedder sees for this record.
func (d *DiseaseRecord) EmbeddingText() string {
	return strings.TrimSpace(d.Title + " " + d.Content())
}

// DiseaseInput is the input for creating a disease record.
type DiseaseInput struct {
	ID         string            `json:"id,omitempty"`
	Title      string            `json:"title"`
	Paragraphs []string          `json:"paragraphs,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Embedding  []float32         `json:"embedding,omitempty"`
}

// Validate checks that the input carries a title.
func (in *DiseaseInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return InvalidInputf("title cannot be empty")
	}
	return nil
}

// Record converts the input into a DiseaseRecord with normalized fields.
func (in *DiseaseInput) Record() *DiseaseRecord {
	d := &DiseaseRecord{
		ID:         in.ID,
		Title:      strings.TrimSpace(in.Title),
		Paragraphs: in.Paragraphs,
		Attributes: in.Attributes,
		Embedding:  in.Embedding,
	}
	d.Normalize()
	return d
}
