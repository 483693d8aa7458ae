// Package cli formats command output for nursesim.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const previewLength = 200

// WriteSearchResults writes the title, content and similarity panels of a search.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	query := response.Query
	if response.TranslatedQuery != "" {
		query = fmt.Sprintf("%s (%s)", response.Query, response.TranslatedQuery)
	}
	fmt.Fprintf(w, "\nSearch %s in %dms: %d by title, %d by content, %d similar\n\n",
		query, response.QueryTime, len(response.TitleResults), len(response.ContentResults), len(response.Similar))
	writePanel(w, "Title matches", response.TitleResults)
	writePanel(w, "Content matches", response.ContentResults)
	writePanel(w, "Similar diseases", response.Similar)
	return nil
}

func writePanel(w io.Writer, name string, results []*models.RankedDisease) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(w, "--- %s ---\n", name)
	for i, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s | Similarity: %.4f | Occurrences: %d\n", i+1, r.Disease.Title, r.Similarity, r.Occurrences)
		fmt.Fprintf(w, "ID: %s\n", r.Disease.ID)
		if preview := strings.TrimSpace(strings.Join(r.Disease.Paragraphs, " ")); preview != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(preview, previewLength))
		}
		fmt.Fprintln(w)
	}
}

// WriteDiseases writes a disease listing, one line per record.
func WriteDiseases(w io.Writer, diseases []*models.DiseaseRecord, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]models.DiseaseRecord, len(diseases))
		for i, d := range diseases {
			out[i] = *d
			out[i].Embedding = nil
		}
		return writeJSON(w, out)
	}
	for _, d := range diseases {
		line := fmt.Sprintf("%s\t%s", d.ID, d.Title)
		if d.Source != "" {
			line += "\t" + d.Source
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "%d diseases\n", len(diseases))
	return nil
}

// WriteScenarios writes a scenario listing with its date and title.
func WriteScenarios(w io.Writer, rows []models.ScenarioSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rows)
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Date, r.Title, r.ID)
	}
	fmt.Fprintf(w, "%d scenarios\n", len(rows))
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
