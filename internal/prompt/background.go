package prompt

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/pkg/utils"
)

type backgroundEntry struct {
	Title      string            `json:"title"`
	Paragraphs []string          `json:"paragraphs,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// FormatBackground renders the selected disease records as one JSON object
// per line. When maxChars is positive the text is cut to maxChars characters
// followed by "...".
func FormatBackground(records []*models.DiseaseRecord, maxChars int) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		// Encoding a struct of strings cannot fail.
		_ = enc.Encode(backgroundEntry{Title: r.Title, Paragraphs: r.Paragraphs, Attributes: r.Attributes})
		lines = append(lines, strings.TrimRight(buf.String(), "\n"))
	}
	return utils.Truncate(strings.Join(lines, "\n"), maxChars)
}
