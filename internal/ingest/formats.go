package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/nursesim/internal/extract"
	"github.com/hyperjump/nursesim/internal/models"
)

// Reserved spreadsheet header names. Every other column is an attribute.
const (
	columnID         = "id"
	columnTitle      = "title"
	columnParagraphs = "paragraphs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeJSON reads a single record object or an array of them.
func decodeJSON(content []byte) ([]*models.DiseaseRecord, error) {
	content = bytes.TrimSpace(bytes.TrimPrefix(content, utf8BOM))
	if len(content) == 0 {
		return []*models.DiseaseRecord{}, nil
	}

	var inputs []models.DiseaseInput
	if content[0] == '[' {
		if err := json.Unmarshal(content, &inputs); err != nil {
			return nil, models.InvalidInputf("decode JSON array: %v", err)
		}
	} else {
		var one models.DiseaseInput
		if err := json.Unmarshal(content, &one); err != nil {
			return nil, models.InvalidInputf("decode JSON object: %v", err)
		}
		inputs = append(inputs, one)
	}

	records := make([]*models.DiseaseRecord, 0, len(inputs))
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		records = append(records, inputs[i].Record())
	}
	return records, nil
}

// decodeJSONLines reads one record object per non-blank line.
func decodeJSONLines(content []byte) ([]*models.DiseaseRecord, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	records := []*models.DiseaseRecord{}
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var in models.DiseaseInput
		if err := json.Unmarshal(text, &in); err != nil {
			return nil, models.InvalidInputf("line %d: %v", line, err)
		}
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, in.Record())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan lines: %w", err)
	}
	return records, nil
}

// recordsFromTables maps each sheet's rows to records using its header row.
// Sheets without a title column and rows without a title are skipped.
func recordsFromTables(tables []extract.Table) []*models.DiseaseRecord {
	records := []*models.DiseaseRecord{}
	for _, table := range tables {
		if len(table.Rows) < 2 {
			continue
		}
		header := make([]string, len(table.Rows[0]))
		hasTitle := false
		for i, h := range table.Rows[0] {
			header[i] = strings.TrimSpace(h)
			if strings.EqualFold(header[i], columnTitle) {
				hasTitle = true
			}
		}
		if !hasTitle {
			continue
		}
		for _, row := range table.Rows[1:] {
			if d := recordFromRow(header, row); d != nil {
				records = append(records, d)
			}
		}
	}
	return records
}

func recordFromRow(header, row []string) *models.DiseaseRecord {
	var in models.DiseaseInput
	for i, cell := range row {
		if i >= len(header) || header[i] == "" {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		switch strings.ToLower(header[i]) {
		case columnID:
			in.ID = cell
		case columnTitle:
			in.Title = cell
		case columnParagraphs:
			in.Paragraphs = extract.SplitParagraphs(cell)
		default:
			if in.Attributes == nil {
				in.Attributes = make(map[string]string)
			}
			in.Attributes[header[i]] = cell
		}
	}
	if in.Validate() != nil {
		return nil
	}
	return in.Record()
}
