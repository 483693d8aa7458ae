// Package extract reads disease source documents: paragraphs from text
// formats and header-plus-rows tables from spreadsheets.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Document is the text of one file split into paragraphs.
type Document struct {
	Paragraphs []string
}

// Table is one sheet of a spreadsheet. The first row is the header.
type Table struct {
	Sheet string
	Rows  [][]string
}

// Extractor reads documents and tables from files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// IsTable reports whether ext names a spreadsheet format.
func IsTable(ext string) bool {
	switch strings.ToLower(ext) {
	case ".xlsx", ".ods":
		return true
	}
	return false
}

// Extract reads the file at path and splits its text into paragraphs.
func (e *Extractor) Extract(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes splits content into paragraphs based on ext (with the leading dot).
// Unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Document, error) {
	var (
		paragraphs []string
		err        error
	)
	switch ext {
	case ".pdf":
		paragraphs, err = extractPDF(content)
	case ".docx":
		paragraphs, err = extractDOCX(content)
	case ".pptx":
		paragraphs, err = extractPPTX(content)
	case ".odp":
		paragraphs, err = extractODP(content)
	default:
		paragraphs = SplitParagraphs(extractPlain(content))
	}
	if err != nil {
		return nil, err
	}
	return &Document{Paragraphs: paragraphs}, nil
}

// ExtractTables reads every sheet of the spreadsheet at path.
func (e *Extractor) ExtractTables(path string) ([]Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractTablesBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractTablesBytes reads every sheet of an .xlsx or .ods spreadsheet.
func (e *Extractor) ExtractTablesBytes(content []byte, ext string) ([]Table, error) {
	switch ext {
	case ".xlsx":
		return extractExcel(content)
	case ".ods":
		return extractODS(content)
	default:
		return nil, fmt.Errorf("%q is not a spreadsheet format", ext)
	}
}

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// SplitParagraphs splits text on blank lines. Line breaks inside a paragraph
// become spaces and empty paragraphs are dropped.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range blankLine.Split(text, -1) {
		if p := strings.Join(strings.Fields(block), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}
