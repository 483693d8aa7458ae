package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// maxRepeatedCells caps table:number-columns-repeated, which spreadsheets use
// to pad rows to the full sheet width.
const maxRepeatedCells = 64

var (
	odsTable = regexp.MustCompile(`(?s)<table:table\s([^>]*)>(.*?)</table:table>`)
	odsName  = regexp.MustCompile(`table:name="([^"]*)"`)
	odsRow   = regexp.MustCompile(`(?s)<table:table-row(?:\s[^>]*)?>(.*?)</table:table-row>`)
	odsCell  = regexp.MustCompile(`(?s)<table:table-cell((?:\s[^>]*?)?)(?:/>|>(.*?)</table:table-cell>)`)
	odsRep   = regexp.MustCompile(`table:number-columns-repeated="(\d+)"`)
)

// extractODS returns one table per sheet of an OpenDocument spreadsheet.
// Multi-paragraph cells are joined with newlines and trailing empty cells are dropped.
func extractODS(content []byte) ([]Table, error) {
	xml, err := readODFContent(content, "ODS")
	if err != nil {
		return nil, err
	}
	var tables []Table
	for _, tm := range odsTable.FindAllStringSubmatch(xml, -1) {
		t := Table{}
		if nm := odsName.FindStringSubmatch(tm[1]); nm != nil {
			t.Sheet = nm[1]
		}
		for _, rm := range odsRow.FindAllStringSubmatch(tm[2], -1) {
			var row []string
			for _, cm := range odsCell.FindAllStringSubmatch(rm[1], -1) {
				value := strings.Join(odfParagraphs(cm[2]), "\n")
				repeat := 1
				if r := odsRep.FindStringSubmatch(cm[1]); r != nil {
					if n, err := strconv.Atoi(r[1]); err == nil && n > 1 {
						repeat = min(n, maxRepeatedCells)
					}
				}
				for i := 0; i < repeat; i++ {
					row = append(row, value)
				}
			}
			for len(row) > 0 && row[len(row)-1] == "" {
				row = row[:len(row)-1]
			}
			if len(row) > 0 {
				t.Rows = append(t.Rows, row)
			}
		}
		tables = append(tables, t)
	}
	return tables, nil
}
