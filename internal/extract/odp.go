package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// odfContentPath is the main content part of OpenDocument packages.
const odfContentPath = "content.xml"

var (
	// odfEmptyText matches self-closing text:p and text:h elements.
	odfEmptyText = regexp.MustCompile(`<text:[ph](?:\s[^>]*)?/>`)
	// odfText matches a text:p or text:h element; nested spans are stripped later.
	odfText = regexp.MustCompile(`(?s)<text:[ph](?:\s[^>]*)?>(.*?)</text:[ph]>`)
)

func readODFContent(content []byte, kind string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	xml, err := readZipFile(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	return string(xml), nil
}

// odfParagraphs returns the non-empty text:p and text:h elements of xml in document order.
func odfParagraphs(xml string) []string {
	xml = odfEmptyText.ReplaceAllString(xml, "")
	var out []string
	for _, m := range odfText.FindAllStringSubmatch(xml, -1) {
		if p := strings.TrimSpace(innerText(m[1])); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// extractODP returns the headings and paragraphs of an OpenDocument presentation.
func extractODP(content []byte) ([]string, error) {
	xml, err := readODFContent(content, "ODP")
	if err != nil {
		return nil, err
	}
	return odfParagraphs(xml), nil
}
