package ai

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoDiagram means the provider answered but no draw.io document was found.
var ErrNoDiagram = errors.New("AI response did not contain draw.io XML.")

const (
	openTag  = "<mxfile"
	closeTag = "</mxfile>"
)

var (
	fencePattern   = regexp.MustCompile("(?m)```[A-Za-z0-9_-]*[ \\t]*$")
	commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// ExtractDiagram pulls the first <mxfile>...</mxfile> document out of a
// model answer and strips XML comments from it.
func ExtractDiagram(text string) (string, error) {
	doc, ok := findDocument(cleanText(text))
	if !ok {
		return "", ErrNoDiagram
	}
	return strings.TrimSpace(commentPattern.ReplaceAllString(doc, "")), nil
}

// extractFromResponse decodes the provider body and extracts the document.
// When the decoded text has none it falls back to scanning the raw body.
func extractFromResponse(body []byte) (string, error) {
	if rt := decodeResponse(body); rt != nil {
		if xml, err := ExtractDiagram(rt.text()); err == nil {
			return xml, nil
		}
	}
	return ExtractDiagram(string(body))
}

func cleanText(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = fencePattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	for _, q := range []string{`"""`, `'''`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			inner := s[1 : len(s)-1]
			if strings.Contains(inner, openTag) {
				s = strings.TrimSpace(inner)
			}
		}
	}
	return s
}

func findDocument(s string) (string, bool) {
	start := strings.Index(s, openTag)
	if start < 0 {
		return "", false
	}
	end := strings.Index(s[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return s[start : start+end+len(closeTag)], true
}
