package search

import "strings"

const defaultHighlightWindow = 160

// Highlight is one marked-up snippet from a matched field.
type Highlight struct {
	Field   string `json:"field"`
	Snippet string `json:"snippet"`
}

// HighlightField produces a bounded snippet around the first query token
// found in the text, with the matched span wrapped in <mark> tags. Returns
// false when no token matches.
func HighlightField(field, text string, queryTokens []string, window int) (Highlight, bool) {
	if window <= 0 {
		window = defaultHighlightWindow
	}
	lower := strings.ToLower(text)
	start, end := -1, -1
	for _, tok := range queryTokens {
		if tok == "" {
			continue
		}
		if pos := strings.Index(lower, tok); pos >= 0 && (start < 0 || pos < start) {
			start, end = pos, pos+len(tok)
		}
	}
	if start < 0 {
		return Highlight{}, false
	}

	from := start - window/2
	if from < 0 {
		from = 0
	}
	to := end + window/2
	if to > len(text) {
		to = len(text)
	}

	var b strings.Builder
	if from > 0 {
		b.WriteString("...")
	}
	b.WriteString(text[from:start])
	b.WriteString("<mark>")
	b.WriteString(text[start:end])
	b.WriteString("</mark>")
	b.WriteString(text[end:to])
	if to < len(text) {
		b.WriteString("...")
	}
	return Highlight{Field: field, Snippet: b.String()}, true
}

// BuildHighlights collects at most one snippet per field, title first.
func BuildHighlights(title, content, summary string, queryTokens []string, window int) []Highlight {
	out := make([]Highlight, 0, 3)
	if h, ok := HighlightField("title", title, queryTokens, window); ok {
		out = append(out, h)
	}
	if h, ok := HighlightField("content", content, queryTokens, window); ok {
		out = append(out, h)
	}
	if h, ok := HighlightField("summary", summary, queryTokens, window); ok {
		out = append(out, h)
	}
	return out
}
