// Package terminology holds the curated dictionary the extractor matches
// against. The table is immutable once loaded; callers receive copies.
package terminology

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed terminology.yaml
var embeddedTable []byte

// Table maps a term's lowercase canonical form to its category. Terms are
// normalized at load time so lookups never need to re-fold case.
type Table struct {
	categories map[string][]string
	byTerm     map[string]string
}

// Load returns the built-in dictionary, or the file named by
// TERMINOLOGY_PATH when that variable is set.
func Load() (*Table, error) {
	raw := embeddedTable
	if path := os.Getenv("TERMINOLOGY_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read terminology file: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse decodes a category -> term list mapping.
func Parse(raw []byte) (*Table, error) {
	var decoded map[string][]string
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse terminology: %w", err)
	}
	t := &Table{
		categories: make(map[string][]string, len(decoded)),
		byTerm:     make(map[string]string),
	}
	for category, terms := range decoded {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		seen := make([]string, 0, len(terms))
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if _, dup := t.byTerm[term]; dup {
				continue
			}
			t.byTerm[term] = category
			seen = append(seen, term)
		}
		sort.Strings(seen)
		t.categories[category] = seen
	}
	return t, nil
}

// Category returns the category for a term's lowercase canonical form.
func (t *Table) Category(term string) (string, bool) {
	category, ok := t.byTerm[strings.ToLower(term)]
	return category, ok
}

// Contains reports whether the term is in the dictionary.
func (t *Table) Contains(term string) bool {
	_, ok := t.byTerm[strings.ToLower(term)]
	return ok
}

// Terms returns every term in the table, sorted longest first so that
// multi-word terms win over their embedded single words during matching.
func (t *Table) Terms() []string {
	out := make([]string, 0, len(t.byTerm))
	for term := range t.byTerm {
		out = append(out, term)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Categories returns the category names, sorted.
func (t *Table) Categories() []string {
	out := make([]string, 0, len(t.categories))
	for category := range t.categories {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// TermsIn returns a copy of the term list for one category.
func (t *Table) TermsIn(category string) []string {
	terms := t.categories[strings.ToLower(category)]
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}

// Len reports the number of distinct terms.
func (t *Table) Len() int { return len(t.byTerm) }
