// Package analysis implements concept detection over extracted document
// text and the co-occurrence relationship math built on top of it.
package analysis

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/terminology"
	"github.com/calegray/concepthub-backend/internal/types"
)

// Detection is one concept found in a document.
type Detection struct {
	Name      string
	Category  string
	Frequency int
	Snippet   string
}

// EntityEnhancer is an optional named-entity source. A nil enhancer is a
// valid configuration, and a failing one only loses its own contribution.
type EntityEnhancer interface {
	Entities(ctx context.Context, text string) ([]string, error)
}

type ExtractorConfig struct {
	// Statistical phrase mining over the document body.
	StatisticalEnabled bool
	StatisticalTopN    int
	StatisticalMinFreq int

	// Width of the context window captured around the first match.
	SnippetRadius int
}

func ExtractorConfigFromEnv(log *logger.Logger) ExtractorConfig {
	return ExtractorConfig{
		StatisticalEnabled: envutil.GetEnvAsBool("EXTRACT_STATISTICAL_ENABLED", true, log),
		StatisticalTopN:    envutil.GetEnvAsInt("EXTRACT_STATISTICAL_TOP_N", 10, log),
		StatisticalMinFreq: envutil.GetEnvAsInt("EXTRACT_STATISTICAL_MIN_FREQ", 2, log),
		SnippetRadius:      envutil.GetEnvAsInt("EXTRACT_SNIPPET_RADIUS", 50, log),
	}
}

type dictPattern struct {
	term     string
	category string
	re       *regexp.Regexp
}

type Extractor struct {
	table    *terminology.Table
	cfg      ExtractorConfig
	enhancer EntityEnhancer
	patterns []dictPattern
	log      *logger.Logger
}

func NewExtractor(table *terminology.Table, cfg ExtractorConfig, enhancer EntityEnhancer, log *logger.Logger) *Extractor {
	if cfg.StatisticalTopN <= 0 {
		cfg.StatisticalTopN = 10
	}
	if cfg.StatisticalMinFreq <= 0 {
		cfg.StatisticalMinFreq = 2
	}
	if cfg.SnippetRadius <= 0 {
		cfg.SnippetRadius = 50
	}
	e := &Extractor{
		table:    table,
		cfg:      cfg,
		enhancer: enhancer,
		log:      log.With("component", "Extractor"),
	}
	for _, term := range table.Terms() {
		category, _ := table.Category(term)
		e.patterns = append(e.patterns, dictPattern{
			term:     term,
			category: category,
			re:       compileTermPattern(term),
		})
	}
	return e
}

// compileTermPattern matches the term at word boundaries, together with its
// simple plural or singular variant.
func compileTermPattern(term string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(term)
	variant := quoted + `s?`
	if strings.HasSuffix(term, "s") && len(term) > 3 {
		variant = regexp.QuoteMeta(strings.TrimSuffix(term, "s")) + `s?`
	}
	return regexp.MustCompile(`\b` + variant + `\b`)
}

// Extract runs every configured detection method over the text and unions
// the results, summing frequencies when methods agree on a name.
func (e *Extractor) Extract(ctx context.Context, text string) []Detection {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	found := make(map[string]*Detection)

	e.matchDictionary(lower, found)

	if e.cfg.StatisticalEnabled {
		e.mineStatistical(lower, found)
	}

	if e.enhancer != nil {
		entities, err := e.enhancer.Entities(ctx, text)
		if err != nil {
			e.log.Warn("Entity enhancer failed, continuing without it", "error", err)
		} else {
			e.addEntities(lower, entities, found)
		}
	}

	out := make([]Detection, 0, len(found))
	for _, d := range found {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (e *Extractor) matchDictionary(lower string, found map[string]*Detection) {
	for _, p := range e.patterns {
		locs := p.re.FindAllStringIndex(lower, -1)
		if len(locs) == 0 {
			continue
		}
		e.merge(found, Detection{
			Name:      p.term,
			Category:  p.category,
			Frequency: len(locs),
			Snippet:   e.snippet(lower, locs[0][0], locs[0][1]),
		})
	}
}

// mineStatistical counts two and three word phrases and keeps the top N
// that clear the frequency floor and are not already known.
func (e *Extractor) mineStatistical(lower string, found map[string]*Detection) {
	words := tokenize(lower)
	counts := make(map[string]int)
	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(words); i++ {
			gram := words[i : i+n]
			if !phraseWorthKeeping(gram) {
				continue
			}
			counts[strings.Join(gram, " ")]++
		}
	}

	type scored struct {
		phrase string
		count  int
	}
	candidates := make([]scored, 0, len(counts))
	for phrase, count := range counts {
		if count < e.cfg.StatisticalMinFreq {
			continue
		}
		if e.table.Contains(phrase) {
			continue
		}
		if _, ok := found[phrase]; ok {
			continue
		}
		candidates = append(candidates, scored{phrase, count})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].phrase < candidates[j].phrase
	})
	if len(candidates) > e.cfg.StatisticalTopN {
		candidates = candidates[:e.cfg.StatisticalTopN]
	}
	for _, c := range candidates {
		start := strings.Index(lower, c.phrase)
		e.merge(found, Detection{
			Name:      c.phrase,
			Category:  types.CategoryStatistical,
			Frequency: c.count,
			Snippet:   e.snippet(lower, start, start+len(c.phrase)),
		})
	}
}

func (e *Extractor) addEntities(lower string, entities []string, found map[string]*Detection) {
	for _, entity := range entities {
		name := strings.ToLower(strings.TrimSpace(entity))
		if len(name) < 3 {
			continue
		}
		if _, ok := found[name]; ok {
			continue
		}
		freq := strings.Count(lower, name)
		if freq == 0 {
			freq = 1
		}
		start := strings.Index(lower, name)
		end := start + len(name)
		if start < 0 {
			start, end = 0, 0
		}
		e.merge(found, Detection{
			Name:      name,
			Category:  types.CategoryExtracted,
			Frequency: freq,
			Snippet:   e.snippet(lower, start, end),
		})
	}
}

func (e *Extractor) merge(found map[string]*Detection, d Detection) {
	if existing, ok := found[d.Name]; ok {
		existing.Frequency += d.Frequency
		return
	}
	copied := d
	found[d.Name] = &copied
}

func (e *Extractor) snippet(text string, start, end int) string {
	if start < 0 || end > len(text) || start >= end {
		return ""
	}
	from := start - e.cfg.SnippetRadius
	if from < 0 {
		from = 0
	}
	to := end + e.cfg.SnippetRadius
	if to > len(text) {
		to = len(text)
	}
	return strings.TrimSpace(text[from:to])
}

var wordRe = regexp.MustCompile(`[a-z][a-z0-9'-]*`)

func tokenize(lower string) []string {
	return wordRe.FindAllString(lower, -1)
}

// Short tokens and stopword-led phrases are noise, not candidate concepts.
func phraseWorthKeeping(gram []string) bool {
	for _, w := range gram {
		if len(w) < 3 {
			return false
		}
	}
	if stopwords[gram[0]] || stopwords[gram[len(gram)-1]] {
		return false
	}
	return true
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "was": true,
	"were": true, "been": true, "have": true, "has": true, "had": true,
	"this": true, "that": true, "with": true, "from": true, "they": true,
	"will": true, "would": true, "there": true, "their": true, "what": true,
	"about": true, "which": true, "when": true, "into": true, "more": true,
	"other": true, "some": true, "such": true, "than": true, "then": true,
	"these": true, "those": true, "also": true, "between": true, "both": true,
	"each": true, "using": true, "used": true, "based": true, "within": true,
}
