// Package search holds the in-memory text index and the scoring logic the
// search service blends into a single relevance ranking.
package search

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

// Embedder turns text into a fixed-length vector. Absence is a valid
// configuration; the semantic signal then falls back to keyword scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocEntry is the indexable projection of one completed document.
type DocEntry struct {
	ID         uuid.UUID
	Title      string
	Content    string
	Summary    string
	FileType   string
	WordCount  int
	UploadedAt time.Time
}

type indexedDoc struct {
	entry     DocEntry
	tf        map[string]float64
	embedding []float32
}

// Snapshot is one fully built, immutable index generation. Readers score
// against whatever generation was current when they started; a rebuild
// swaps in a complete replacement and never mutates a live snapshot.
type Snapshot struct {
	docs    map[uuid.UUID]*indexedDoc
	docFreq map[string]int
	total   int
	builtAt time.Time
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		docs:    map[uuid.UUID]*indexedDoc{},
		docFreq: map[string]int{},
		builtAt: time.Now().UTC(),
	}
}

func (s *Snapshot) Len() int           { return s.total }
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

func (s *Snapshot) Contains(id uuid.UUID) bool {
	_, ok := s.docs[id]
	return ok
}

// Embedding returns the stored vector for a document, or nil.
func (s *Snapshot) Embedding(id uuid.UUID) []float32 {
	if d, ok := s.docs[id]; ok {
		return d.embedding
	}
	return nil
}

func (s *Snapshot) idf(term string) float64 {
	df := s.docFreq[term]
	if df == 0 || s.total == 0 {
		return 0
	}
	// Smoothed so terms present in every document keep a small weight.
	return math.Log(float64(s.total)/float64(df)) + 1
}

// TFIDFSimilarity is the cosine similarity between the query's TF-IDF
// vector and the document's, in [0,1].
func (s *Snapshot) TFIDFSimilarity(queryTokens []string, id uuid.UUID) float64 {
	doc, ok := s.docs[id]
	if !ok || len(queryTokens) == 0 {
		return 0
	}
	queryTF := termFrequencies(queryTokens)

	var dot, qNorm, dNorm float64
	for term, qtf := range queryTF {
		w := qtf * s.idf(term)
		qNorm += w * w
		if dtf, ok := doc.tf[term]; ok {
			dot += w * dtf * s.idf(term)
		}
	}
	for term, dtf := range doc.tf {
		w := dtf * s.idf(term)
		dNorm += w * w
	}
	if qNorm == 0 || dNorm == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(qNorm) * math.Sqrt(dNorm))
	if sim > 1 {
		sim = 1
	}
	return sim
}

// Index owns the current snapshot and collapses concurrent rebuild
// requests into one pass.
type Index struct {
	current  atomic.Pointer[Snapshot]
	group    singleflight.Group
	embedder Embedder
	log      *logger.Logger
}

func NewIndex(embedder Embedder, log *logger.Logger) *Index {
	idx := &Index{
		embedder: embedder,
		log:      log.With("component", "SearchIndex"),
	}
	idx.current.Store(emptySnapshot())
	return idx
}

// Current never returns nil; before the first rebuild it is an empty
// snapshot.
func (i *Index) Current() *Snapshot {
	return i.current.Load()
}

func (i *Index) HasEmbedder() bool { return i.embedder != nil }

// QueryEmbedding embeds the query text when a provider is configured.
func (i *Index) QueryEmbedding(ctx context.Context, query string) []float32 {
	if i.embedder == nil {
		return nil
	}
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		i.log.Warn("Query embedding failed, degrading to keyword fallback", "error", err)
		return nil
	}
	return vec
}

// Rebuild constructs a fresh snapshot from the given documents and swaps
// it in. Concurrent callers share a single build; the previous snapshot
// stays readable until the swap.
func (i *Index) Rebuild(ctx context.Context, docs []DocEntry) (int, error) {
	count, err, _ := i.group.Do("reindex", func() (interface{}, error) {
		snap, err := i.build(ctx, docs)
		if err != nil {
			return 0, err
		}
		i.current.Store(snap)
		i.log.Info("Search index rebuilt", "documents", snap.total)
		return snap.total, nil
	})
	if err != nil {
		return 0, err
	}
	return count.(int), nil
}

func (i *Index) build(ctx context.Context, docs []DocEntry) (*Snapshot, error) {
	snap := emptySnapshot()
	for _, entry := range docs {
		tokens := Tokenize(entry.Title + " " + entry.Content + " " + entry.Summary)
		doc := &indexedDoc{
			entry: entry,
			tf:    termFrequencies(tokens),
		}
		seen := make(map[string]bool, len(doc.tf))
		for term := range doc.tf {
			if !seen[term] {
				seen[term] = true
				snap.docFreq[term]++
			}
		}
		if i.embedder != nil {
			text := entry.Title + "\n" + entry.Summary + "\n" + truncate(entry.Content, 4000)
			vec, err := i.embedder.Embed(ctx, text)
			if err != nil {
				i.log.Warn("Document embedding failed, indexing without vector", "document_id", entry.ID, "error", err)
			} else {
				doc.embedding = vec
			}
		}
		snap.docs[entry.ID] = doc
		snap.total++
	}
	return snap, nil
}

var tokenSplitRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// Tokenize lowercases, splits on non-alphanumerics and drops single
// characters. Two-letter tokens survive because the terminology table
// contains abbreviations.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	parts := tokenSplitRe.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

func termFrequencies(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return map[string]float64{}
	}
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	total := float64(len(tokens))
	tf := make(map[string]float64, len(counts))
	for term, count := range counts {
		tf[term] = float64(count) / total
	}
	return tf
}

// CosineSimilarity over float32 vectors, 0 when shapes differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
