package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/search"
	"github.com/calegray/concepthub-backend/internal/types"
)

type searchFixture struct {
	svc  SearchService
	docs repos.DocumentRepo
	db   *searchSeed
}

type searchSeed struct {
	create func(t *testing.T, title, content, fileType string, words int) *types.Document
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	db := testDB(t)
	log := testLogger(t)
	docRepo := repos.NewDocumentRepo(db, log)
	linkRepo := repos.NewDocumentConceptRepo(db, log)
	conceptRepo := repos.NewConceptRepo(db, log)
	index := search.NewIndex(nil, log)
	scorer := search.NewScorer(search.Weights{Keyword: 0.4, Semantic: 0.35, Concept: 0.25})
	svc := NewSearchService(docRepo, linkRepo, conceptRepo, index, scorer, log)

	seed := &searchSeed{
		create: func(t *testing.T, title, content, fileType string, words int) *types.Document {
			t.Helper()
			doc := &types.Document{
				OriginalFilename: title + "." + fileType,
				StoredFilename:   uuid.NewString() + "." + fileType,
				FileType:         fileType,
				Title:            title,
				Content:          content,
				Summary:          content,
				WordCount:        words,
				ProcessingStatus: types.StatusCompleted,
			}
			if err := db.Create(doc).Error; err != nil {
				t.Fatalf("seed document: %v", err)
			}
			return doc
		},
	}
	return &searchFixture{svc: svc, docs: docRepo, db: seed}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	f := newSearchFixture(t)
	if _, err := f.svc.Search(context.Background(), SearchParams{Query: "   "}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSearchUnknownTypeRejected(t *testing.T) {
	f := newSearchFixture(t)
	if _, err := f.svc.Search(context.Background(), SearchParams{Query: "usability", Type: "fuzzy"}); err == nil {
		t.Fatalf("expected validation error for unknown search type")
	}
}

func TestSearchTitleMatchOutranksBodyMatch(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	titled := f.db.create(t, "Usability Testing Methods", "general discussion of evaluation", "pdf", 400)
	f.db.create(t, "Annual Report", "we also ran usability sessions this quarter", "pdf", 400)

	resp, err := f.svc.Search(ctx, SearchParams{Query: "usability testing", Type: "keyword"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatalf("expected results")
	}
	if resp.Results[0].Document.ID != titled.ID {
		t.Fatalf("expected title match first, got %q", resp.Results[0].Document.Title)
	}
	if resp.SearchType != search.TypeKeyword {
		t.Fatalf("unexpected search type %q", resp.SearchType)
	}
	for _, r := range resp.Results {
		if r.Score <= 0 || r.Score > 1 {
			t.Fatalf("score out of range: %f", r.Score)
		}
	}
}

func TestSearchFiltersAreConjunctive(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.db.create(t, "usability notes", "usability usability", "pdf", 1000)
	short := f.db.create(t, "usability memo", "usability usability", "txt", 100)

	minWords := 50
	maxWords := 500
	resp, err := f.svc.Search(ctx, SearchParams{
		Query:    "usability",
		FileType: "txt",
		MinWords: &minWords,
		MaxWords: &maxWords,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Document.ID != short.ID {
		t.Fatalf("expected only the txt memo, got %d results", len(resp.Results))
	}
}

func TestSearchDateRangeValidation(t *testing.T) {
	f := newSearchFixture(t)
	start := time.Now()
	end := start.Add(-time.Hour)
	_, err := f.svc.Search(context.Background(), SearchParams{Query: "x", StartDate: &start, EndDate: &end})
	if err == nil {
		t.Fatalf("expected validation error when end precedes start")
	}
}

func TestSearchHighlightsWrapMatches(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	f.db.create(t, "Fitts Law", "the fitts law model predicts pointing time", "pdf", 50)

	resp, err := f.svc.Search(ctx, SearchParams{Query: "fitts"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatalf("expected a result")
	}
	found := false
	for _, h := range resp.Results[0].Highlights {
		if strings.Contains(h.Snippet, "<mark>") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one <mark> highlight")
	}
}

func TestSimilarRanksByTextOverlap(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	ref := f.db.create(t, "eye tracking study", "eye tracking fixation saccade gaze analysis", "pdf", 100)
	close := f.db.create(t, "gaze analysis", "fixation and saccade patterns in gaze data", "pdf", 100)
	far := f.db.create(t, "spreadsheet tips", "pivot tables and formulas", "xlsx", 100)

	results, err := f.svc.Similar(ctx, ref.ID, 5)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one similar document")
	}
	if results[0].Document.ID != close.ID {
		t.Fatalf("expected overlapping document first, got %q", results[0].Document.Title)
	}
	for _, r := range results {
		if r.Document.ID == ref.ID {
			t.Fatalf("reference document must be excluded")
		}
		if r.Document.ID == far.ID && r.Score >= results[0].Score {
			t.Fatalf("unrelated document must not outrank the overlapping one")
		}
	}
}

func TestSimilarUnknownDocument(t *testing.T) {
	f := newSearchFixture(t)
	if _, err := f.svc.Similar(context.Background(), uuid.New(), 5); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestReindexAndAnalytics(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	f.db.create(t, "doc one", "alpha beta", "pdf", 10)
	f.db.create(t, "doc two", "gamma delta", "pdf", 10)

	res, err := f.svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if res.DocumentsIndexed != 2 {
		t.Fatalf("expected 2 indexed, got %d", res.DocumentsIndexed)
	}

	analytics, err := f.svc.Analytics(ctx)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if analytics.IndexedDocuments != 2 {
		t.Fatalf("expected 2 in analytics, got %d", analytics.IndexedDocuments)
	}
	if analytics.EmbeddingsActive {
		t.Fatalf("no embedder configured, embeddings must be inactive")
	}
}

func TestSuggestPrefersConceptPrefix(t *testing.T) {
	ctx := context.Background()
	fx := newConceptFixture(t)
	doc := fx.seedDocument(t, "seed")
	if err := fx.svc.ApplyExtraction(ctx, nil, doc, coOccurrence(9, 4)); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}
	log := testLogger(t)
	svc := NewSearchService(fx.docs, fx.links, fx.concepts, search.NewIndex(nil, log), search.NewScorer(search.Weights{}), log)

	out, err := svc.Suggest(ctx, "usab", 5)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected suggestions")
	}
	if out[0].Text != "usability testing" || out[0].Type != "concept" {
		t.Fatalf("expected usability testing concept first, got %+v", out[0])
	}
}
