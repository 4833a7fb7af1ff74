package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/apierr"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/search"
	"github.com/calegray/concepthub-backend/internal/types"
)

// SearchParams is the validated query surface of the search endpoint.
// Filters are conjunctive and narrow candidates before any scoring.
type SearchParams struct {
	Query      string
	Type       string
	Limit      int
	FileType   string
	StartDate  *time.Time
	EndDate    *time.Time
	ConceptIDs []uuid.UUID
	MinWords   *int
	MaxWords   *int
}

type SearchResult struct {
	Document   *types.Document    `json:"document"`
	Score      float64            `json:"score"`
	Signals    search.Signals     `json:"signals"`
	Highlights []search.Highlight `json:"highlights"`
}

type SearchResponse struct {
	Results      []*SearchResult `json:"results"`
	TotalResults int             `json:"total_results"`
	SearchType   string          `json:"search_type"`
}

type Suggestion struct {
	Text       string     `json:"text"`
	Type       string     `json:"type"`
	Frequency  int64      `json:"frequency,omitempty"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
}

type ReindexResult struct {
	DocumentsIndexed int    `json:"documents_indexed"`
	Status           string `json:"status"`
}

type SearchAnalytics struct {
	IndexedDocuments int              `json:"indexed_documents"`
	IndexBuiltAt     time.Time        `json:"index_built_at"`
	EmbeddingsActive bool             `json:"embeddings_active"`
	TopConcepts      []*types.Concept `json:"top_concepts"`
}

type SearchService interface {
	Search(ctx context.Context, params SearchParams) (*SearchResponse, error)
	Suggest(ctx context.Context, partial string, limit int) ([]Suggestion, error)
	Similar(ctx context.Context, documentID uuid.UUID, limit int) ([]*SearchResult, error)
	Reindex(ctx context.Context) (*ReindexResult, error)
	Analytics(ctx context.Context) (*SearchAnalytics, error)
}

type searchService struct {
	documents   repos.DocumentRepo
	docConcepts repos.DocumentConceptRepo
	conceptRepo repos.ConceptRepo
	index       *search.Index
	scorer      *search.Scorer
	log         *logger.Logger
}

func NewSearchService(
	documents repos.DocumentRepo,
	docConcepts repos.DocumentConceptRepo,
	conceptRepo repos.ConceptRepo,
	index *search.Index,
	scorer *search.Scorer,
	log *logger.Logger,
) SearchService {
	return &searchService{
		documents:   documents,
		docConcepts: docConcepts,
		conceptRepo: conceptRepo,
		index:       index,
		scorer:      scorer,
		log:         log.With("service", "SearchService"),
	}
}

func (s *searchService) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, apierr.Validation(fmt.Errorf("query required"))
	}
	searchType, err := normalizeSearchType(params.Type)
	if err != nil {
		return nil, err
	}
	if params.StartDate != nil && params.EndDate != nil && params.EndDate.Before(*params.StartDate) {
		return nil, apierr.Validation(fmt.Errorf("end_date before start_date"))
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	candidates, err := s.candidates(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &SearchResponse{Results: []*SearchResult{}, SearchType: searchType}, nil
	}

	snap, err := s.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	tokens := search.Tokenize(query)
	queryEmbedding := s.index.QueryEmbedding(ctx, query)
	conceptNames, err := s.conceptNamesByDocument(ctx, candidates)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(candidates))
	for _, doc := range candidates {
		sig := search.Signals{}
		sig.Keyword = s.scorer.KeywordScore(tokens, doc.Title, doc.Content, doc.Summary)

		// Lexical TF-IDF stands in for embeddings when no provider exists.
		lexical := math.Max(snap.TFIDFSimilarity(tokens, doc.ID), sig.Keyword)
		sig.Semantic = s.scorer.SemanticScore(snap, doc.ID, queryEmbedding, lexical)
		sig.Concept = s.scorer.ConceptScore(tokens, conceptNames[doc.ID])

		score := s.scorer.Blend(searchType, sig)
		if score <= 0 {
			continue
		}
		results = append(results, &SearchResult{
			Document:   doc,
			Score:      score,
			Signals:    sig,
			Highlights: search.BuildHighlights(doc.Title, doc.Content, doc.Summary, tokens, 0),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.UploadedAt.After(results[j].Document.UploadedAt)
	})

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return &SearchResponse{
		Results:      results,
		TotalResults: total,
		SearchType:   searchType,
	}, nil
}

// candidates applies every filter before scoring, so filters never change
// score magnitudes.
func (s *searchService) candidates(ctx context.Context, params SearchParams) ([]*types.Document, error) {
	docs, err := s.documents.GetByStatus(ctx, nil, types.StatusCompleted)
	if err != nil {
		return nil, err
	}

	var allowedByConcept map[uuid.UUID]bool
	if len(params.ConceptIDs) > 0 {
		ids, err := s.docConcepts.DocumentIDsForConcepts(ctx, nil, params.ConceptIDs)
		if err != nil {
			return nil, err
		}
		allowedByConcept = make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			allowedByConcept[id] = true
		}
	}

	out := docs[:0]
	for _, doc := range docs {
		if params.FileType != "" && doc.FileType != strings.ToLower(params.FileType) {
			continue
		}
		if params.StartDate != nil && doc.UploadedAt.Before(*params.StartDate) {
			continue
		}
		if params.EndDate != nil && doc.UploadedAt.After(*params.EndDate) {
			continue
		}
		if params.MinWords != nil && doc.WordCount < *params.MinWords {
			continue
		}
		if params.MaxWords != nil && doc.WordCount > *params.MaxWords {
			continue
		}
		if allowedByConcept != nil && !allowedByConcept[doc.ID] {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// ensureIndex lazily builds the first snapshot so a fresh process can
// serve searches before anyone calls reindex explicitly.
func (s *searchService) ensureIndex(ctx context.Context) (*search.Snapshot, error) {
	snap := s.index.Current()
	if snap.Len() > 0 {
		return snap, nil
	}
	if _, err := s.rebuild(ctx); err != nil {
		return nil, err
	}
	return s.index.Current(), nil
}

func (s *searchService) conceptNamesByDocument(ctx context.Context, docs []*types.Document) (map[uuid.UUID][]string, error) {
	ids := make([]uuid.UUID, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	links, err := s.docConcepts.GetByDocumentIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	conceptIDs := make([]uuid.UUID, 0, len(links))
	seen := make(map[uuid.UUID]bool)
	for _, link := range links {
		if !seen[link.ConceptID] {
			seen[link.ConceptID] = true
			conceptIDs = append(conceptIDs, link.ConceptID)
		}
	}
	concepts, err := s.conceptRepo.GetByIDs(ctx, nil, conceptIDs)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[uuid.UUID]string, len(concepts))
	for _, c := range concepts {
		nameByID[c.ID] = c.Name
	}

	out := make(map[uuid.UUID][]string)
	for _, link := range links {
		if name, ok := nameByID[link.ConceptID]; ok {
			out[link.DocumentID] = append(out[link.DocumentID], name)
		}
	}
	return out, nil
}

// Suggest matches concept names and document titles against the partial
// query, concepts ranked by frequency with prefix matches first.
func (s *searchService) Suggest(ctx context.Context, partial string, limit int) ([]Suggestion, error) {
	partial = strings.ToLower(strings.TrimSpace(partial))
	if partial == "" {
		return nil, apierr.Validation(fmt.Errorf("query required"))
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	concepts, err := s.conceptRepo.SearchByName(ctx, nil, partial, limit*2)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(concepts, func(i, j int) bool {
		pi := strings.HasPrefix(concepts[i].Name, partial)
		pj := strings.HasPrefix(concepts[j].Name, partial)
		if pi != pj {
			return pi
		}
		return concepts[i].Frequency > concepts[j].Frequency
	})

	out := make([]Suggestion, 0, limit)
	for _, c := range concepts {
		if len(out) >= limit {
			break
		}
		out = append(out, Suggestion{Text: c.Name, Type: "concept", Frequency: c.Frequency})
	}

	if len(out) < limit {
		docs, _, err := s.documents.List(ctx, nil, repos.DocumentListFilter{
			Search:  partial,
			Status:  types.StatusCompleted,
			PerPage: limit - len(out),
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			id := doc.ID
			out = append(out, Suggestion{Text: doc.Title, Type: "document", DocumentID: &id})
		}
	}
	return out, nil
}

// Similar ranks other completed documents by TF-IDF cosine against the
// reference document's text.
func (s *searchService) Similar(ctx context.Context, documentID uuid.UUID, limit int) ([]*SearchResult, error) {
	doc, err := s.documents.GetByID(ctx, nil, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("document")
	}
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	snap, err := s.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	refTokens := search.Tokenize(doc.Title + " " + doc.Content)

	candidates, err := s.documents.GetByStatus(ctx, nil, types.StatusCompleted)
	if err != nil {
		return nil, err
	}
	results := make([]*SearchResult, 0, len(candidates))
	for _, other := range candidates {
		if other.ID == documentID {
			continue
		}
		score := snap.TFIDFSimilarity(refTokens, other.ID)
		if score <= 0 {
			continue
		}
		results = append(results, &SearchResult{Document: other, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.UploadedAt.After(results[j].Document.UploadedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Reindex rebuilds the TF-IDF vocabulary and embedding table over every
// completed document. Concurrent calls collapse into one rebuild and
// readers keep the previous snapshot until the swap.
func (s *searchService) Reindex(ctx context.Context) (*ReindexResult, error) {
	count, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexResult{DocumentsIndexed: count, Status: "completed"}, nil
}

func (s *searchService) rebuild(ctx context.Context) (int, error) {
	docs, err := s.documents.GetByStatus(ctx, nil, types.StatusCompleted)
	if err != nil {
		return 0, err
	}
	entries := make([]search.DocEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, search.DocEntry{
			ID:         doc.ID,
			Title:      doc.Title,
			Content:    doc.Content,
			Summary:    doc.Summary,
			FileType:   doc.FileType,
			WordCount:  doc.WordCount,
			UploadedAt: doc.UploadedAt,
		})
	}
	return s.index.Rebuild(ctx, entries)
}

func (s *searchService) Analytics(ctx context.Context) (*SearchAnalytics, error) {
	snap := s.index.Current()
	top, err := s.conceptRepo.TopByFrequency(ctx, nil, 10)
	if err != nil {
		return nil, err
	}
	return &SearchAnalytics{
		IndexedDocuments: snap.Len(),
		IndexBuiltAt:     snap.BuiltAt(),
		EmbeddingsActive: s.index.HasEmbedder(),
		TopConcepts:      top,
	}, nil
}

func normalizeSearchType(t string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", search.TypeHybrid:
		return search.TypeHybrid, nil
	case search.TypeKeyword:
		return search.TypeKeyword, nil
	case search.TypeSemantic:
		return search.TypeSemantic, nil
	case search.TypeConcept:
		return search.TypeConcept, nil
	default:
		return "", apierr.Validation(fmt.Errorf("unknown search type %q", t))
	}
}
