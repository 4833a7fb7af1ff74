package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/analysis"
	"github.com/calegray/concepthub-backend/internal/clients/neo4jdb"
	"github.com/calegray/concepthub-backend/internal/clients/rediscache"
	"github.com/calegray/concepthub-backend/internal/graph"
	"github.com/calegray/concepthub-backend/internal/platform/apierr"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/types"
)

const (
	cacheKeyGraphPrefix  = "concepts:graph:"
	cacheKeyConceptStats = "concepts:stats"
)

// GraphNode is one node of the force-directed graph payload.
type GraphNode struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Frequency int64     `json:"frequency"`
	Size      float64   `json:"size"`
}

// GraphEdge is one undirected edge of the graph payload.
type GraphEdge struct {
	Source       uuid.UUID `json:"source"`
	Target       uuid.UUID `json:"target"`
	RelationType string    `json:"relation_type"`
	Strength     float64   `json:"strength"`
	Width        float64   `json:"width"`
}

type GraphPayload struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// ConceptDetail is a concept plus the documents it appears in and the
// edges it participates in.
type ConceptDetail struct {
	Concept   *types.Concept           `json:"concept"`
	Documents []*types.Document        `json:"documents"`
	Relations []*types.ConceptRelation `json:"relations"`
}

// ConceptStats summarizes the concept store.
type ConceptStats struct {
	TotalConcepts  int64                 `json:"total_concepts"`
	TotalRelations int64                 `json:"total_relations"`
	Categories     []repos.CategoryCount `json:"categories"`
	TopConcepts    []*types.Concept      `json:"top_concepts"`
}

type ConceptService interface {
	ApplyExtraction(ctx context.Context, tx *gorm.DB, doc *types.Document, detections []analysis.Detection) error
	RetractDocument(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*ConceptDetail, error)
	List(ctx context.Context, filter repos.ConceptListFilter) ([]*types.Concept, int64, error)
	Categories(ctx context.Context) ([]repos.CategoryCount, error)
	Relations(ctx context.Context, filter repos.RelationListFilter) ([]*types.ConceptRelation, error)
	Graph(ctx context.Context, minStrength float64, category string) (*GraphPayload, error)
	Stats(ctx context.Context) (*ConceptStats, error)
	Merge(ctx context.Context, primaryID, secondaryID uuid.UUID) (*types.Concept, error)
	SyncGraphMirror(ctx context.Context, documentID uuid.UUID)
}

type conceptService struct {
	db           *gorm.DB
	conceptRepo  repos.ConceptRepo
	docConcepts  repos.DocumentConceptRepo
	relationRepo repos.ConceptRelationRepo
	documentRepo repos.DocumentRepo
	builder      *analysis.RelationBuilder
	neo4j        *neo4jdb.Client
	cache        *rediscache.Cache
	log          *logger.Logger
}

func NewConceptService(
	db *gorm.DB,
	conceptRepo repos.ConceptRepo,
	docConcepts repos.DocumentConceptRepo,
	relationRepo repos.ConceptRelationRepo,
	documentRepo repos.DocumentRepo,
	builder *analysis.RelationBuilder,
	neo4j *neo4jdb.Client,
	cache *rediscache.Cache,
	log *logger.Logger,
) ConceptService {
	return &conceptService{
		db:           db,
		conceptRepo:  conceptRepo,
		docConcepts:  docConcepts,
		relationRepo: relationRepo,
		documentRepo: documentRepo,
		builder:      builder,
		neo4j:        neo4j,
		cache:        cache,
		log:          log.With("service", "ConceptService"),
	}
}

// ApplyExtraction replaces a document's contribution to the concept store.
// Any prior contribution is retracted first, so re-analyzing unchanged text
// is a no-op on frequencies and strengths. Runs inside the caller's
// transaction; either everything commits or nothing does.
func (s *conceptService) ApplyExtraction(ctx context.Context, tx *gorm.DB, doc *types.Document, detections []analysis.Detection) error {
	if err := s.RetractDocument(ctx, tx, doc.ID); err != nil {
		return err
	}
	if len(detections) == 0 {
		s.invalidateCaches(ctx)
		return nil
	}

	links := make([]*types.DocumentConcept, 0, len(detections))
	pairInputs := make([]analysis.PairInput, 0, len(detections))
	for _, d := range detections {
		concept, err := s.conceptRepo.UpsertIncrement(ctx, tx, d.Name, d.Category, int64(d.Frequency))
		if err != nil {
			return fmt.Errorf("upsert concept %q: %w", d.Name, err)
		}
		links = append(links, &types.DocumentConcept{
			DocumentID: doc.ID,
			ConceptID:  concept.ID,
			Frequency:  d.Frequency,
			Snippet:    d.Snippet,
		})
		pairInputs = append(pairInputs, analysis.PairInput{
			Name:           concept.Name,
			DocFrequency:   d.Frequency,
			TotalFrequency: concept.Frequency,
		})
	}
	if _, err := s.docConcepts.Create(ctx, tx, links); err != nil {
		return fmt.Errorf("create document concepts: %w", err)
	}

	idByName := make(map[string]uuid.UUID, len(links))
	for i, d := range detections {
		idByName[d.Name] = links[i].ConceptID
	}

	for _, contrib := range s.builder.Contributions(pairInputs) {
		aID, bID := idByName[contrib.NameA], idByName[contrib.NameB]
		if err := s.applyContribution(ctx, tx, doc.ID, aID, bID, contrib); err != nil {
			return err
		}
	}

	s.invalidateCaches(ctx)
	return nil
}

func (s *conceptService) applyContribution(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, aID, bID uuid.UUID, contrib analysis.Contribution) error {
	rel, err := s.relationRepo.GetByPair(ctx, tx, aID, bID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		strength := analysis.ApplyContribution(0, 0, contrib.Value)
		if !s.builder.MeetsFloor(strength) {
			return nil
		}
		created, createErr := s.relationRepo.Create(ctx, tx, &types.ConceptRelation{
			ConceptAID:   aID,
			ConceptBID:   bID,
			RelationType: contrib.Kind,
			Strength:     strength,
			DocCount:     1,
		})
		if createErr != nil {
			return fmt.Errorf("create relation: %w", createErr)
		}
		return s.relationRepo.CreateSource(ctx, tx, &types.ConceptRelationSource{
			RelationID:   created.ID,
			DocumentID:   documentID,
			Contribution: contrib.Value,
		})
	}
	if err != nil {
		return err
	}

	strength := analysis.ApplyContribution(rel.Strength, rel.DocCount, contrib.Value)
	if err := s.relationRepo.UpdateStrength(ctx, tx, rel.ID, strength, rel.DocCount+1, contrib.Kind); err != nil {
		return fmt.Errorf("update relation strength: %w", err)
	}
	return s.relationRepo.CreateSource(ctx, tx, &types.ConceptRelationSource{
		RelationID:   rel.ID,
		DocumentID:   documentID,
		Contribution: contrib.Value,
	})
}

// RetractDocument reverses everything one document contributed: edge
// strength contributions, association rows and aggregate frequencies.
func (s *conceptService) RetractDocument(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	sources, err := s.relationRepo.SourcesByDocumentID(ctx, tx, documentID)
	if err != nil {
		return err
	}
	for _, src := range sources {
		rel, err := s.relationRepo.GetByID(ctx, tx, src.RelationID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if rel.DocCount <= 1 {
			if err := s.relationRepo.Delete(ctx, tx, rel.ID); err != nil {
				return err
			}
			continue
		}
		strength := analysis.RetractContribution(rel.Strength, rel.DocCount, src.Contribution)
		if err := s.relationRepo.UpdateStrength(ctx, tx, rel.ID, strength, rel.DocCount-1, ""); err != nil {
			return err
		}
	}
	if err := s.relationRepo.DeleteSourcesByDocumentID(ctx, tx, documentID); err != nil {
		return err
	}

	links, err := s.docConcepts.GetByDocumentID(ctx, tx, documentID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := s.conceptRepo.AddFrequency(ctx, tx, link.ConceptID, -int64(link.Frequency)); err != nil {
			return err
		}
	}
	return s.docConcepts.DeleteByDocumentID(ctx, tx, documentID)
}

func (s *conceptService) Get(ctx context.Context, id uuid.UUID) (*ConceptDetail, error) {
	concept, err := s.conceptRepo.GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("concept")
	}
	if err != nil {
		return nil, err
	}

	links, err := s.docConcepts.GetByConceptID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	docIDs := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		docIDs = append(docIDs, link.DocumentID)
	}
	docs, err := s.documentRepo.GetByIDs(ctx, nil, docIDs)
	if err != nil {
		return nil, err
	}
	relations, err := s.relationRepo.GetByConceptID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &ConceptDetail{Concept: concept, Documents: docs, Relations: relations}, nil
}

func (s *conceptService) List(ctx context.Context, filter repos.ConceptListFilter) ([]*types.Concept, int64, error) {
	return s.conceptRepo.List(ctx, nil, filter)
}

func (s *conceptService) Categories(ctx context.Context) ([]repos.CategoryCount, error) {
	return s.conceptRepo.Categories(ctx, nil)
}

func (s *conceptService) Relations(ctx context.Context, filter repos.RelationListFilter) ([]*types.ConceptRelation, error) {
	return s.relationRepo.List(ctx, nil, filter)
}

func (s *conceptService) Graph(ctx context.Context, minStrength float64, category string) (*GraphPayload, error) {
	cacheKey := fmt.Sprintf("%s%.2f:%s", cacheKeyGraphPrefix, minStrength, category)
	var cached GraphPayload
	if s.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	concepts, _, err := s.conceptRepo.List(ctx, nil, repos.ConceptListFilter{
		Category: category,
		PerPage:  200,
	})
	if err != nil {
		return nil, err
	}

	payload := &GraphPayload{
		Nodes: make([]GraphNode, 0, len(concepts)),
		Edges: make([]GraphEdge, 0),
	}
	inGraph := make(map[uuid.UUID]bool, len(concepts))
	for _, c := range concepts {
		inGraph[c.ID] = true
		payload.Nodes = append(payload.Nodes, GraphNode{
			ID:        c.ID,
			Name:      c.Name,
			Category:  c.Category,
			Frequency: c.Frequency,
			Size:      nodeSize(c.Frequency),
		})
	}

	relations, err := s.relationRepo.List(ctx, nil, repos.RelationListFilter{MinStrength: minStrength})
	if err != nil {
		return nil, err
	}
	for _, rel := range relations {
		if !inGraph[rel.ConceptAID] || !inGraph[rel.ConceptBID] {
			continue
		}
		payload.Edges = append(payload.Edges, GraphEdge{
			Source:       rel.ConceptAID,
			Target:       rel.ConceptBID,
			RelationType: rel.RelationType,
			Strength:     rel.Strength,
			Width:        rel.Strength * 5,
		})
	}

	s.cache.SetJSON(ctx, cacheKey, payload)
	return payload, nil
}

func nodeSize(frequency int64) float64 {
	size := float64(frequency) * 2
	if size > 20 {
		size = 20
	}
	return size
}

func (s *conceptService) Stats(ctx context.Context) (*ConceptStats, error) {
	var cached ConceptStats
	if s.cache.GetJSON(ctx, cacheKeyConceptStats, &cached) {
		return &cached, nil
	}

	totalConcepts, err := s.conceptRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	totalRelations, err := s.relationRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	categories, err := s.conceptRepo.Categories(ctx, nil)
	if err != nil {
		return nil, err
	}
	top, err := s.conceptRepo.TopByFrequency(ctx, nil, 10)
	if err != nil {
		return nil, err
	}

	stats := &ConceptStats{
		TotalConcepts:  totalConcepts,
		TotalRelations: totalRelations,
		Categories:     categories,
		TopConcepts:    top,
	}
	s.cache.SetJSON(ctx, cacheKeyConceptStats, stats)
	return stats, nil
}

// Merge absorbs the secondary concept into the primary: associations and
// frequency move over, edges are redirected with strengths summed where
// both concepts already shared a neighbor, and the secondary disappears.
func (s *conceptService) Merge(ctx context.Context, primaryID, secondaryID uuid.UUID) (*types.Concept, error) {
	if primaryID == secondaryID {
		return nil, apierr.MergeConflict(fmt.Errorf("cannot merge a concept into itself"))
	}

	var merged *types.Concept
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		primary, err := s.conceptRepo.GetByID(ctx, tx, primaryID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("primary concept")
		}
		if err != nil {
			return err
		}
		secondary, err := s.conceptRepo.GetByID(ctx, tx, secondaryID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("secondary concept")
		}
		if err != nil {
			return err
		}

		if err := s.docConcepts.Redirect(ctx, tx, secondary.ID, primary.ID); err != nil {
			return fmt.Errorf("redirect associations: %w", err)
		}
		if err := s.conceptRepo.SetFrequency(ctx, tx, primary.ID, primary.Frequency+secondary.Frequency); err != nil {
			return err
		}

		if err := s.redirectEdges(ctx, tx, primary, secondary); err != nil {
			return err
		}

		if err := s.conceptRepo.Delete(ctx, tx, secondary.ID); err != nil {
			return err
		}

		merged, err = s.conceptRepo.GetByID(ctx, tx, primary.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	if mirrorErr := graph.RemoveConcept(ctx, s.neo4j, s.log, secondaryID); mirrorErr != nil {
		s.log.Warn("Graph mirror cleanup failed after merge", "error", mirrorErr)
	}
	return merged, nil
}

func (s *conceptService) redirectEdges(ctx context.Context, tx *gorm.DB, primary, secondary *types.Concept) error {
	rels, err := s.relationRepo.GetByConceptID(ctx, tx, secondary.ID)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		other := rel.ConceptAID
		if other == secondary.ID {
			other = rel.ConceptBID
		}
		if other == primary.ID {
			// Edge between the two merging concepts has no meaning afterwards.
			if err := s.relationRepo.Delete(ctx, tx, rel.ID); err != nil {
				return err
			}
			continue
		}

		existing, err := s.relationRepo.GetByPair(ctx, tx, primary.ID, other)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			replacement, createErr := s.relationRepo.Create(ctx, tx, &types.ConceptRelation{
				ConceptAID:   primary.ID,
				ConceptBID:   other,
				RelationType: rel.RelationType,
				Strength:     rel.Strength,
				DocCount:     rel.DocCount,
			})
			if createErr != nil {
				return createErr
			}
			if err := s.relationRepo.RedirectSources(ctx, tx, rel.ID, replacement.ID); err != nil {
				return err
			}
			if err := s.relationRepo.Delete(ctx, tx, rel.ID); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		strength := existing.Strength + rel.Strength
		if strength > 1 {
			strength = 1
		}
		if err := s.relationRepo.UpdateStrength(ctx, tx, existing.ID, strength, existing.DocCount+rel.DocCount, ""); err != nil {
			return err
		}
		if err := s.relationRepo.RedirectSources(ctx, tx, rel.ID, existing.ID); err != nil {
			return err
		}
		if err := s.relationRepo.Delete(ctx, tx, rel.ID); err != nil {
			return err
		}
	}
	return nil
}

// SyncGraphMirror pushes one document's concepts and their edges to Neo4j.
// Best-effort and called outside the write transaction.
func (s *conceptService) SyncGraphMirror(ctx context.Context, documentID uuid.UUID) {
	if s.neo4j == nil {
		return
	}
	links, err := s.docConcepts.GetByDocumentID(ctx, nil, documentID)
	if err != nil || len(links) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ConceptID)
	}
	concepts, err := s.conceptRepo.GetByIDs(ctx, nil, ids)
	if err != nil {
		return
	}

	idSet := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var relations []*types.ConceptRelation
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		rels, err := s.relationRepo.GetByConceptID(ctx, nil, id)
		if err != nil {
			continue
		}
		for _, rel := range rels {
			if seen[rel.ID] || !idSet[rel.ConceptAID] || !idSet[rel.ConceptBID] {
				continue
			}
			seen[rel.ID] = true
			relations = append(relations, rel)
		}
	}

	if err := graph.UpsertConceptGraph(ctx, s.neo4j, s.log, concepts, relations); err != nil {
		s.log.Warn("Graph mirror sync failed", "document_id", documentID, "error", err)
	}
}

func (s *conceptService) invalidateCaches(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeyConceptStats)
	s.cache.InvalidatePrefix(ctx, cacheKeyGraphPrefix)
}
