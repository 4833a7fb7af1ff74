package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/analysis"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Document{},
		&types.Concept{},
		&types.DocumentConcept{},
		&types.ConceptRelation{},
		&types.ConceptRelationSource{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type conceptFixture struct {
	db       *gorm.DB
	svc      ConceptService
	concepts repos.ConceptRepo
	links    repos.DocumentConceptRepo
	rels     repos.ConceptRelationRepo
	docs     repos.DocumentRepo
}

func newConceptFixture(t *testing.T) *conceptFixture {
	t.Helper()
	db := testDB(t)
	log := testLogger(t)
	conceptRepo := repos.NewConceptRepo(db, log)
	linkRepo := repos.NewDocumentConceptRepo(db, log)
	relRepo := repos.NewConceptRelationRepo(db, log)
	docRepo := repos.NewDocumentRepo(db, log)
	builder := analysis.NewRelationBuilder(analysis.RelationConfig{SynonymMaxDistance: 3, MinStrength: 0.05})
	svc := NewConceptService(db, conceptRepo, linkRepo, relRepo, docRepo, builder, nil, nil, log)
	return &conceptFixture{db: db, svc: svc, concepts: conceptRepo, links: linkRepo, rels: relRepo, docs: docRepo}
}

func (f *conceptFixture) seedDocument(t *testing.T, title string) *types.Document {
	t.Helper()
	doc := &types.Document{
		OriginalFilename: title + ".txt",
		StoredFilename:   uuid.NewString() + ".txt",
		FileType:         "txt",
		Title:            title,
		ProcessingStatus: types.StatusCompleted,
	}
	if err := f.db.Create(doc).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func coOccurrence(freqA, freqB int) []analysis.Detection {
	return []analysis.Detection{
		{Name: "usability testing", Category: "usability", Frequency: freqA},
		{Name: "heuristic evaluation", Category: "usability", Frequency: freqB},
	}
}

func TestApplyExtractionCreatesRelatedEdge(t *testing.T) {
	f := newConceptFixture(t)
	ctx := context.Background()
	doc := f.seedDocument(t, "study")

	if err := f.svc.ApplyExtraction(ctx, nil, doc, coOccurrence(5, 3)); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}

	ut, err := f.concepts.GetByName(ctx, nil, "usability testing")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	he, err := f.concepts.GetByName(ctx, nil, "heuristic evaluation")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if ut.Frequency != 5 || he.Frequency != 3 {
		t.Fatalf("unexpected frequencies %d/%d", ut.Frequency, he.Frequency)
	}

	rel, err := f.rels.GetByPair(ctx, nil, ut.ID, he.ID)
	if err != nil {
		t.Fatalf("GetByPair: %v", err)
	}
	if rel.RelationType != types.RelationRelated {
		t.Fatalf("expected related edge, got %s", rel.RelationType)
	}
	want := 3.0 / 5.0
	if math.Abs(rel.Strength-want) > 1e-9 {
		t.Fatalf("expected strength %.3f, got %.3f", want, rel.Strength)
	}
	if rel.DocCount != 1 {
		t.Fatalf("expected doc count 1, got %d", rel.DocCount)
	}
}

func TestApplyExtractionIdempotent(t *testing.T) {
	f := newConceptFixture(t)
	ctx := context.Background()
	doc := f.seedDocument(t, "study")

	if err := f.svc.ApplyExtraction(ctx, nil, doc, coOccurrence(5, 3)); err != nil {
		t.Fatalf("first ApplyExtraction: %v", err)
	}
	if err := f.svc.ApplyExtraction(ctx, nil, doc, coOccurrence(5, 3)); err != nil {
		t.Fatalf("second ApplyExtraction: %v", err)
	}

	ut, err := f.concepts.GetByName(ctx, nil, "usability testing")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if ut.Frequency != 5 {
		t.Fatalf("re-analysis must not double count, got frequency %d", ut.Frequency)
	}

	he, _ := f.concepts.GetByName(ctx, nil, "heuristic evaluation")
	rel, err := f.rels.GetByPair(ctx, nil, ut.ID, he.ID)
	if err != nil {
		t.Fatalf("GetByPair: %v", err)
	}
	if math.Abs(rel.Strength-0.6) > 1e-9 || rel.DocCount != 1 {
		t.Fatalf("re-analysis changed edge: strength=%.3f doc_count=%d", rel.Strength, rel.DocCount)
	}
}

func TestApplyExtractionAccumulatesAcrossDocuments(t *testing.T) {
	f := newConceptFixture(t)
	ctx := context.Background()
	first := f.seedDocument(t, "first")
	second := f.seedDocument(t, "second")

	if err := f.svc.ApplyExtraction(ctx, nil, first, coOccurrence(5, 3)); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}
	if err := f.svc.ApplyExtraction(ctx, nil, second, coOccurrence(2, 2)); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}

	ut, _ := f.concepts.GetByName(ctx, nil, "usability testing")
	he, _ := f.concepts.GetByName(ctx, nil, "heuristic evaluation")
	if ut.Frequency != 7 || he.Frequency != 5 {
		t.Fatalf("expected accumulated frequencies 7/5, got %d/%d", ut.Frequency, he.Frequency)
	}

	rel, err := f.rels.GetByPair(ctx, nil, ut.ID, he.ID)
	if err != nil {
		t.Fatalf("GetByPair: %v", err)
	}
	// Second document contributes min(2,2)/max(7,5) folded into the average.
	contrib := 2.0 / 7.0
	want := (0.6 + contrib) / 2
	if math.Abs(rel.Strength-want) > 1e-9 {
		t.Fatalf("expected running average %.4f, got %.4f", want, rel.Strength)
	}
	if rel.DocCount != 2 {
		t.Fatalf("expected doc count 2, got %d", rel.DocCount)
	}
	if rel.Strength < 0 || rel.Strength > 1 {
		t.Fatalf("strength out of [0,1]: %f", rel.Strength)
	}
}

func TestRetractDocumentReversesEverything(t *testing.T) {
	f := newConceptFixture(t)
	ctx := context.Background()
	doc := f.seedDocument(t, "study")

	if err := f.svc.ApplyExtraction(ctx, nil, doc, coOccurrence(5, 3)); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}
	if err := f.svc.RetractDocument(ctx, nil, doc.ID); err != nil {
		t.Fatalf("RetractDocument: %v", err)
	}

	ut, err := f.concepts.GetByName(ctx, nil, "usability testing")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if ut.Frequency != 0 {
		t.Fatalf("expected frequency retracted to 0, got %d", ut.Frequency)
	}

	he, _ := f.concepts.GetByName(ctx, nil, "heuristic evaluation")
	if _, err := f.rels.GetByPair(ctx, nil, ut.ID, he.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected sole-document edge deleted, got err=%v", err)
	}

	links, err := f.links.GetByDocumentID(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("GetByDocumentID: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("expected associations removed")
	}
}

func TestMergeConcepts(t *testing.T) {
	f := newConceptFixture(t)
	ctx := context.Background()

	docA := f.seedDocument(t, "a")
	docB := f.seedDocument(t, "b")

	// "ui" co-occurs with "cognitive load" in docA; "user interface" with
	// "cognitive load" in docB. Merging ui into user interface must leave a
	// single concept and a single merged edge.
	if err := f.svc.ApplyExtraction(ctx, nil, docA, []analysis.Detection{
		{Name: "ui", Category: "interaction_design", Frequency: 10},
		{Name: "cognitive load", Category: "cognitive_psychology", Frequency: 10},
	}); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}
	if err := f.svc.ApplyExtraction(ctx, nil, docB, []analysis.Detection{
		{Name: "user interface", Category: "interaction_design", Frequency: 20},
		{Name: "cognitive load", Category: "cognitive_psychology", Frequency: 5},
	}); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}

	ui, _ := f.concepts.GetByName(ctx, nil, "ui")
	primary, _ := f.concepts.GetByName(ctx, nil, "user interface")

	merged, err := f.svc.Merge(ctx, primary.ID, ui.ID)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Frequency != 30 {
		t.Fatalf("expected merged frequency 30, got %d", merged.Frequency)
	}

	if _, err := f.concepts.GetByName(ctx, nil, "ui"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected secondary concept removed, got err=%v", err)
	}

	// No edge may still reference the absorbed concept.
	dangling, err := f.rels.GetByConceptID(ctx, nil, ui.ID)
	if err != nil {
		t.Fatalf("GetByConceptID: %v", err)
	}
	if len(dangling) != 0 {
		t.Fatalf("expected no dangling edges, got %d", len(dangling))
	}

	cl, _ := f.concepts.GetByName(ctx, nil, "cognitive load")
	rel, err := f.rels.GetByPair(ctx, nil, primary.ID, cl.ID)
	if err != nil {
		t.Fatalf("expected surviving edge between primary and cognitive load: %v", err)
	}
	if rel.Strength <= 0 || rel.Strength > 1 {
		t.Fatalf("merged strength out of range: %f", rel.Strength)
	}
}

func TestMergeIntoItselfConflicts(t *testing.T) {
	f := newConceptFixture(t)
	id := uuid.New()
	if _, err := f.svc.Merge(context.Background(), id, id); err == nil {
		t.Fatalf("expected merge conflict")
	}
}

func TestGraphPayload(t *testing.T) {
	f := newConceptFixture(t)
	ctx := context.Background()
	doc := f.seedDocument(t, "study")

	if err := f.svc.ApplyExtraction(ctx, nil, doc, coOccurrence(5, 3)); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}

	payload, err := f.svc.Graph(ctx, 0.1, "")
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(payload.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(payload.Nodes))
	}
	if len(payload.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(payload.Edges))
	}
	edge := payload.Edges[0]
	if math.Abs(edge.Width-edge.Strength*5) > 1e-9 {
		t.Fatalf("edge width must scale with strength")
	}
	for _, node := range payload.Nodes {
		if node.Size > 20 {
			t.Fatalf("node size must be capped at 20, got %f", node.Size)
		}
	}

	// A floor above the edge strength hides it.
	payload, err = f.svc.Graph(ctx, 0.9, "")
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(payload.Edges) != 0 {
		t.Fatalf("expected min strength filter to drop edge")
	}
}
