package repos

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
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

func seedConcept(t *testing.T, db *gorm.DB, name string, freq int64) *types.Concept {
	t.Helper()
	c := &types.Concept{ID: uuid.New(), Name: name, Category: "usability", Frequency: freq}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed concept: %v", err)
	}
	return c
}

func seedDocument(t *testing.T, db *gorm.DB, title string) *types.Document {
	t.Helper()
	d := &types.Document{
		ID:               uuid.New(),
		OriginalFilename: title + ".txt",
		StoredFilename:   uuid.NewString() + ".txt",
		FileType:         "txt",
		Title:            title,
		ProcessingStatus: types.StatusCompleted,
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return d
}

func TestConceptUpsertIncrement(t *testing.T) {
	db := testDB(t)
	repo := NewConceptRepo(db, testLogger(t))
	ctx := context.Background()

	first, err := repo.UpsertIncrement(ctx, nil, "  Usability Testing ", "usability", 5)
	if err != nil {
		t.Fatalf("UpsertIncrement: %v", err)
	}
	if first.Name != "usability testing" {
		t.Fatalf("expected normalized name, got %q", first.Name)
	}
	if first.Frequency != 5 {
		t.Fatalf("expected frequency 5, got %d", first.Frequency)
	}

	second, err := repo.UpsertIncrement(ctx, nil, "USABILITY TESTING", "usability", 3)
	if err != nil {
		t.Fatalf("UpsertIncrement: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same concept row on re-detection")
	}

	stored, err := repo.GetByName(ctx, nil, "usability testing")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if stored.Frequency != 8 {
		t.Fatalf("expected accumulated frequency 8, got %d", stored.Frequency)
	}
}

func TestConceptListFilterAndSort(t *testing.T) {
	db := testDB(t)
	repo := NewConceptRepo(db, testLogger(t))
	ctx := context.Background()

	seedConcept(t, db, "usability testing", 10)
	seedConcept(t, db, "heuristic evaluation", 4)
	other := &types.Concept{ID: uuid.New(), Name: "dashboard", Category: "visualization", Frequency: 7}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	results, total, err := repo.List(ctx, nil, ConceptListFilter{Category: "usability"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("expected 2 usability concepts, got total=%d len=%d", total, len(results))
	}
	if results[0].Name != "usability testing" {
		t.Fatalf("expected frequency sort by default, got %q first", results[0].Name)
	}

	results, _, err = repo.List(ctx, nil, ConceptListFilter{SortBy: "name"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if results[0].Name != "dashboard" {
		t.Fatalf("expected name sort, got %q first", results[0].Name)
	}
}

func TestRelationPairCanonicalOrder(t *testing.T) {
	db := testDB(t)
	repo := NewConceptRelationRepo(db, testLogger(t))
	ctx := context.Background()

	a := seedConcept(t, db, "usability testing", 5)
	b := seedConcept(t, db, "heuristic evaluation", 3)

	rel, err := repo.Create(ctx, nil, &types.ConceptRelation{
		ConceptAID:   b.ID,
		ConceptBID:   a.ID,
		RelationType: types.RelationRelated,
		Strength:     0.6,
		DocCount:     1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rel.ConceptAID.String() > rel.ConceptBID.String() {
		t.Fatalf("pair not stored in canonical order")
	}

	// Lookup succeeds regardless of argument order.
	got, err := repo.GetByPair(ctx, nil, a.ID, b.ID)
	if err != nil {
		t.Fatalf("GetByPair: %v", err)
	}
	if got.ID != rel.ID {
		t.Fatalf("expected same edge from either lookup order")
	}
}

func TestRelationSourcesLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewConceptRelationRepo(db, testLogger(t))
	ctx := context.Background()

	a := seedConcept(t, db, "usability testing", 5)
	b := seedConcept(t, db, "heuristic evaluation", 3)
	doc := seedDocument(t, db, "study")

	rel, err := repo.Create(ctx, nil, &types.ConceptRelation{
		ConceptAID: a.ID, ConceptBID: b.ID,
		RelationType: types.RelationRelated, Strength: 0.6, DocCount: 1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.CreateSource(ctx, nil, &types.ConceptRelationSource{
		RelationID: rel.ID, DocumentID: doc.ID, Contribution: 0.6,
	}); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	sources, err := repo.SourcesByDocumentID(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("SourcesByDocumentID: %v", err)
	}
	if len(sources) != 1 || sources[0].Contribution != 0.6 {
		t.Fatalf("unexpected sources %+v", sources)
	}

	// Deleting the edge removes its contribution rows too.
	if err := repo.Delete(ctx, nil, rel.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	sources, err = repo.SourcesByDocumentID(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("SourcesByDocumentID: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected sources removed with edge")
	}
}

func TestDocumentConceptRedirectMergesFrequencies(t *testing.T) {
	db := testDB(t)
	repo := NewDocumentConceptRepo(db, testLogger(t))
	ctx := context.Background()

	primary := seedConcept(t, db, "user interface", 20)
	secondary := seedConcept(t, db, "ui", 10)
	shared := seedDocument(t, db, "shared")
	only := seedDocument(t, db, "only-secondary")

	links := []*types.DocumentConcept{
		{DocumentID: shared.ID, ConceptID: primary.ID, Frequency: 4},
		{DocumentID: shared.ID, ConceptID: secondary.ID, Frequency: 6},
		{DocumentID: only.ID, ConceptID: secondary.ID, Frequency: 2},
	}
	if _, err := repo.Create(ctx, nil, links); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Redirect(ctx, nil, secondary.ID, primary.ID); err != nil {
		t.Fatalf("Redirect: %v", err)
	}

	remaining, err := repo.GetByConceptID(ctx, nil, secondary.ID)
	if err != nil {
		t.Fatalf("GetByConceptID: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no associations left on secondary")
	}

	primaryLinks, err := repo.GetByConceptID(ctx, nil, primary.ID)
	if err != nil {
		t.Fatalf("GetByConceptID: %v", err)
	}
	if len(primaryLinks) != 2 {
		t.Fatalf("expected 2 associations on primary, got %d", len(primaryLinks))
	}
	byDoc := map[uuid.UUID]int{}
	for _, l := range primaryLinks {
		byDoc[l.DocumentID] = l.Frequency
	}
	if byDoc[shared.ID] != 10 {
		t.Fatalf("expected shared doc frequency summed to 10, got %d", byDoc[shared.ID])
	}
	if byDoc[only.ID] != 2 {
		t.Fatalf("expected redirected frequency 2, got %d", byDoc[only.ID])
	}
}

func TestDocumentListPaginationAndStats(t *testing.T) {
	db := testDB(t)
	repo := NewDocumentRepo(db, testLogger(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedDocument(t, db, "doc")
	}
	failed := seedDocument(t, db, "broken")
	if err := repo.SetStatus(ctx, nil, failed.ID, types.StatusFailed, "boom"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	results, total, err := repo.List(ctx, nil, DocumentListFilter{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 4 || len(results) != 2 {
		t.Fatalf("expected total 4 with page of 2, got total=%d len=%d", total, len(results))
	}

	stats, err := repo.Stats(ctx, nil)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalDocuments != 4 {
		t.Fatalf("expected 4 documents, got %d", stats.TotalDocuments)
	}
	if stats.ByStatus[types.StatusFailed] != 1 {
		t.Fatalf("expected 1 failed document, got %d", stats.ByStatus[types.StatusFailed])
	}

	completed, err := repo.GetByStatus(ctx, nil, types.StatusCompleted)
	if err != nil {
		t.Fatalf("GetByStatus: %v", err)
	}
	if len(completed) != 3 {
		t.Fatalf("expected 3 completed documents, got %d", len(completed))
	}

	failedDoc, err := repo.GetByID(ctx, nil, failed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if failedDoc.ErrorMessage != "boom" || failedDoc.ProcessedAt == nil {
		t.Fatalf("expected failure details recorded, got %+v", failedDoc)
	}
}
