package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func sampleDocs() []DocEntry {
	return []DocEntry{
		{
			ID:      uuid.New(),
			Title:   "Usability Testing Methods",
			Content: "A survey of usability testing practice in industry.",
		},
		{
			ID:      uuid.New(),
			Title:   "Graph Layouts",
			Content: "Force directed layouts for large graphs and networks.",
		},
	}
}

func TestIndexStartsEmpty(t *testing.T) {
	idx := NewIndex(nil, testLogger(t))
	snap := idx.Current()
	if snap == nil {
		t.Fatalf("Current must never return nil")
	}
	if snap.Len() != 0 {
		t.Fatalf("expected empty snapshot before first rebuild")
	}
}

func TestRebuildAndScore(t *testing.T) {
	idx := NewIndex(nil, testLogger(t))
	docs := sampleDocs()
	count, err := idx.Rebuild(context.Background(), docs)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 documents indexed, got %d", count)
	}
	snap := idx.Current()

	simA := snap.TFIDFSimilarity(Tokenize("usability testing"), docs[0].ID)
	simB := snap.TFIDFSimilarity(Tokenize("usability testing"), docs[1].ID)
	if simA <= 0 {
		t.Fatalf("expected positive similarity for matching document, got %f", simA)
	}
	if simA <= simB {
		t.Fatalf("matching document must outscore unrelated one: %f vs %f", simA, simB)
	}
	if simA > 1 {
		t.Fatalf("similarity must stay within [0,1], got %f", simA)
	}
}

func TestRebuildSwapKeepsOldSnapshotReadable(t *testing.T) {
	idx := NewIndex(nil, testLogger(t))
	docs := sampleDocs()
	if _, err := idx.Rebuild(context.Background(), docs[:1]); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	old := idx.Current()

	if _, err := idx.Rebuild(context.Background(), docs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	// The earlier generation is still a consistent read view.
	if old.Len() != 1 {
		t.Fatalf("old snapshot mutated by rebuild, len=%d", old.Len())
	}
	if idx.Current().Len() != 2 {
		t.Fatalf("new snapshot not swapped in")
	}
}

func TestRebuildConcurrent(t *testing.T) {
	idx := NewIndex(nil, testLogger(t))
	docs := sampleDocs()
	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := idx.Rebuild(context.Background(), docs); err != nil {
				t.Errorf("Rebuild: %v", err)
			}
			_ = idx.Current().Len()
		}()
	}
	wg.Wait()
	if idx.Current().Len() != 2 {
		t.Fatalf("expected final snapshot with 2 documents")
	}
}

type fixedEmbedder struct{ vec []float32 }

func (f fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, nil
}

func TestRebuildStoresEmbeddings(t *testing.T) {
	idx := NewIndex(fixedEmbedder{vec: []float32{0.5, 0.5}}, testLogger(t))
	docs := sampleDocs()
	if _, err := idx.Rebuild(context.Background(), docs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := idx.Current().Embedding(docs[0].ID); len(got) != 2 {
		t.Fatalf("expected stored embedding, got %v", got)
	}
	if !idx.Current().BuiltAt().Before(time.Now().Add(time.Second)) {
		t.Fatalf("builtAt not set")
	}
}

func TestTokenizeKeepsAbbreviations(t *testing.T) {
	tokens := Tokenize("The UI of X")
	want := map[string]bool{"the": true, "ui": true, "of": true}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %v", tokens)
	}
	for _, tok := range tokens {
		if !want[tok] {
			t.Fatalf("unexpected token %q", tok)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors should score 1, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors should score 0, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Fatalf("mismatched shapes should score 0, got %f", got)
	}
}
