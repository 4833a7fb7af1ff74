package search

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestKeywordScoreTitleOutranksBody(t *testing.T) {
	s := NewScorer(Weights{Keyword: 0.4, Semantic: 0.35, Concept: 0.25})
	tokens := Tokenize("usability")

	titled := s.KeywordScore(tokens, "Usability Testing Methods", "general process notes", "")
	bodyOnly := s.KeywordScore(tokens, "Process Notes", "notes mentioning usability once in a longer body", "")

	if titled <= bodyOnly {
		t.Fatalf("title match must outrank body match: %f vs %f", titled, bodyOnly)
	}
	if titled < 0 || titled > 1 {
		t.Fatalf("keyword score out of [0,1]: %f", titled)
	}
}

func TestKeywordScoreNoMatch(t *testing.T) {
	s := NewScorer(Weights{})
	if got := s.KeywordScore(Tokenize("quantum"), "Usability", "testing", ""); got != 0 {
		t.Fatalf("expected 0 for no overlap, got %f", got)
	}
}

func TestSemanticFallback(t *testing.T) {
	s := NewScorer(Weights{})
	snap := emptySnapshot()
	got := s.SemanticScore(snap, uuid.New(), nil, 0.6)
	want := 0.6 * semanticFallbackDecay
	if got != want {
		t.Fatalf("expected decayed keyword fallback %f, got %f", want, got)
	}
}

func TestConceptScoreFraction(t *testing.T) {
	s := NewScorer(Weights{})
	tokens := Tokenize("usability research")
	got := s.ConceptScore(tokens, []string{"usability testing", "eye tracking"})
	if got != 0.5 {
		t.Fatalf("expected half the concepts matched, got %f", got)
	}
	if s.ConceptScore(tokens, nil) != 0 {
		t.Fatalf("no concepts must score 0")
	}
}

func TestHybridWithinSignalBounds(t *testing.T) {
	s := NewScorer(Weights{Keyword: 0.4, Semantic: 0.35, Concept: 0.25})
	sig := Signals{Keyword: 0.9, Semantic: 0.3, Concept: 0.6}
	got := s.Blend(TypeHybrid, sig)
	if got < 0.3 || got > 0.9 {
		t.Fatalf("hybrid score must lie within signal bounds, got %f", got)
	}
}

func TestBlendSingleModes(t *testing.T) {
	s := NewScorer(Weights{})
	sig := Signals{Keyword: 0.1, Semantic: 0.2, Concept: 0.3}
	if s.Blend(TypeKeyword, sig) != 0.1 {
		t.Fatalf("keyword mode must return keyword signal")
	}
	if s.Blend(TypeSemantic, sig) != 0.2 {
		t.Fatalf("semantic mode must return semantic signal")
	}
	if s.Blend(TypeConcept, sig) != 0.3 {
		t.Fatalf("concept mode must return concept signal")
	}
}

func TestWeightsNormalized(t *testing.T) {
	w := Weights{Keyword: 2, Semantic: 1, Concept: 1}.normalized()
	sum := w.Keyword + w.Semantic + w.Concept
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("weights must sum to 1, got %f", sum)
	}
	zero := Weights{}.normalized()
	if zero.Keyword != 0.4 || zero.Semantic != 0.35 || zero.Concept != 0.25 {
		t.Fatalf("zero weights must fall back to defaults, got %+v", zero)
	}
}

func TestHighlightMarksFirstMatch(t *testing.T) {
	h, ok := HighlightField("content", "A study of usability testing in the field.", Tokenize("usability"), 40)
	if !ok {
		t.Fatalf("expected a highlight")
	}
	if h.Field != "content" {
		t.Fatalf("wrong field %q", h.Field)
	}
	if want := "<mark>usability</mark>"; !strings.Contains(h.Snippet, want) {
		t.Fatalf("expected %q in snippet %q", want, h.Snippet)
	}
}

func TestHighlightBounded(t *testing.T) {
	long := "padding " + strings.Repeat("x ", 300) + "usability" + strings.Repeat(" y", 300)
	h, ok := HighlightField("content", long, Tokenize("usability"), 60)
	if !ok {
		t.Fatalf("expected a highlight")
	}
	if len(h.Snippet) > 60+len("<mark></mark>")+len("usability")+6 {
		t.Fatalf("snippet not bounded, len=%d", len(h.Snippet))
	}
	if !strings.Contains(h.Snippet, "...") {
		t.Fatalf("expected ellipsis on truncated snippet")
	}
}

func TestHighlightNoMatch(t *testing.T) {
	if _, ok := HighlightField("title", "Graph Layouts", Tokenize("usability"), 40); ok {
		t.Fatalf("expected no highlight without a match")
	}
}
