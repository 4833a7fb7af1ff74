package analysis

import (
	"math"
	"testing"

	"github.com/calegray/concepthub-backend/internal/types"
)

func newTestBuilder() *RelationBuilder {
	return NewRelationBuilder(RelationConfig{SynonymMaxDistance: 3, MinStrength: 0.05})
}

func TestContributionsCoOccurrence(t *testing.T) {
	b := newTestBuilder()
	contribs := b.Contributions([]PairInput{
		{Name: "usability testing", DocFrequency: 5, TotalFrequency: 5},
		{Name: "heuristic evaluation", DocFrequency: 3, TotalFrequency: 3},
	})
	if len(contribs) != 1 {
		t.Fatalf("expected one pair, got %d", len(contribs))
	}
	c := contribs[0]
	if c.NameA != "heuristic evaluation" || c.NameB != "usability testing" {
		t.Fatalf("pair not ordered by name: %q / %q", c.NameA, c.NameB)
	}
	want := 3.0 / 5.0
	if math.Abs(c.Value-want) > 1e-9 {
		t.Fatalf("expected contribution %.3f, got %.3f", want, c.Value)
	}
	if c.Kind != types.RelationRelated {
		t.Fatalf("expected related kind, got %s", c.Kind)
	}
}

func TestContributionsExcludeSelfAndClamp(t *testing.T) {
	b := newTestBuilder()
	contribs := b.Contributions([]PairInput{
		{Name: "affordance", DocFrequency: 10, TotalFrequency: 2},
		{Name: "affordance", DocFrequency: 10, TotalFrequency: 2},
		{Name: "feedback", DocFrequency: 10, TotalFrequency: 2},
	})
	for _, c := range contribs {
		if c.NameA == c.NameB {
			t.Fatalf("self pair must be excluded")
		}
		if c.Value < 0 || c.Value > 1 {
			t.Fatalf("contribution out of [0,1]: %f", c.Value)
		}
	}
}

func TestClassifyKinds(t *testing.T) {
	b := newTestBuilder()
	cases := []struct {
		a, b string
		want string
	}{
		{"interaction design", "design", types.RelationHierarchical},
		{"usability", "usability testing", types.RelationHierarchical},
		{"prototype", "prototypes", types.RelationSynonym},
		{"user-centered design", "user centered design", types.RelationSynonym},
		{"cognitive load", "mental model", types.RelationRelated},
	}
	for _, tc := range cases {
		if got := b.Classify(tc.a, tc.b); got != tc.want {
			t.Fatalf("Classify(%q, %q) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestClassifyNoPartialWordHierarchy(t *testing.T) {
	b := newTestBuilder()
	// "art" is inside "smart home" but not on a word boundary.
	if got := b.Classify("art", "smart home"); got == types.RelationHierarchical {
		t.Fatalf("substring without word boundary must not be hierarchical")
	}
}

func TestApplyRetractRoundTrip(t *testing.T) {
	strength := 0.0
	docCount := 0

	first := 0.4
	strength = ApplyContribution(strength, docCount, first)
	docCount++
	second := 0.2
	strength = ApplyContribution(strength, docCount, second)
	docCount++

	if math.Abs(strength-0.3) > 1e-9 {
		t.Fatalf("expected running average 0.3, got %f", strength)
	}

	// Retract then re-apply the same contribution; the average is unchanged.
	retracted := RetractContribution(strength, docCount, second)
	reapplied := ApplyContribution(retracted, docCount-1, second)
	if math.Abs(reapplied-strength) > 1e-9 {
		t.Fatalf("retract+apply must be a no-op, got %f want %f", reapplied, strength)
	}

	if got := RetractContribution(0.4, 1, 0.4); got != 0 {
		t.Fatalf("retracting the only contribution must zero the edge, got %f", got)
	}
}

func TestMeetsFloor(t *testing.T) {
	b := newTestBuilder()
	if b.MeetsFloor(0.04) {
		t.Fatalf("strength below floor must not persist")
	}
	if !b.MeetsFloor(0.05) {
		t.Fatalf("strength at floor must persist")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"ui", "ux", 1},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
