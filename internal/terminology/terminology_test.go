package terminology

import "testing"

func TestLoadEmbedded(t *testing.T) {
	table, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() == 0 {
		t.Fatalf("expected embedded table to contain terms")
	}
	category, ok := table.Category("usability testing")
	if !ok {
		t.Fatalf("expected 'usability testing' in table")
	}
	if category != "usability" {
		t.Fatalf("expected category usability, got %s", category)
	}
	if !table.Contains("Cognitive Load") {
		t.Fatalf("lookup should fold case")
	}
}

func TestParseNormalizes(t *testing.T) {
	table, err := Parse([]byte("Design:\n  - '  Affordance '\n  - affordance\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected duplicate term collapsed, got %d terms", table.Len())
	}
	if category, _ := table.Category("affordance"); category != "design" {
		t.Fatalf("expected normalized category design, got %s", category)
	}
}

func TestTermsLongestFirst(t *testing.T) {
	table, err := Parse([]byte("c:\n  - user interface design\n  - ui\n  - user interface\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	terms := table.Terms()
	if terms[0] != "user interface design" {
		t.Fatalf("expected longest term first, got %q", terms[0])
	}
	if terms[len(terms)-1] != "ui" {
		t.Fatalf("expected shortest term last, got %q", terms[len(terms)-1])
	}
}
