package services

import (
	"context"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	svc := NewExtractionService(nil, testLogger(t))
	text := "Direct Manipulation Interfaces\n\nDirect manipulation lets users act on visible objects. " +
		"Feedback is immediate. The approach reduces cognitive load for novices."

	res, err := svc.Extract(context.Background(), "paper.txt", "txt", []byte(text))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Title != "Direct Manipulation Interfaces" {
		t.Fatalf("expected first line as title, got %q", res.Title)
	}
	if res.Summary == "" || len(res.Summary) > 500 {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
	if res.WordCount == 0 {
		t.Fatalf("expected word count")
	}
}

func TestExtractTitleFallsBackToFilename(t *testing.T) {
	svc := NewExtractionService(nil, testLogger(t))
	// No line in range 10..100 chars, so the filename supplies the title.
	res, err := svc.Extract(context.Background(), "hci_lecture_notes.txt", "txt", []byte("ok\nno\nna\nhm\nye\nbody text follows much later"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Title), "hci") {
		t.Fatalf("expected filename-derived title, got %q", res.Title)
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	svc := NewExtractionService(nil, testLogger(t))
	if _, err := svc.Extract(context.Background(), "image.png", "png", []byte{1}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestExtractBinaryWithoutProcessor(t *testing.T) {
	svc := NewExtractionService(nil, testLogger(t))
	if _, err := svc.Extract(context.Background(), "paper.pdf", "pdf", []byte("%PDF-1.4")); err == nil {
		t.Fatalf("expected extraction failure without a configured processor")
	}
}

func TestSupportedExtensions(t *testing.T) {
	for _, ext := range []string{"pdf", "docx", "txt", "pptx", "xlsx"} {
		if !IsSupportedExtension(ext) {
			t.Fatalf("expected %s supported", ext)
		}
	}
	if IsSupportedExtension("exe") {
		t.Fatalf("exe must not be supported")
	}
	if MimeTypeFor("pdf") != "application/pdf" {
		t.Fatalf("unexpected mime for pdf")
	}
}
