package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/calegray/concepthub-backend/internal/clients/gcp"
	"github.com/calegray/concepthub-backend/internal/platform/apierr"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

// Extensions the upload endpoint accepts.
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"docx": true,
	"doc":  true,
	"txt":  true,
	"ppt":  true,
	"pptx": true,
	"xls":  true,
	"xlsx": true,
}

var mimeByExtension = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"doc":  "application/msword",
	"txt":  "text/plain",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// IsSupportedExtension reports whether the lowercase extension (without
// dot) can be processed.
func IsSupportedExtension(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// MimeTypeFor maps an extension to the MIME type sent to Document AI.
func MimeTypeFor(ext string) string {
	return mimeByExtension[strings.ToLower(ext)]
}

// ExtractionResult carries everything the pipeline learns from a file.
type ExtractionResult struct {
	Text      string
	Title     string
	Summary   string
	WordCount int
	PageCount int
}

type ExtractionService interface {
	Extract(ctx context.Context, originalFilename, fileType string, data []byte) (*ExtractionResult, error)
}

type extractionService struct {
	docai gcp.DocAIService
	log   *logger.Logger
}

func NewExtractionService(docai gcp.DocAIService, log *logger.Logger) ExtractionService {
	return &extractionService{
		docai: docai,
		log:   log.With("service", "ExtractionService"),
	}
}

func (s *extractionService) Extract(ctx context.Context, originalFilename, fileType string, data []byte) (*ExtractionResult, error) {
	ext := strings.ToLower(fileType)
	if !IsSupportedExtension(ext) {
		return nil, apierr.UnsupportedFormat(ext)
	}

	var (
		text      string
		pageCount int
	)
	switch ext {
	case "txt":
		text = string(data)
	default:
		if s.docai == nil {
			return nil, apierr.ExtractionFailed(fmt.Errorf("no processor configured for %q files", ext))
		}
		result, err := s.docai.ProcessBytes(ctx, MimeTypeFor(ext), data)
		if err != nil {
			return nil, apierr.ExtractionFailed(err)
		}
		text = result.Text
		pageCount = result.PageCount
	}

	text = strings.ToValidUTF8(text, "")
	return &ExtractionResult{
		Text:      text,
		Title:     deriveTitle(text, originalFilename),
		Summary:   deriveSummary(text),
		WordCount: countWords(text),
		PageCount: pageCount,
	}, nil
}

// deriveTitle picks the first plausible heading from the opening lines,
// falling back to a titled form of the filename.
func deriveTitle(text, originalFilename string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i >= 5 {
			break
		}
		line = strings.TrimSpace(line)
		if len(line) >= 10 && len(line) <= 100 {
			return line
		}
	}

	base := originalFilename
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return titleCase(strings.TrimSpace(base))
}

// deriveSummary keeps the first three sentences, capped at 500 characters.
func deriveSummary(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return ""
	}

	sentences := splitSentences(clean)
	if len(sentences) > 3 {
		sentences = sentences[:3]
	}
	summary := strings.TrimSpace(strings.Join(sentences, " "))
	if len(summary) > 500 {
		summary = strings.TrimSpace(summary[:500])
	}
	return summary
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(text[start : i+1])
			if sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
			if len(out) >= 3 {
				return out
			}
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
