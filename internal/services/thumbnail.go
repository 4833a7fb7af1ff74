package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/clients/gcp"
	"github.com/calegray/concepthub-backend/internal/platform/apierr"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/types"
)

const (
	thumbWidth  = 320
	thumbHeight = 420
)

// Card colors keyed by file type family.
var thumbColors = map[string]color.RGBA{
	"pdf":  {R: 0xc0, G: 0x39, B: 0x2b, A: 0xff},
	"doc":  {R: 0x29, G: 0x80, B: 0xb9, A: 0xff},
	"docx": {R: 0x29, G: 0x80, B: 0xb9, A: 0xff},
	"txt":  {R: 0x7f, G: 0x8c, B: 0x8d, A: 0xff},
	"ppt":  {R: 0xd3, G: 0x54, B: 0x00, A: 0xff},
	"pptx": {R: 0xd3, G: 0x54, B: 0x00, A: 0xff},
	"xls":  {R: 0x27, G: 0xae, B: 0x60, A: 0xff},
	"xlsx": {R: 0x27, G: 0xae, B: 0x60, A: 0xff},
}

// ThumbnailService renders a small cover card per document so the library
// view has something to show without parsing the original file.
type ThumbnailService interface {
	Generate(ctx context.Context, documentID uuid.UUID) error
	Open(ctx context.Context, documentID uuid.UUID) (io.ReadCloser, error)
}

type thumbnailService struct {
	documents repos.DocumentRepo
	bucket    gcp.BucketService
	titleFace font.Face
	badgeFace font.Face
	log       *logger.Logger
}

func NewThumbnailService(documents repos.DocumentRepo, bucket gcp.BucketService, log *logger.Logger) ThumbnailService {
	serviceLog := log.With("service", "ThumbnailService")
	titleFace, badgeFace := loadFaces(serviceLog)
	return &thumbnailService{
		documents: documents,
		bucket:    bucket,
		titleFace: titleFace,
		badgeFace: badgeFace,
		log:       serviceLog,
	}
}

// loadFaces parses THUMBNAIL_FONT_PATH when provided, otherwise falls back
// to the built-in bitmap face.
func loadFaces(log *logger.Logger) (font.Face, font.Face) {
	path := strings.TrimSpace(os.Getenv("THUMBNAIL_FONT_PATH"))
	if path == "" {
		return basicfont.Face7x13, basicfont.Face7x13
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Thumbnail font unreadable, using built-in face", "path", path, "error", err)
		return basicfont.Face7x13, basicfont.Face7x13
	}
	parsed, err := truetype.Parse(raw)
	if err != nil {
		log.Warn("Thumbnail font unparsable, using built-in face", "path", path, "error", err)
		return basicfont.Face7x13, basicfont.Face7x13
	}
	title := truetype.NewFace(parsed, &truetype.Options{Size: 20})
	badge := truetype.NewFace(parsed, &truetype.Options{Size: 14})
	return title, badge
}

func (s *thumbnailService) Generate(ctx context.Context, documentID uuid.UUID) error {
	doc, err := s.documents.GetByID(ctx, nil, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("document")
	}
	if err != nil {
		return err
	}

	img := s.render(doc)
	var buf bytes.Buffer
	if err := img.EncodePNG(&buf); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	key := thumbnailKey(doc.ID)
	if err := s.bucket.Upload(ctx, key, &buf); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}
	return s.documents.UpdateFields(ctx, nil, doc.ID, map[string]interface{}{
		"thumbnail_key": key,
	})
}

func (s *thumbnailService) render(doc *types.Document) *gg.Context {
	dc := gg.NewContext(thumbWidth, thumbHeight)

	bg, ok := thumbColors[doc.FileType]
	if !ok {
		bg = color.RGBA{R: 0x34, G: 0x49, B: 0x5e, A: 0xff}
	}
	dc.SetColor(bg)
	dc.Clear()

	// Lighter band at the top holding the file-type badge.
	dc.SetRGBA(1, 1, 1, 0.15)
	dc.DrawRectangle(0, 0, thumbWidth, 64)
	dc.Fill()

	dc.SetFontFace(s.badgeFace)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(strings.ToUpper(doc.FileType), 24, 32, 0, 0.5)

	title := doc.Title
	if title == "" {
		title = doc.OriginalFilename
	}
	dc.SetFontFace(s.titleFace)
	dc.DrawStringWrapped(title, 24, 100, 0, 0, thumbWidth-48, 1.5, gg.AlignLeft)

	if doc.WordCount > 0 {
		dc.SetFontFace(s.badgeFace)
		dc.SetRGBA(1, 1, 1, 0.7)
		dc.DrawStringAnchored(fmt.Sprintf("%d words", doc.WordCount), 24, thumbHeight-28, 0, 0.5)
	}
	return dc
}

func (s *thumbnailService) Open(ctx context.Context, documentID uuid.UUID) (io.ReadCloser, error) {
	doc, err := s.documents.GetByID(ctx, nil, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("document")
	}
	if err != nil {
		return nil, err
	}
	if doc.ThumbnailKey == "" {
		return nil, apierr.NotFound("thumbnail")
	}
	return s.bucket.Download(ctx, doc.ThumbnailKey)
}

func thumbnailKey(id uuid.UUID) string {
	return "thumbnails/" + id.String() + ".png"
}
