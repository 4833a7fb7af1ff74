package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/analysis"
	"github.com/calegray/concepthub-backend/internal/clients/gcp"
	"github.com/calegray/concepthub-backend/internal/jobs"
	"github.com/calegray/concepthub-backend/internal/platform/apierr"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/types"
)

const maxUploadBytes = 50 << 20

// SimilarDocument pairs a document with the number of concepts it shares
// with the reference document.
type SimilarDocument struct {
	Document       *types.Document `json:"document"`
	SharedConcepts int             `json:"shared_concepts"`
}

type DocumentService interface {
	Upload(ctx context.Context, originalFilename string, r io.Reader) (*types.Document, error)
	Process(ctx context.Context, documentID uuid.UUID) error
	Reanalyze(ctx context.Context, id uuid.UUID) (*types.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Document, error)
	List(ctx context.Context, filter repos.DocumentListFilter) ([]*types.Document, int64, error)
	Content(ctx context.Context, id uuid.UUID) (string, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*repos.DocumentStats, error)
	Similar(ctx context.Context, id uuid.UUID, limit int) ([]*SimilarDocument, error)
}

type documentService struct {
	db          *gorm.DB
	documents   repos.DocumentRepo
	docConcepts repos.DocumentConceptRepo
	extraction  ExtractionService
	extractor   *analysis.Extractor
	concepts    ConceptService
	thumbnails  ThumbnailService
	bucket      gcp.BucketService
	queue       *jobs.Queue
	log         *logger.Logger
}

func NewDocumentService(
	db *gorm.DB,
	documents repos.DocumentRepo,
	docConcepts repos.DocumentConceptRepo,
	extraction ExtractionService,
	extractor *analysis.Extractor,
	concepts ConceptService,
	thumbnails ThumbnailService,
	bucket gcp.BucketService,
	queue *jobs.Queue,
	log *logger.Logger,
) DocumentService {
	return &documentService{
		db:          db,
		documents:   documents,
		docConcepts: docConcepts,
		extraction:  extraction,
		extractor:   extractor,
		concepts:    concepts,
		thumbnails:  thumbnails,
		bucket:      bucket,
		queue:       queue,
		log:         log.With("service", "DocumentService"),
	}
}

// Upload validates the extension, stores the raw bytes and queues the
// document for background analysis. The response carries a pending row.
func (s *documentService) Upload(ctx context.Context, originalFilename string, r io.Reader) (*types.Document, error) {
	originalFilename = strings.TrimSpace(originalFilename)
	if originalFilename == "" {
		return nil, apierr.Validation(fmt.Errorf("filename required"))
	}
	ext := extensionOf(originalFilename)
	if !IsSupportedExtension(ext) {
		return nil, apierr.UnsupportedFormat(ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, apierr.Validation(fmt.Errorf("empty file"))
	}
	if len(data) > maxUploadBytes {
		return nil, apierr.Validation(fmt.Errorf("file exceeds %d bytes", maxUploadBytes))
	}

	storedFilename := buildStoredFilename(originalFilename, ext)
	if err := s.bucket.Upload(ctx, objectKey(storedFilename), bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &types.Document{
		OriginalFilename: originalFilename,
		StoredFilename:   storedFilename,
		FileType:         ext,
		FileSizeBytes:    int64(len(data)),
		ProcessingStatus: types.StatusPending,
	}
	if _, err := s.documents.Create(ctx, nil, doc); err != nil {
		// Keep storage consistent with the database.
		_ = s.bucket.Delete(ctx, objectKey(storedFilename))
		return nil, err
	}

	if !s.queue.Enqueue(doc.ID) {
		s.log.Warn("Processing queue full, document left pending", "document_id", doc.ID)
	}
	return doc, nil
}

// Process runs the full pipeline for one document: extract text, derive
// metadata, detect concepts and commit concepts plus relations in a single
// transaction. On failure the document is marked failed with the message
// retained; no partial concept writes survive.
func (s *documentService) Process(ctx context.Context, documentID uuid.UUID) error {
	var span trace.Span
	ctx, span = otel.Tracer("services/document").Start(ctx, "document.process",
		trace.WithAttributes(attribute.String("document.id", documentID.String())))
	defer span.End()

	doc, err := s.documents.GetByID(ctx, nil, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("document")
	}
	if err != nil {
		return err
	}

	if err := s.documents.SetStatus(ctx, nil, doc.ID, types.StatusProcessing, ""); err != nil {
		return err
	}

	result, err := s.extractText(ctx, doc)
	if err != nil {
		if statusErr := s.documents.SetStatus(ctx, nil, doc.ID, types.StatusFailed, err.Error()); statusErr != nil {
			s.log.Error("Failed to record failure status", "document_id", doc.ID, "error", statusErr)
		}
		return err
	}

	detections := s.extractor.Extract(ctx, result.Text)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"title":             result.Title,
			"content":           result.Text,
			"summary":           result.Summary,
			"word_count":        result.WordCount,
			"page_count":        result.PageCount,
			"processing_status": types.StatusCompleted,
			"error_message":     "",
			"processed_at":      timePtr(time.Now().UTC()),
		}
		if err := s.documents.UpdateFields(ctx, tx, doc.ID, fields); err != nil {
			return err
		}
		return s.concepts.ApplyExtraction(ctx, tx, doc, detections)
	})
	if err != nil {
		if statusErr := s.documents.SetStatus(ctx, nil, doc.ID, types.StatusFailed, err.Error()); statusErr != nil {
			s.log.Error("Failed to record failure status", "document_id", doc.ID, "error", statusErr)
		}
		return err
	}

	s.concepts.SyncGraphMirror(ctx, doc.ID)
	if s.thumbnails != nil {
		if thumbErr := s.thumbnails.Generate(ctx, doc.ID); thumbErr != nil {
			s.log.Warn("Thumbnail generation failed", "document_id", doc.ID, "error", thumbErr)
		}
	}

	s.log.Info("Document processed", "document_id", doc.ID, "concepts", len(detections), "words", result.WordCount)
	return nil
}

func (s *documentService) extractText(ctx context.Context, doc *types.Document) (*ExtractionResult, error) {
	reader, err := s.bucket.Download(ctx, objectKey(doc.StoredFilename))
	if err != nil {
		return nil, apierr.ExtractionFailed(fmt.Errorf("fetch stored file: %w", err))
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apierr.ExtractionFailed(fmt.Errorf("read stored file: %w", err))
	}
	return s.extraction.Extract(ctx, doc.OriginalFilename, doc.FileType, data)
}

// Reanalyze requeues a document. The pipeline retracts its previous
// contribution before applying the fresh pass, so repeated runs over
// unchanged text leave frequencies and strengths alone.
func (s *documentService) Reanalyze(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	doc, err := s.documents.GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("document")
	}
	if err != nil {
		return nil, err
	}

	if err := s.documents.SetStatus(ctx, nil, doc.ID, types.StatusPending, ""); err != nil {
		return nil, err
	}
	doc.ProcessingStatus = types.StatusPending
	if !s.queue.Enqueue(doc.ID) {
		s.log.Warn("Processing queue full, reanalysis left pending", "document_id", doc.ID)
	}
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	doc, err := s.documents.GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("document")
	}
	return doc, err
}

func (s *documentService) List(ctx context.Context, filter repos.DocumentListFilter) ([]*types.Document, int64, error) {
	return s.documents.List(ctx, nil, filter)
}

func (s *documentService) Content(ctx context.Context, id uuid.UUID) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.ProcessingStatus != types.StatusCompleted {
		return "", apierr.Validation(fmt.Errorf("document is %s, content not available", doc.ProcessingStatus))
	}
	return doc.Content, nil
}

// Delete removes the document, retracts its concept contributions and
// cleans up stored artifacts.
func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.concepts.RetractDocument(ctx, tx, doc.ID); err != nil {
			return err
		}
		return s.documents.Delete(ctx, tx, doc.ID)
	})
	if err != nil {
		return err
	}

	if err := s.bucket.Delete(ctx, objectKey(doc.StoredFilename)); err != nil {
		s.log.Warn("Stored file cleanup failed", "document_id", doc.ID, "error", err)
	}
	if doc.ThumbnailKey != "" {
		if err := s.bucket.Delete(ctx, doc.ThumbnailKey); err != nil {
			s.log.Warn("Thumbnail cleanup failed", "document_id", doc.ID, "error", err)
		}
	}
	return nil
}

func (s *documentService) Stats(ctx context.Context) (*repos.DocumentStats, error) {
	return s.documents.Stats(ctx, nil)
}

// Similar ranks other documents by how many concepts they share with the
// given one.
func (s *documentService) Similar(ctx context.Context, id uuid.UUID, limit int) ([]*SimilarDocument, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	links, err := s.docConcepts.GetByDocumentID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []*SimilarDocument{}, nil
	}
	conceptIDs := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		conceptIDs = append(conceptIDs, link.ConceptID)
	}

	shared := make(map[uuid.UUID]int)
	for _, conceptID := range conceptIDs {
		others, err := s.docConcepts.GetByConceptID(ctx, nil, conceptID)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.DocumentID == id {
				continue
			}
			shared[other.DocumentID]++
		}
	}
	if len(shared) == 0 {
		return []*SimilarDocument{}, nil
	}

	ids := make([]uuid.UUID, 0, len(shared))
	for docID := range shared {
		ids = append(ids, docID)
	}
	docs, err := s.documents.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*SimilarDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.ProcessingStatus != types.StatusCompleted {
			continue
		}
		out = append(out, &SimilarDocument{Document: doc, SharedConcepts: shared[doc.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SharedConcepts != out[j].SharedConcepts {
			return out[i].SharedConcepts > out[j].SharedConcepts
		}
		return out[i].Document.UploadedAt.After(out[j].Document.UploadedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func extensionOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// buildStoredFilename makes collisions practically impossible without
// leaking the original name into storage keys.
func buildStoredFilename(originalFilename, ext string) string {
	now := time.Now().UTC()
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", originalFilename, now.UnixNano())))
	return fmt.Sprintf("%s_%s.%s", now.Format("20060102150405"), hex.EncodeToString(h[:])[:8], ext)
}

func objectKey(storedFilename string) string {
	return "documents/" + storedFilename
}

func timePtr(t time.Time) *time.Time { return &t }
