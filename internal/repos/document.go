package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/types"
)

// DocumentListFilter narrows and pages the document listing.
type DocumentListFilter struct {
	Status   string
	FileType string
	Search   string
	Page     int
	PerPage  int
}

// DocumentStats aggregates corpus-level counters for the stats endpoint.
type DocumentStats struct {
	TotalDocuments int64            `json:"total_documents"`
	TotalSizeBytes int64            `json:"total_size_bytes"`
	TotalWordCount int64            `json:"total_word_count"`
	ByStatus       map[string]int64 `json:"by_status"`
	ByFileType     map[string]int64 `json:"by_file_type"`
}

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Document, error)
	List(ctx context.Context, tx *gorm.DB, filter DocumentListFilter) ([]*types.Document, int64, error)
	GetByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Document, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, errorMessage string) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Stats(ctx context.Context, tx *gorm.DB) (*DocumentStats, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	repoLog := baseLog.With("repo", "DocumentRepo")
	return &documentRepo{db: db, log: repoLog}
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Document
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *documentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Document
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentRepo) List(ctx context.Context, tx *gorm.DB, filter DocumentListFilter) ([]*types.Document, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Model(&types.Document{})
	if filter.Status != "" {
		query = query.Where("processing_status = ?", filter.Status)
	}
	if filter.FileType != "" {
		query = query.Where("file_type = ?", filter.FileType)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR original_filename LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var results []*types.Document
	if err := query.
		Order("uploaded_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *documentRepo) GetByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Document
	if err := transaction.WithContext(ctx).
		Where("processing_status = ?", status).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *documentRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, errorMessage string) error {
	fields := map[string]interface{}{
		"processing_status": status,
		"error_message":     errorMessage,
	}
	if status == types.StatusCompleted || status == types.StatusFailed {
		now := time.Now().UTC()
		fields["processed_at"] = &now
	}
	return r.UpdateFields(ctx, tx, id, fields)
}

func (r *documentRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Document{}).Error
}

func (r *documentRepo) Stats(ctx context.Context, tx *gorm.DB) (*DocumentStats, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	stats := &DocumentStats{
		ByStatus:   map[string]int64{},
		ByFileType: map[string]int64{},
	}

	model := transaction.WithContext(ctx).Model(&types.Document{})
	if err := model.Count(&stats.TotalDocuments).Error; err != nil {
		return nil, err
	}

	type sums struct {
		Size  int64
		Words int64
	}
	var s sums
	if err := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Select("COALESCE(SUM(file_size_bytes),0) AS size, COALESCE(SUM(word_count),0) AS words").
		Scan(&s).Error; err != nil {
		return nil, err
	}
	stats.TotalSizeBytes = s.Size
	stats.TotalWordCount = s.Words

	type bucket struct {
		Key   string
		Count int64
	}
	var byStatus []bucket
	if err := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Select("processing_status AS key, COUNT(*) AS count").
		Group("processing_status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.Count
	}

	var byType []bucket
	if err := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Select("file_type AS key, COUNT(*) AS count").
		Group("file_type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, b := range byType {
		stats.ByFileType[b.Key] = b.Count
	}

	return stats, nil
}
