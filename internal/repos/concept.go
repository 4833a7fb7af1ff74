package repos

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/types"
)

// ConceptListFilter narrows and pages the concept listing.
type ConceptListFilter struct {
	Category string
	Search   string
	SortBy   string // frequency, name or created_at
	Page     int
	PerPage  int
}

// CategoryCount is one row of the category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type ConceptRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Concept, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Concept, error)
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Concept, error)
	GetByNames(ctx context.Context, tx *gorm.DB, names []string) ([]*types.Concept, error)
	UpsertIncrement(ctx context.Context, tx *gorm.DB, name, category string, delta int64) (*types.Concept, error)
	AddFrequency(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int64) error
	SetFrequency(ctx context.Context, tx *gorm.DB, id uuid.UUID, frequency int64) error
	List(ctx context.Context, tx *gorm.DB, filter ConceptListFilter) ([]*types.Concept, int64, error)
	TopByFrequency(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Concept, error)
	SearchByName(ctx context.Context, tx *gorm.DB, partial string, limit int) ([]*types.Concept, error)
	Categories(ctx context.Context, tx *gorm.DB) ([]CategoryCount, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	repoLog := baseLog.With("repo", "ConceptRepo")
	return &conceptRepo{db: db, log: repoLog}
}

func (r *conceptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Concept
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *conceptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Concept
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

func (r *conceptRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Concept
	if err := transaction.WithContext(ctx).
		Where("name = ?", normalizeName(name)).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *conceptRepo) GetByNames(ctx context.Context, tx *gorm.DB, names []string) ([]*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Concept
	if len(names) == 0 {
		return results, nil
	}

	normalized := make([]string, 0, len(names))
	for _, n := range names {
		normalized = append(normalized, normalizeName(n))
	}
	if err := transaction.WithContext(ctx).
		Where("name IN ?", normalized).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpsertIncrement creates the concept on first sight or adds delta to its
// aggregate frequency. A lost create race falls back to the increment path.
func (r *conceptRepo) UpsertIncrement(ctx context.Context, tx *gorm.DB, name, category string, delta int64) (*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	canonical := normalizeName(name)

	existing, err := r.GetByName(ctx, transaction, canonical)
	if err == nil {
		if addErr := r.AddFrequency(ctx, transaction, existing.ID, delta); addErr != nil {
			return nil, addErr
		}
		existing.Frequency += delta
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	concept := &types.Concept{
		ID:        uuid.New(),
		Name:      canonical,
		Category:  category,
		Frequency: delta,
	}
	if createErr := transaction.WithContext(ctx).Create(concept).Error; createErr != nil {
		if isUniqueViolation(createErr) {
			racer, getErr := r.GetByName(ctx, transaction, canonical)
			if getErr != nil {
				return nil, getErr
			}
			if addErr := r.AddFrequency(ctx, transaction, racer.ID, delta); addErr != nil {
				return nil, addErr
			}
			racer.Frequency += delta
			return racer, nil
		}
		return nil, createErr
	}
	return concept, nil
}

func (r *conceptRepo) AddFrequency(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if delta == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Concept{}).
		Where("id = ?", id).
		UpdateColumn("frequency", gorm.Expr("frequency + ?", delta)).Error
}

func (r *conceptRepo) SetFrequency(ctx context.Context, tx *gorm.DB, id uuid.UUID, frequency int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Concept{}).
		Where("id = ?", id).
		UpdateColumn("frequency", frequency).Error
}

func (r *conceptRepo) List(ctx context.Context, tx *gorm.DB, filter ConceptListFilter) ([]*types.Concept, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Model(&types.Concept{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+normalizeName(filter.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "frequency DESC"
	switch filter.SortBy {
	case "name":
		order = "name ASC"
	case "created_at":
		order = "created_at DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	var results []*types.Concept
	if err := query.
		Order(order).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *conceptRepo) TopByFrequency(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 10
	}

	var results []*types.Concept
	if err := transaction.WithContext(ctx).
		Order("frequency DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conceptRepo) SearchByName(ctx context.Context, tx *gorm.DB, partial string, limit int) ([]*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	partial = normalizeName(partial)
	if partial == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var results []*types.Concept
	if err := transaction.WithContext(ctx).
		Where("name LIKE ?", "%"+partial+"%").
		Order("frequency DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conceptRepo) Categories(ctx context.Context, tx *gorm.DB) ([]CategoryCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []CategoryCount
	if err := transaction.WithContext(ctx).
		Model(&types.Concept{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conceptRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(ctx).
		Model(&types.Concept{}).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *conceptRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Concept{}).Error
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
