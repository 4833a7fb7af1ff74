package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/types"
)

type DocumentConceptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, links []*types.DocumentConcept) ([]*types.DocumentConcept, error)
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentConcept, error)
	GetByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*types.DocumentConcept, error)
	GetByDocumentIDs(ctx context.Context, tx *gorm.DB, documentIDs []uuid.UUID) ([]*types.DocumentConcept, error)
	DocumentIDsForConcepts(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]uuid.UUID, error)
	DeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
	DeleteByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) error
	CountDocuments(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) (int64, error)
	Redirect(ctx context.Context, tx *gorm.DB, fromConceptID, toConceptID uuid.UUID) error
}

type documentConceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentConceptRepo(db *gorm.DB, baseLog *logger.Logger) DocumentConceptRepo {
	repoLog := baseLog.With("repo", "DocumentConceptRepo")
	return &documentConceptRepo{db: db, log: repoLog}
}

func (r *documentConceptRepo) Create(ctx context.Context, tx *gorm.DB, links []*types.DocumentConcept) ([]*types.DocumentConcept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(links) == 0 {
		return []*types.DocumentConcept{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *documentConceptRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentConcept, error) {
	return r.GetByDocumentIDs(ctx, tx, []uuid.UUID{documentID})
}

func (r *documentConceptRepo) GetByDocumentIDs(ctx context.Context, tx *gorm.DB, documentIDs []uuid.UUID) ([]*types.DocumentConcept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.DocumentConcept
	if len(documentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("document_id IN ?", documentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentConceptRepo) GetByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*types.DocumentConcept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.DocumentConcept
	if err := transaction.WithContext(ctx).
		Where("concept_id = ?", conceptID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentConceptRepo) DocumentIDsForConcepts(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if len(conceptIDs) == 0 {
		return ids, nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.DocumentConcept{}).
		Where("concept_id IN ?", conceptIDs).
		Distinct("document_id").
		Pluck("document_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *documentConceptRepo) DeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&types.DocumentConcept{}).Error
}

func (r *documentConceptRepo) DeleteByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("concept_id = ?", conceptID).
		Delete(&types.DocumentConcept{}).Error
}

func (r *documentConceptRepo) CountDocuments(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(ctx).
		Model(&types.DocumentConcept{}).
		Where("concept_id = ?", conceptID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Redirect moves every association from one concept to another, summing
// per-document frequencies where the target already has a row for the same
// document. Used by concept merges.
func (r *documentConceptRepo) Redirect(ctx context.Context, tx *gorm.DB, fromConceptID, toConceptID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	fromLinks, err := r.GetByConceptID(ctx, transaction, fromConceptID)
	if err != nil {
		return err
	}
	if len(fromLinks) == 0 {
		return nil
	}

	toLinks, err := r.GetByConceptID(ctx, transaction, toConceptID)
	if err != nil {
		return err
	}
	existing := make(map[uuid.UUID]*types.DocumentConcept, len(toLinks))
	for _, link := range toLinks {
		existing[link.DocumentID] = link
	}

	for _, link := range fromLinks {
		if target, ok := existing[link.DocumentID]; ok {
			if err := transaction.WithContext(ctx).
				Model(&types.DocumentConcept{}).
				Where("document_id = ? AND concept_id = ?", target.DocumentID, toConceptID).
				UpdateColumn("frequency", gorm.Expr("frequency + ?", link.Frequency)).Error; err != nil {
				return err
			}
			continue
		}
		if err := transaction.WithContext(ctx).
			Model(&types.DocumentConcept{}).
			Where("document_id = ? AND concept_id = ?", link.DocumentID, fromConceptID).
			UpdateColumn("concept_id", toConceptID).Error; err != nil {
			return err
		}
	}

	return transaction.WithContext(ctx).
		Where("concept_id = ?", fromConceptID).
		Delete(&types.DocumentConcept{}).Error
}
