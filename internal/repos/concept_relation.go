package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/types"
)

// RelationListFilter narrows the relation listing.
type RelationListFilter struct {
	ConceptID    *uuid.UUID
	RelationType string
	MinStrength  float64
	Limit        int
}

type ConceptRelationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rel *types.ConceptRelation) (*types.ConceptRelation, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ConceptRelation, error)
	GetByPair(ctx context.Context, tx *gorm.DB, aID, bID uuid.UUID) (*types.ConceptRelation, error)
	GetByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*types.ConceptRelation, error)
	List(ctx context.Context, tx *gorm.DB, filter RelationListFilter) ([]*types.ConceptRelation, error)
	UpdateStrength(ctx context.Context, tx *gorm.DB, id uuid.UUID, strength float64, docCount int, relationType string) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) error
	Count(ctx context.Context, tx *gorm.DB) (int64, error)

	CreateSource(ctx context.Context, tx *gorm.DB, src *types.ConceptRelationSource) error
	SourcesByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.ConceptRelationSource, error)
	DeleteSourcesByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
	DeleteSourcesByRelationID(ctx context.Context, tx *gorm.DB, relationID uuid.UUID) error
	RedirectSources(ctx context.Context, tx *gorm.DB, fromRelationID, toRelationID uuid.UUID) error
}

type conceptRelationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRelationRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRelationRepo {
	repoLog := baseLog.With("repo", "ConceptRelationRepo")
	return &conceptRelationRepo{db: db, log: repoLog}
}

// OrderPair returns the two ids in canonical storage order.
func OrderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

func (r *conceptRelationRepo) Create(ctx context.Context, tx *gorm.DB, rel *types.ConceptRelation) (*types.ConceptRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	rel.ConceptAID, rel.ConceptBID = OrderPair(rel.ConceptAID, rel.ConceptBID)
	if err := transaction.WithContext(ctx).Create(rel).Error; err != nil {
		return nil, err
	}
	return rel, nil
}

func (r *conceptRelationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ConceptRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.ConceptRelation
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *conceptRelationRepo) GetByPair(ctx context.Context, tx *gorm.DB, aID, bID uuid.UUID) (*types.ConceptRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	aID, bID = OrderPair(aID, bID)
	var result types.ConceptRelation
	if err := transaction.WithContext(ctx).
		Where("concept_a_id = ? AND concept_b_id = ?", aID, bID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *conceptRelationRepo) GetByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*types.ConceptRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ConceptRelation
	if err := transaction.WithContext(ctx).
		Where("concept_a_id = ? OR concept_b_id = ?", conceptID, conceptID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conceptRelationRepo) List(ctx context.Context, tx *gorm.DB, filter RelationListFilter) ([]*types.ConceptRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Model(&types.ConceptRelation{})
	if filter.ConceptID != nil {
		query = query.Where("concept_a_id = ? OR concept_b_id = ?", *filter.ConceptID, *filter.ConceptID)
	}
	if filter.RelationType != "" {
		query = query.Where("relation_type = ?", filter.RelationType)
	}
	if filter.MinStrength > 0 {
		query = query.Where("strength >= ?", filter.MinStrength)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	var results []*types.ConceptRelation
	if err := query.
		Order("strength DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conceptRelationRepo) UpdateStrength(ctx context.Context, tx *gorm.DB, id uuid.UUID, strength float64, docCount int, relationType string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	fields := map[string]interface{}{
		"strength":  strength,
		"doc_count": docCount,
	}
	if relationType != "" {
		fields["relation_type"] = relationType
	}
	return transaction.WithContext(ctx).
		Model(&types.ConceptRelation{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *conceptRelationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("relation_id = ?", id).
		Delete(&types.ConceptRelationSource{}).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.ConceptRelation{}).Error
}

func (r *conceptRelationRepo) DeleteByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	rels, err := r.GetByConceptID(ctx, transaction, conceptID)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := r.Delete(ctx, transaction, rel.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *conceptRelationRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(ctx).
		Model(&types.ConceptRelation{}).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *conceptRelationRepo) CreateSource(ctx context.Context, tx *gorm.DB, src *types.ConceptRelationSource) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Create(src).Error
}

func (r *conceptRelationRepo) SourcesByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.ConceptRelationSource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ConceptRelationSource
	if err := transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conceptRelationRepo) DeleteSourcesByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&types.ConceptRelationSource{}).Error
}

func (r *conceptRelationRepo) DeleteSourcesByRelationID(ctx context.Context, tx *gorm.DB, relationID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("relation_id = ?", relationID).
		Delete(&types.ConceptRelationSource{}).Error
}

// RedirectSources repoints per-document contribution rows from one edge to
// another during a merge, dropping rows whose document already contributed
// to the target edge.
func (r *conceptRelationRepo) RedirectSources(ctx context.Context, tx *gorm.DB, fromRelationID, toRelationID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var fromSources []*types.ConceptRelationSource
	if err := transaction.WithContext(ctx).
		Where("relation_id = ?", fromRelationID).
		Find(&fromSources).Error; err != nil {
		return err
	}
	if len(fromSources) == 0 {
		return nil
	}

	var toSources []*types.ConceptRelationSource
	if err := transaction.WithContext(ctx).
		Where("relation_id = ?", toRelationID).
		Find(&toSources).Error; err != nil {
		return err
	}
	existing := make(map[uuid.UUID]bool, len(toSources))
	for _, src := range toSources {
		existing[src.DocumentID] = true
	}

	for _, src := range fromSources {
		if existing[src.DocumentID] {
			continue
		}
		if err := transaction.WithContext(ctx).
			Model(&types.ConceptRelationSource{}).
			Where("relation_id = ? AND document_id = ?", fromRelationID, src.DocumentID).
			UpdateColumn("relation_id", toRelationID).Error; err != nil {
			return err
		}
	}

	return transaction.WithContext(ctx).
		Where("relation_id = ?", fromRelationID).
		Delete(&types.ConceptRelationSource{}).Error
}
