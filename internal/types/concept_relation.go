package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RelationRelated      = "related"
	RelationSynonym      = "synonym"
	RelationHierarchical = "hierarchical"
)

// ConceptRelation is an undirected edge stored once, with ConceptAID < ConceptBID
// by string order so a pair can never appear twice.
type ConceptRelation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ConceptAID uuid.UUID `gorm:"type:uuid;not null;index:idx_concept_relation_pair,unique" json:"concept_a_id"`
	ConceptBID uuid.UUID `gorm:"type:uuid;not null;index:idx_concept_relation_pair,unique" json:"concept_b_id"`

	RelationType string  `gorm:"column:relation_type;not null;default:'related'" json:"relation_type"`
	Strength     float64 `gorm:"column:strength;not null;default:0" json:"strength"`

	// Number of documents averaged into Strength. Kept explicitly so new
	// contributions fold in without replaying history.
	DocCount int `gorm:"column:doc_count;not null;default:0" json:"doc_count"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ConceptRelation) TableName() string { return "concept_relation" }

func (r *ConceptRelation) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ConceptRelationSource records one document's contribution to one edge, so
// re-analysis can retract it exactly before applying a fresh pass.
type ConceptRelationSource struct {
	RelationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"relation_id"`
	DocumentID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_relation_source_document" json:"document_id"`

	Contribution float64 `gorm:"column:contribution;not null;default:0" json:"contribution"`
}

func (ConceptRelationSource) TableName() string { return "concept_relation_source" }
