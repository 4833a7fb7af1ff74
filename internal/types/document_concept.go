package types

import (
	"github.com/google/uuid"
)

type DocumentConcept struct {
	DocumentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"document_id"`
	ConceptID  uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_document_concept_concept" json:"concept_id"`

	// Occurrences of the concept within this document.
	Frequency int `gorm:"column:frequency;not null;default:0" json:"frequency"`

	// Bounded context around the first occurrence.
	Snippet string `gorm:"column:snippet;type:text" json:"snippet,omitempty"`
}

func (DocumentConcept) TableName() string { return "document_concept" }
