package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Categories assigned by the terminology table, plus the two open-ended
// buckets the extractor uses for terms outside the dictionary.
const (
	CategoryExtracted   = "extracted"
	CategoryStatistical = "statistical"
)

type Concept struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// Lowercase canonical form, unique across the store.
	Name        string `gorm:"column:name;not null;index:idx_concept_name,unique" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`
	Category    string `gorm:"column:category;not null;index:idx_concept_category" json:"category"`

	// Aggregate occurrence count across all documents.
	Frequency int64 `gorm:"column:frequency;not null;default:0" json:"frequency"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`

	Documents []*Document `gorm:"many2many:document_concept;" json:"documents,omitempty"`
}

func (Concept) TableName() string { return "concept" }

func (c *Concept) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
