package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Document struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	OriginalFilename string `gorm:"column:original_filename;not null" json:"original_filename"`
	StoredFilename   string `gorm:"column:stored_filename;not null;index:idx_document_stored,unique" json:"stored_filename"`
	FileType         string `gorm:"column:file_type;not null;index:idx_document_file_type" json:"file_type"`
	FileSizeBytes    int64  `gorm:"column:file_size_bytes;not null" json:"file_size_bytes"`

	Title     string `gorm:"column:title" json:"title"`
	Content   string `gorm:"column:content;type:text" json:"-"`
	Summary   string `gorm:"column:summary;type:text" json:"summary"`
	WordCount int    `gorm:"column:word_count;not null;default:0" json:"word_count"`
	PageCount int    `gorm:"column:page_count;not null;default:0" json:"page_count"`

	ProcessingStatus string `gorm:"column:processing_status;not null;default:'pending';index:idx_document_status" json:"processing_status"`
	ErrorMessage     string `gorm:"column:error_message" json:"error_message,omitempty"`

	// Author, creation date, language and anything else the extractor reports.
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	ThumbnailKey string `gorm:"column:thumbnail_key" json:"thumbnail_key,omitempty"`

	UploadedAt  time.Time  `gorm:"column:uploaded_at;not null;autoCreateTime" json:"uploaded_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`

	Concepts []*Concept `gorm:"many2many:document_concept;" json:"concepts,omitempty"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
