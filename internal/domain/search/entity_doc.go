package search

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntityDoc is the searchable projection of one canonical entity.
type EntityDoc struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	EntityType string    `gorm:"column:entity_type;not null;index;index:idx_entity_doc,unique,priority:1" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;column:entity_id;not null;index:idx_entity_doc,unique,priority:2" json:"entity_id"`

	Title   string `gorm:"column:title;not null" json:"title"`
	DocText string `gorm:"column:doc_text;type:text;not null" json:"doc_text"`

	// Embedding is a JSON float array; nil until embeddings are generated.
	Embedding      datatypes.JSON `gorm:"column:embedding" json:"embedding,omitempty"`
	EmbeddingModel *string        `gorm:"column:embedding_model" json:"embedding_model,omitempty"`
	EmbeddedAt     *time.Time     `gorm:"column:embedded_at;index" json:"embedded_at,omitempty"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	RunID    *string        `gorm:"column:run_id" json:"run_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (EntityDoc) TableName() string { return "entity_doc" }

func (d *EntityDoc) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
