package staging

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CheckpointInProgress = "in_progress"
	CheckpointCompleted  = "completed"
)

// IngestionCheckpoint records how far a run got through one sheet of one file.
type IngestionCheckpoint struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	RunID       string `gorm:"column:run_id;not null;index:idx_checkpoint_key,unique,priority:1" json:"run_id"`
	SourceFile  string `gorm:"column:source_file;not null;index:idx_checkpoint_key,unique,priority:2;index:idx_checkpoint_file_status,priority:1" json:"source_file"`
	SourceSheet string `gorm:"column:source_sheet;not null;default:'';index:idx_checkpoint_key,unique,priority:3" json:"source_sheet"`

	LastRow      int    `gorm:"column:last_row;not null;default:0" json:"last_row"`
	RowsIngested int    `gorm:"column:rows_ingested;not null;default:0" json:"rows_ingested"`
	Status       string `gorm:"column:status;not null;index:idx_checkpoint_file_status,priority:2" json:"status"`
	Error        string `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (IngestionCheckpoint) TableName() string { return "ingestion_checkpoint" }

func (c *IngestionCheckpoint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
