package staging

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dataset kinds a raw sheet can hold.
const (
	DatasetFirm    = "firm"
	DatasetFund    = "fund"
	DatasetContact = "contact"
	DatasetDeal    = "deal"
	DatasetUnknown = "unknown"
)

// RawRecord is one spreadsheet row exactly as read, keyed by its header labels.
// Rows are never updated; a later run supersedes them with new rows.
type RawRecord struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	RunID           string `gorm:"column:run_id;not null;index;index:idx_raw_record_row,unique,priority:1" json:"run_id"`
	SourceFile      string `gorm:"column:source_file;not null;index;index:idx_raw_record_row,unique,priority:2" json:"source_file"`
	SourceSheet     string `gorm:"column:source_sheet;not null;default:'';index:idx_raw_record_row,unique,priority:3" json:"source_sheet"`
	SourceRowNumber int    `gorm:"column:source_row_number;not null;index:idx_raw_record_row,unique,priority:4" json:"source_row_number"`
	Dataset         string `gorm:"column:dataset;not null;index" json:"dataset"`

	RawData datatypes.JSON `gorm:"column:raw_data;not null" json:"raw_data"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (RawRecord) TableName() string { return "raw_record" }

func (r *RawRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
