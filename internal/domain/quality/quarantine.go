package quality

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Source tables and error types written by the linking sweeps.
const (
	SourceDealInvestorFirm = "deal_investor_firm"
	SourceFundManagerLink  = "fund_manager_link"
	SourcePersonEmployment = "person_employment"

	ErrorUnresolvedInvestorFirm   = "unresolved_investor_firm"
	ErrorUnresolvedManagerFirm    = "unresolved_manager_firm"
	ErrorUnresolvedEmploymentFirm = "unresolved_employment_firm"
)

// QuarantineRecord holds a record whose required reference could not be resolved.
// RawData carries enough context to retry resolution without the original file.
type QuarantineRecord struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceTable    string `gorm:"column:source_table;not null;index:idx_quarantine_offender,unique,priority:1;index:idx_quarantine_source_error,priority:1" json:"source_table"`
	SourceRecordID string `gorm:"column:source_record_id;not null;index:idx_quarantine_offender,unique,priority:2" json:"source_record_id"`
	ErrorType      string `gorm:"column:error_type;not null;index:idx_quarantine_offender,unique,priority:3;index:idx_quarantine_source_error,priority:2" json:"error_type"`
	ErrorDetails   string `gorm:"column:error_details;type:text" json:"error_details,omitempty"`

	RawData datatypes.JSON `gorm:"column:raw_data;not null" json:"raw_data"`
	RunID   *string        `gorm:"column:run_id;index" json:"run_id,omitempty"`

	Resolved        bool       `gorm:"column:resolved;not null;default:false;index:idx_quarantine_unresolved,priority:1" json:"resolved"`
	ResolutionNotes *string    `gorm:"column:resolution_notes;type:text" json:"resolution_notes,omitempty"`
	ReprocessedAt   *time.Time `gorm:"column:reprocessed_at" json:"reprocessed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_quarantine_unresolved,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (QuarantineRecord) TableName() string { return "quarantine_record" }

func (q *QuarantineRecord) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
