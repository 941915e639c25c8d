package canonical

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FirmAlias struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	CanonicalFirmID     uuid.UUID `gorm:"type:uuid;column:canonical_firm_id;not null;index;index:idx_firm_alias,unique,priority:2" json:"canonical_firm_id"`
	AliasText           string    `gorm:"column:alias_text;not null" json:"alias_text"`
	AliasTextNormalized string    `gorm:"column:alias_text_normalized;not null;index;index:idx_firm_alias,unique,priority:1" json:"alias_text_normalized"`

	MatchMethod     string  `gorm:"column:match_method;not null" json:"match_method"`
	ConfidenceScore float64 `gorm:"column:confidence_score;not null" json:"confidence_score"`
	SourceFile      *string `gorm:"column:source_file" json:"source_file,omitempty"`
	Notes           *string `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedBy       string  `gorm:"column:created_by;not null;default:'system'" json:"created_by"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FirmAlias) TableName() string { return "firm_alias" }

type FundAlias struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	CanonicalFundID     uuid.UUID `gorm:"type:uuid;column:canonical_fund_id;not null;index;index:idx_fund_alias,unique,priority:2" json:"canonical_fund_id"`
	AliasText           string    `gorm:"column:alias_text;not null" json:"alias_text"`
	AliasTextNormalized string    `gorm:"column:alias_text_normalized;not null;index;index:idx_fund_alias,unique,priority:1" json:"alias_text_normalized"`

	MatchMethod     string  `gorm:"column:match_method;not null" json:"match_method"`
	ConfidenceScore float64 `gorm:"column:confidence_score;not null" json:"confidence_score"`
	SourceFile      *string `gorm:"column:source_file" json:"source_file,omitempty"`
	Notes           *string `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedBy       string  `gorm:"column:created_by;not null;default:'system'" json:"created_by"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FundAlias) TableName() string { return "fund_alias" }

func (a *FirmAlias) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedBy == "" {
		a.CreatedBy = "system"
	}
	return ensureID(&a.ID)
}

func (a *FundAlias) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedBy == "" {
		a.CreatedBy = "system"
	}
	return ensureID(&a.ID)
}
