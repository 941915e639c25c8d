package canonical

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resolution methods recorded on relationship rows and aliases.
const (
	ResolutionID            = "id"
	ResolutionExact         = "exact"
	ResolutionAlias         = "alias"
	ResolutionFuzzy         = "fuzzy"
	ResolutionManual        = "manual"
	ResolutionUnresolved    = "unresolved"
	ResolutionProbabilistic = "probabilistic"
)

type FirmManagesFund struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	FirmID uuid.UUID `gorm:"type:uuid;column:firm_id;not null;index;index:idx_firm_fund,unique,priority:1" json:"firm_id"`
	FundID uuid.UUID `gorm:"type:uuid;column:fund_id;not null;index;index:idx_firm_fund,unique,priority:2" json:"fund_id"`

	Role             string  `gorm:"column:role;not null;default:'Manager'" json:"role"`
	ConfidenceScore  float64 `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`
	ResolutionMethod *string `gorm:"column:resolution_method" json:"resolution_method,omitempty"`
	SourceFile       *string `gorm:"column:source_file" json:"source_file,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FirmManagesFund) TableName() string { return "firm_manages_fund" }

type PersonEmployment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	PersonID uuid.UUID `gorm:"type:uuid;column:person_id;not null;index;index:idx_person_firm_title,unique,priority:1" json:"person_id"`
	FirmID   uuid.UUID `gorm:"type:uuid;column:firm_id;not null;index;index:idx_person_firm_title,unique,priority:2" json:"firm_id"`
	Title    string    `gorm:"column:title;not null;default:'';index:idx_person_firm_title,unique,priority:3" json:"title"`

	Department       *string    `gorm:"column:department" json:"department,omitempty"`
	IsCurrent        bool       `gorm:"column:is_current;not null;default:true" json:"is_current"`
	StartDate        *time.Time `gorm:"column:start_date;type:date" json:"start_date,omitempty"`
	EndDate          *time.Time `gorm:"column:end_date;type:date" json:"end_date,omitempty"`
	ConfidenceScore  float64    `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`
	ResolutionMethod *string    `gorm:"column:resolution_method" json:"resolution_method,omitempty"`
	SourceFile       *string    `gorm:"column:source_file" json:"source_file,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PersonEmployment) TableName() string { return "person_employment" }

// DealInvestorFirm keeps the raw investor text even when no firm was resolved,
// so the quarantine sweep and later replays can see what was searched.
type DealInvestorFirm struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DealID              uuid.UUID  `gorm:"type:uuid;column:deal_id;not null;index;index:idx_deal_investor_firm_raw,unique,priority:1" json:"deal_id"`
	InvestorFirmNameRaw string     `gorm:"column:investor_firm_name_raw;not null;index:idx_deal_investor_firm_raw,unique,priority:2" json:"investor_firm_name_raw"`
	InvestorFirmID      *uuid.UUID `gorm:"type:uuid;column:investor_firm_id;index" json:"investor_firm_id,omitempty"`

	InvestorType        *string  `gorm:"column:investor_type" json:"investor_type,omitempty"`
	RoleInDeal          *string  `gorm:"column:role_in_deal" json:"role_in_deal,omitempty"`
	InvestmentAmountUSD *float64 `gorm:"column:investment_amount_usd" json:"investment_amount_usd,omitempty"`

	ResolutionMethod string  `gorm:"column:resolution_method;not null;index" json:"resolution_method"`
	ConfidenceScore  float64 `gorm:"column:confidence_score;not null;default:0" json:"confidence_score"`
	SourceFile       *string `gorm:"column:source_file" json:"source_file,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DealInvestorFirm) TableName() string { return "deal_investor_firm" }

type DealInvestorFund struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DealID              uuid.UUID  `gorm:"type:uuid;column:deal_id;not null;index;index:idx_deal_investor_fund_raw,unique,priority:1" json:"deal_id"`
	InvestorFundNameRaw string     `gorm:"column:investor_fund_name_raw;not null;index:idx_deal_investor_fund_raw,unique,priority:2" json:"investor_fund_name_raw"`
	InvestorFundID      *uuid.UUID `gorm:"type:uuid;column:investor_fund_id;index" json:"investor_fund_id,omitempty"`

	RoleInDeal          *string  `gorm:"column:role_in_deal" json:"role_in_deal,omitempty"`
	InvestmentAmountUSD *float64 `gorm:"column:investment_amount_usd" json:"investment_amount_usd,omitempty"`

	ResolutionMethod string  `gorm:"column:resolution_method;not null" json:"resolution_method"`
	ConfidenceScore  float64 `gorm:"column:confidence_score;not null;default:0" json:"confidence_score"`
	SourceFile       *string `gorm:"column:source_file" json:"source_file,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DealInvestorFund) TableName() string { return "deal_investor_fund" }

type DealTargetCompany struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DealID    uuid.UUID `gorm:"type:uuid;column:deal_id;not null;index;index:idx_deal_company,unique,priority:1" json:"deal_id"`
	CompanyID uuid.UUID `gorm:"type:uuid;column:company_id;not null;index;index:idx_deal_company,unique,priority:2" json:"company_id"`

	ConfidenceScore  float64 `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`
	ResolutionMethod *string `gorm:"column:resolution_method" json:"resolution_method,omitempty"`
	SourceFile       *string `gorm:"column:source_file" json:"source_file,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DealTargetCompany) TableName() string { return "deal_target_company" }

func (r *FirmManagesFund) BeforeCreate(tx *gorm.DB) error   { return ensureID(&r.ID) }
func (r *PersonEmployment) BeforeCreate(tx *gorm.DB) error  { return ensureID(&r.ID) }
func (r *DealInvestorFirm) BeforeCreate(tx *gorm.DB) error  { return ensureID(&r.ID) }
func (r *DealInvestorFund) BeforeCreate(tx *gorm.DB) error  { return ensureID(&r.ID) }
func (r *DealTargetCompany) BeforeCreate(tx *gorm.DB) error { return ensureID(&r.ID) }

func ensureID(id *uuid.UUID) error {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	return nil
}
