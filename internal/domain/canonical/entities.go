package canonical

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSourceSystem tags rows whose origin system was not stated.
const DefaultSourceSystem = "preqin"

const (
	KindFirm    = "firm"
	KindFund    = "fund"
	KindPerson  = "person"
	KindCompany = "company"
	KindDeal    = "deal"
)

// Provenance points back at the normalized row that last contributed to an entity.
type Provenance struct {
	SourceFile      *string `gorm:"column:source_file" json:"source_file,omitempty"`
	SourceSheet     *string `gorm:"column:source_sheet" json:"source_sheet,omitempty"`
	SourceRowNumber *int    `gorm:"column:source_row_number" json:"source_row_number,omitempty"`
	RunID           *string `gorm:"column:run_id" json:"run_id,omitempty"`
}

type Firm struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceSystem string `gorm:"column:source_system;not null;index:idx_firm_source,unique,priority:1" json:"source_system"`
	SourceID     string `gorm:"column:source_id;not null;index:idx_firm_source,unique,priority:2" json:"source_id"`

	Name            string  `gorm:"column:name;not null;index" json:"name"`
	NameNormalized  string  `gorm:"column:name_normalized;index" json:"name_normalized"`
	FirmType        *string `gorm:"column:firm_type;index" json:"firm_type,omitempty"`
	InstitutionType *string `gorm:"column:institution_type;index" json:"institution_type,omitempty"`

	HeadquartersCity    *string `gorm:"column:headquarters_city" json:"headquarters_city,omitempty"`
	HeadquartersState   *string `gorm:"column:headquarters_state" json:"headquarters_state,omitempty"`
	HeadquartersCountry *string `gorm:"column:headquarters_country;index" json:"headquarters_country,omitempty"`
	HeadquartersRegion  *string `gorm:"column:headquarters_region" json:"headquarters_region,omitempty"`

	AumUSD       *float64 `gorm:"column:aum_usd;index" json:"aum_usd,omitempty"`
	AumRaw       *string  `gorm:"column:aum_raw" json:"aum_raw,omitempty"`
	DryPowderUSD *float64 `gorm:"column:dry_powder_usd" json:"dry_powder_usd,omitempty"`

	Website     *string `gorm:"column:website" json:"website,omitempty"`
	Description *string `gorm:"column:description;type:text" json:"description,omitempty"`
	YearFounded *int    `gorm:"column:year_founded" json:"year_founded,omitempty"`
	IsListed    *bool   `gorm:"column:is_listed" json:"is_listed,omitempty"`
	Ticker      *string `gorm:"column:ticker" json:"ticker,omitempty"`

	ConfidenceScore float64 `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Firm) TableName() string { return "firm" }

type Fund struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceSystem string `gorm:"column:source_system;not null;index:idx_fund_source,unique,priority:1" json:"source_system"`
	SourceID     string `gorm:"column:source_id;not null;index:idx_fund_source,unique,priority:2" json:"source_id"`

	Name           string `gorm:"column:name;not null;index" json:"name"`
	NameNormalized string `gorm:"column:name_normalized;index" json:"name_normalized"`

	// ManagerFirmSourceID and ManagerFirmName are the manager reference as sourced;
	// ManagingFirmID is set once linking resolves it.
	ManagerFirmSourceID *string    `gorm:"column:manager_firm_source_id;index" json:"manager_firm_source_id,omitempty"`
	ManagerFirmName     *string    `gorm:"column:manager_firm_name" json:"manager_firm_name,omitempty"`
	ManagingFirmID      *uuid.UUID `gorm:"type:uuid;column:managing_firm_id;index" json:"managing_firm_id,omitempty"`

	VintageYear   *int     `gorm:"column:vintage_year;index" json:"vintage_year,omitempty"`
	FundSizeUSD   *float64 `gorm:"column:fund_size_usd;index" json:"fund_size_usd,omitempty"`
	FundSizeRaw   *string  `gorm:"column:fund_size_raw" json:"fund_size_raw,omitempty"`
	TargetSizeUSD *float64 `gorm:"column:target_size_usd" json:"target_size_usd,omitempty"`
	Currency      *string  `gorm:"column:currency" json:"currency,omitempty"`

	Strategy        *string `gorm:"column:strategy;index" json:"strategy,omitempty"`
	SubStrategy     *string `gorm:"column:sub_strategy" json:"sub_strategy,omitempty"`
	AssetClass      *string `gorm:"column:asset_class" json:"asset_class,omitempty"`
	Status          *string `gorm:"column:status;index" json:"status,omitempty"`
	DomicileCountry *string `gorm:"column:domicile_country" json:"domicile_country,omitempty"`
	GeographyFocus  *string `gorm:"column:geography_focus" json:"geography_focus,omitempty"`
	SectorFocus     *string `gorm:"column:sector_focus;type:text" json:"sector_focus,omitempty"`

	FirstCloseDate *time.Time `gorm:"column:first_close_date;type:date" json:"first_close_date,omitempty"`
	FinalCloseDate *time.Time `gorm:"column:final_close_date;type:date" json:"final_close_date,omitempty"`

	IRR  *float64 `gorm:"column:irr" json:"irr,omitempty"`
	TVPI *float64 `gorm:"column:tvpi" json:"tvpi,omitempty"`
	DPI  *float64 `gorm:"column:dpi" json:"dpi,omitempty"`

	ConfidenceScore float64 `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Fund) TableName() string { return "fund" }

type Person struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceSystem string `gorm:"column:source_system;not null;index:idx_person_source,unique,priority:1" json:"source_system"`
	SourceID     string `gorm:"column:source_id;not null;index:idx_person_source,unique,priority:2" json:"source_id"`

	FullName       string  `gorm:"column:full_name;not null;index" json:"full_name"`
	NameNormalized string  `gorm:"column:name_normalized;index" json:"name_normalized"`
	FirstName      *string `gorm:"column:first_name" json:"first_name,omitempty"`
	LastName       *string `gorm:"column:last_name" json:"last_name,omitempty"`

	Email       *string `gorm:"column:email;index" json:"email,omitempty"`
	Phone       *string `gorm:"column:phone" json:"phone,omitempty"`
	LinkedinURL *string `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`

	Title          *string `gorm:"column:title" json:"title,omitempty"`
	SeniorityLevel *string `gorm:"column:seniority_level" json:"seniority_level,omitempty"`

	LocationCity    *string `gorm:"column:location_city" json:"location_city,omitempty"`
	LocationCountry *string `gorm:"column:location_country" json:"location_country,omitempty"`

	// Employer reference as sourced, consumed by the employment linking pass.
	FirmSourceID *string `gorm:"column:firm_source_id;index" json:"firm_source_id,omitempty"`
	FirmName     *string `gorm:"column:firm_name" json:"firm_name,omitempty"`

	ConfidenceScore float64 `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Person) TableName() string { return "person" }

type Company struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceSystem string `gorm:"column:source_system;not null;index:idx_company_source,unique,priority:1" json:"source_system"`
	SourceID     string `gorm:"column:source_id;not null;index:idx_company_source,unique,priority:2" json:"source_id"`

	Name           string  `gorm:"column:name;not null;index" json:"name"`
	NameNormalized string  `gorm:"column:name_normalized;index" json:"name_normalized"`
	Website        *string `gorm:"column:website" json:"website,omitempty"`
	Description    *string `gorm:"column:description;type:text" json:"description,omitempty"`

	City    *string `gorm:"column:city" json:"city,omitempty"`
	Country *string `gorm:"column:country;index" json:"country,omitempty"`
	Region  *string `gorm:"column:region;index" json:"region,omitempty"`

	PrimaryIndustry   *string `gorm:"column:primary_industry;index" json:"primary_industry,omitempty"`
	SecondaryIndustry *string `gorm:"column:secondary_industry" json:"secondary_industry,omitempty"`
	Status            *string `gorm:"column:status" json:"status,omitempty"`

	ConfidenceScore float64 `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "company" }

type Deal struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceSystem string `gorm:"column:source_system;not null;index:idx_deal_source,unique,priority:1" json:"source_system"`
	SourceID     string `gorm:"column:source_id;not null;index:idx_deal_source,unique,priority:2" json:"source_id"`

	TargetCompanyID       *uuid.UUID `gorm:"type:uuid;column:target_company_id;index" json:"target_company_id,omitempty"`
	TargetCompanyName     *string    `gorm:"column:target_company_name" json:"target_company_name,omitempty"`
	TargetCompanySourceID *string    `gorm:"column:target_company_source_id" json:"target_company_source_id,omitempty"`

	DealType     *string    `gorm:"column:deal_type;index" json:"deal_type,omitempty"`
	DealDate     *time.Time `gorm:"column:deal_date;type:date;index" json:"deal_date,omitempty"`
	DealValueUSD *float64   `gorm:"column:deal_value_usd;index" json:"deal_value_usd,omitempty"`
	DealValueRaw *string    `gorm:"column:deal_value_raw" json:"deal_value_raw,omitempty"`
	Stage        *string    `gorm:"column:stage;index" json:"stage,omitempty"`
	DealStatus   *string    `gorm:"column:deal_status" json:"deal_status,omitempty"`

	PrimaryIndustry   *string `gorm:"column:primary_industry;index" json:"primary_industry,omitempty"`
	SecondaryIndustry *string `gorm:"column:secondary_industry" json:"secondary_industry,omitempty"`
	Country           *string `gorm:"column:country;index" json:"country,omitempty"`
	Region            *string `gorm:"column:region" json:"region,omitempty"`

	// Raw investor lists, split by the investor linking pass.
	InvestorNamesRaw *string `gorm:"column:investor_names_raw;type:text" json:"investor_names_raw,omitempty"`
	FundNamesRaw     *string `gorm:"column:fund_names_raw;type:text" json:"fund_names_raw,omitempty"`

	ConfidenceScore float64 `gorm:"column:confidence_score;not null;default:1" json:"confidence_score"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Deal) TableName() string { return "deal" }

func (e *Firm) BeforeCreate(tx *gorm.DB) error    { return prepare(&e.ID, &e.SourceSystem, &e.ConfidenceScore) }
func (e *Fund) BeforeCreate(tx *gorm.DB) error    { return prepare(&e.ID, &e.SourceSystem, &e.ConfidenceScore) }
func (e *Person) BeforeCreate(tx *gorm.DB) error  { return prepare(&e.ID, &e.SourceSystem, &e.ConfidenceScore) }
func (e *Company) BeforeCreate(tx *gorm.DB) error { return prepare(&e.ID, &e.SourceSystem, &e.ConfidenceScore) }
func (e *Deal) BeforeCreate(tx *gorm.DB) error    { return prepare(&e.ID, &e.SourceSystem, &e.ConfidenceScore) }

func prepare(id *uuid.UUID, sourceSystem *string, confidence *float64) error {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if *sourceSystem == "" {
		*sourceSystem = DefaultSourceSystem
	}
	if *confidence == 0 {
		*confidence = 1
	}
	return nil
}
