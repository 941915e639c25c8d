package staging

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provenance is embedded by every normalized row.
type Provenance struct {
	SourceFile      string `gorm:"column:source_file;not null" json:"source_file"`
	SourceSheet     string `gorm:"column:source_sheet" json:"source_sheet"`
	SourceRowNumber int    `gorm:"column:source_row_number;not null" json:"source_row_number"`
	RunID           string `gorm:"column:run_id;index" json:"run_id"`
}

type NormalizedFirm struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceFirmID       string  `gorm:"column:source_firm_id;not null;index" json:"source_firm_id"`
	SourceType         string  `gorm:"column:source_type;not null" json:"source_type"`
	FirmName           string  `gorm:"column:firm_name;not null" json:"firm_name"`
	FirmNameNormalized string  `gorm:"column:firm_name_normalized;index" json:"firm_name_normalized"`
	FirmType           *string `gorm:"column:firm_type" json:"firm_type,omitempty"`
	InstitutionType    *string `gorm:"column:institution_type" json:"institution_type,omitempty"`
	City               *string `gorm:"column:headquarters_city" json:"headquarters_city,omitempty"`
	State              *string `gorm:"column:headquarters_state" json:"headquarters_state,omitempty"`
	Country            *string `gorm:"column:headquarters_country" json:"headquarters_country,omitempty"`
	Region             *string `gorm:"column:headquarters_region" json:"headquarters_region,omitempty"`

	AumUSD       *float64 `gorm:"column:aum_usd" json:"aum_usd,omitempty"`
	AumRaw       *string  `gorm:"column:aum_raw" json:"aum_raw,omitempty"`
	DryPowderUSD *float64 `gorm:"column:dry_powder_usd" json:"dry_powder_usd,omitempty"`

	Website     *string `gorm:"column:website" json:"website,omitempty"`
	Description *string `gorm:"column:description;type:text" json:"description,omitempty"`
	YearFounded *int    `gorm:"column:year_founded" json:"year_founded,omitempty"`
	IsListed    *bool   `gorm:"column:is_listed" json:"is_listed,omitempty"`
	Ticker      *string `gorm:"column:ticker" json:"ticker,omitempty"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (NormalizedFirm) TableName() string { return "normalized_firm" }

type NormalizedFund struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceFundID       string  `gorm:"column:source_fund_id;not null;index" json:"source_fund_id"`
	FundName           string  `gorm:"column:fund_name;not null" json:"fund_name"`
	FundNameNormalized string  `gorm:"column:fund_name_normalized;index" json:"fund_name_normalized"`
	VintageYear        *int    `gorm:"column:vintage_year" json:"vintage_year,omitempty"`
	ManagerFirmName    *string `gorm:"column:manager_firm_name" json:"manager_firm_name,omitempty"`
	ManagerFirmID      *string `gorm:"column:manager_firm_id" json:"manager_firm_id,omitempty"`

	FundSizeUSD   *float64 `gorm:"column:fund_size_usd" json:"fund_size_usd,omitempty"`
	FundSizeRaw   *string  `gorm:"column:fund_size_raw" json:"fund_size_raw,omitempty"`
	TargetSizeUSD *float64 `gorm:"column:target_size_usd" json:"target_size_usd,omitempty"`
	Currency      *string  `gorm:"column:currency" json:"currency,omitempty"`

	Strategy        *string `gorm:"column:strategy" json:"strategy,omitempty"`
	SubStrategy     *string `gorm:"column:sub_strategy" json:"sub_strategy,omitempty"`
	AssetClass      *string `gorm:"column:asset_class" json:"asset_class,omitempty"`
	Status          *string `gorm:"column:status" json:"status,omitempty"`
	GeographyFocus  *string `gorm:"column:geography_focus" json:"geography_focus,omitempty"`
	SectorFocus     *string `gorm:"column:sector_focus" json:"sector_focus,omitempty"`
	DomicileCountry *string `gorm:"column:domicile_country" json:"domicile_country,omitempty"`

	IRR  *float64 `gorm:"column:irr" json:"irr,omitempty"`
	TVPI *float64 `gorm:"column:tvpi" json:"tvpi,omitempty"`
	DPI  *float64 `gorm:"column:dpi" json:"dpi,omitempty"`

	FirstCloseDate *time.Time `gorm:"column:first_close_date;type:date" json:"first_close_date,omitempty"`
	FinalCloseDate *time.Time `gorm:"column:final_close_date;type:date" json:"final_close_date,omitempty"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (NormalizedFund) TableName() string { return "normalized_fund" }

type NormalizedContact struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceContactID string  `gorm:"column:source_contact_id;not null;index" json:"source_contact_id"`
	SourceFirmID    *string `gorm:"column:source_firm_id;index" json:"source_firm_id,omitempty"`
	SourceType      string  `gorm:"column:source_type" json:"source_type"`
	FullName        string  `gorm:"column:full_name;not null" json:"full_name"`
	FirstName       *string `gorm:"column:first_name" json:"first_name,omitempty"`
	LastName        *string `gorm:"column:last_name" json:"last_name,omitempty"`
	Title           *string `gorm:"column:title" json:"title,omitempty"`
	SeniorityLevel  *string `gorm:"column:seniority_level" json:"seniority_level,omitempty"`
	Email           *string `gorm:"column:email" json:"email,omitempty"`
	Phone           *string `gorm:"column:phone" json:"phone,omitempty"`
	LinkedinURL     *string `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`
	City            *string `gorm:"column:location_city" json:"location_city,omitempty"`
	Country         *string `gorm:"column:location_country" json:"location_country,omitempty"`
	FirmName        *string `gorm:"column:firm_name" json:"firm_name,omitempty"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (NormalizedContact) TableName() string { return "normalized_contact" }

type NormalizedDeal struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceDealID      string     `gorm:"column:source_deal_id;not null;index" json:"source_deal_id"`
	DealType          *string    `gorm:"column:deal_type" json:"deal_type,omitempty"`
	DealDate          *time.Time `gorm:"column:deal_date;type:date" json:"deal_date,omitempty"`
	DealValueUSD      *float64   `gorm:"column:deal_value_usd" json:"deal_value_usd,omitempty"`
	DealValueRaw      *string    `gorm:"column:deal_value_raw" json:"deal_value_raw,omitempty"`
	Stage             *string    `gorm:"column:stage" json:"stage,omitempty"`
	DealStatus        *string    `gorm:"column:deal_status" json:"deal_status,omitempty"`
	TargetCompanyName *string    `gorm:"column:target_company_name" json:"target_company_name,omitempty"`
	TargetCompanyID   *string    `gorm:"column:target_company_id" json:"target_company_id,omitempty"`
	Country           *string    `gorm:"column:country" json:"country,omitempty"`
	Region            *string    `gorm:"column:region" json:"region,omitempty"`
	PrimaryIndustry   *string    `gorm:"column:primary_industry" json:"primary_industry,omitempty"`
	SecondaryIndustry *string    `gorm:"column:secondary_industry" json:"secondary_industry,omitempty"`
	InvestorNamesRaw  *string    `gorm:"column:investor_names_raw;type:text" json:"investor_names_raw,omitempty"`
	FundNamesRaw      *string    `gorm:"column:fund_names_raw;type:text" json:"fund_names_raw,omitempty"`

	Provenance
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (NormalizedDeal) TableName() string { return "normalized_deal" }

func (r *NormalizedFirm) BeforeCreate(tx *gorm.DB) error    { return ensureID(&r.ID) }
func (r *NormalizedFund) BeforeCreate(tx *gorm.DB) error    { return ensureID(&r.ID) }
func (r *NormalizedContact) BeforeCreate(tx *gorm.DB) error { return ensureID(&r.ID) }
func (r *NormalizedDeal) BeforeCreate(tx *gorm.DB) error    { return ensureID(&r.ID) }

func ensureID(id *uuid.UUID) error {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	return nil
}
