package graph

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CoInvestmentEdge aggregates every deal two firms invested in together.
// FirmAID always sorts before FirmBID so an unordered pair has exactly one row.
// The table is derived; it is truncated and rebuilt, never edited.
type CoInvestmentEdge struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	FirmAID uuid.UUID `gorm:"type:uuid;column:firm_a_id;not null;index;index:idx_co_investment_pair,unique,priority:1" json:"firm_a_id"`
	FirmBID uuid.UUID `gorm:"type:uuid;column:firm_b_id;not null;index;index:idx_co_investment_pair,unique,priority:2" json:"firm_b_id"`

	DealCount     int            `gorm:"column:deal_count;not null;default:1;index" json:"deal_count"`
	TotalValueUSD *float64       `gorm:"column:total_value_usd" json:"total_value_usd,omitempty"`
	FirstDealDate *time.Time     `gorm:"column:first_deal_date;type:date" json:"first_deal_date,omitempty"`
	LastDealDate  *time.Time     `gorm:"column:last_deal_date;type:date" json:"last_deal_date,omitempty"`
	TopIndustries datatypes.JSON `gorm:"column:top_industries" json:"top_industries,omitempty"`
	RunID         string         `gorm:"column:run_id;index" json:"run_id"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CoInvestmentEdge) TableName() string { return "co_investment_edge" }

func (e *CoInvestmentEdge) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if !FirmLess(e.FirmAID, e.FirmBID) {
		return ErrEdgeOrdering
	}
	return nil
}

// FirmLess orders firm ids the way PostgreSQL orders uuid values.
func FirmLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// OrderedPair returns (a, b) sorted so that the first id is smaller.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if FirmLess(b, a) {
		return b, a
	}
	return a, b
}
