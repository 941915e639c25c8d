package graph

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// EdgeStats summarises the co-investment table.
type EdgeStats struct {
	TotalEdges           int64   `json:"total_edges"`
	TotalDealConnections int64   `json:"total_deal_connections"`
	AvgDealsPerEdge      float64 `json:"avg_deals_per_edge"`
	MaxDealsPerEdge      int64   `json:"max_deals_per_edge"`
}

type CoInvestmentEdgeRepo interface {
	Truncate(dbc dbctx.Context) error
	Create(dbc dbctx.Context, rows []*types.CoInvestmentEdge) (int64, error)
	// Touching returns edges with at least minDeals where either side is in firmIDs.
	Touching(dbc dbctx.Context, firmIDs []uuid.UUID, minDeals int) ([]*types.CoInvestmentEdge, error)
	Get(dbc dbctx.Context, a, b uuid.UUID) (*types.CoInvestmentEdge, error)
	Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.CoInvestmentEdge, error)
	Stats(dbc dbctx.Context) (EdgeStats, error)
}

type coInvestmentEdgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCoInvestmentEdgeRepo(db *gorm.DB, baseLog *logger.Logger) CoInvestmentEdgeRepo {
	return &coInvestmentEdgeRepo{
		db:  db,
		log: baseLog.With("repo", "CoInvestmentEdgeRepo"),
	}
}

func (r *coInvestmentEdgeRepo) Truncate(dbc dbctx.Context) error {
	return dbc.Or(r.db).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&types.CoInvestmentEdge{}).Error
}

func (r *coInvestmentEdgeRepo) Create(dbc dbctx.Context, rows []*types.CoInvestmentEdge) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	t := dbc.Or(r.db)
	res := t.CreateInBatches(rows, db.BatchSize(t))
	return res.RowsAffected, res.Error
}

func (r *coInvestmentEdgeRepo) Touching(dbc dbctx.Context, firmIDs []uuid.UUID, minDeals int) ([]*types.CoInvestmentEdge, error) {
	var out []*types.CoInvestmentEdge
	if len(firmIDs) == 0 {
		return out, nil
	}
	if minDeals < 1 {
		minDeals = 1
	}
	const chunk = 400
	for start := 0; start < len(firmIDs); start += chunk {
		end := start + chunk
		if end > len(firmIDs) {
			end = len(firmIDs)
		}
		part := firmIDs[start:end]
		var rows []*types.CoInvestmentEdge
		if err := dbc.Or(r.db).
			Where("deal_count >= ?", minDeals).
			Where("(firm_a_id IN ? OR firm_b_id IN ?)", part, part).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return dedupe(out), nil
}

func dedupe(rows []*types.CoInvestmentEdge) []*types.CoInvestmentEdge {
	seen := make(map[uuid.UUID]bool, len(rows))
	out := rows[:0]
	for _, e := range rows {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

func (r *coInvestmentEdgeRepo) Get(dbc dbctx.Context, a, b uuid.UUID) (*types.CoInvestmentEdge, error) {
	a, b = types.OrderedPair(a, b)
	var out []*types.CoInvestmentEdge
	if err := dbc.Or(r.db).Where("firm_a_id = ? AND firm_b_id = ?", a, b).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *coInvestmentEdgeRepo) Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.CoInvestmentEdge, error) {
	if limit <= 0 {
		limit = 1000
	}
	var out []*types.CoInvestmentEdge
	if err := dbc.Or(r.db).Where("id > ?", after).Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *coInvestmentEdgeRepo) Stats(dbc dbctx.Context) (EdgeStats, error) {
	var row struct {
		TotalEdges           int64
		TotalDealConnections *int64
		MaxDealsPerEdge      *int64
	}
	if err := dbc.Or(r.db).
		Model(&types.CoInvestmentEdge{}).
		Select("COUNT(*) AS total_edges, SUM(deal_count) AS total_deal_connections, MAX(deal_count) AS max_deals_per_edge").
		Scan(&row).Error; err != nil {
		return EdgeStats{}, err
	}
	out := EdgeStats{TotalEdges: row.TotalEdges}
	if row.TotalDealConnections != nil {
		out.TotalDealConnections = *row.TotalDealConnections
	}
	if row.MaxDealsPerEdge != nil {
		out.MaxDealsPerEdge = *row.MaxDealsPerEdge
	}
	if out.TotalEdges > 0 {
		out.AvgDealsPerEdge = float64(out.TotalDealConnections) / float64(out.TotalEdges)
	}
	return out, nil
}
