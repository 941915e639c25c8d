package coinvest

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/modules/coinvest/steps"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/dealgraph-backend/internal/platform/rediscache"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Link    repos.LinkRepo
	Edge    repos.CoInvestmentEdgeRepo
	Firm    repos.FirmRepo
	Deal    repos.DealRepo
	Company repos.CompanyRepo

	Cache rediscache.Cache
	Neo4j *neo4jdb.Client

	MaxInvestorsPerDeal int
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	RebuildInput      = steps.RebuildInput
	RebuildOutput     = steps.RebuildOutput
	SkippedDeal       = steps.SkippedDeal
	CoInvestorsInput  = steps.CoInvestorsInput
	CoInvestorSummary = steps.CoInvestorSummary
	NetworkInput      = steps.NetworkInput
	NetworkOutput     = steps.NetworkOutput
	HopFirm           = steps.HopFirm
	DrilldownInput    = steps.DrilldownInput
	DealSummary       = steps.DealSummary
)

func (u Usecases) RebuildEdges(ctx context.Context, in RebuildInput) (RebuildOutput, error) {
	if in.MaxInvestorsPerDeal <= 0 {
		in.MaxInvestorsPerDeal = u.deps.MaxInvestorsPerDeal
	}
	return steps.RebuildEdges(ctx, steps.RebuildDeps{
		DB:    u.deps.DB,
		Log:   u.deps.Log,
		Link:  u.deps.Link,
		Edge:  u.deps.Edge,
		Firm:  u.deps.Firm,
		Cache: u.deps.Cache,
		Neo4j: u.deps.Neo4j,
	}, in)
}

func (u Usecases) network() steps.NetworkDeps {
	return steps.NetworkDeps{
		Log:     u.deps.Log,
		Edge:    u.deps.Edge,
		Firm:    u.deps.Firm,
		Deal:    u.deps.Deal,
		Company: u.deps.Company,
		Cache:   u.deps.Cache,
	}
}

func (u Usecases) CoInvestors(ctx context.Context, in CoInvestorsInput) ([]CoInvestorSummary, error) {
	return steps.CoInvestors(ctx, u.network(), in)
}

func (u Usecases) NetworkHops(ctx context.Context, in NetworkInput) (NetworkOutput, error) {
	return steps.NetworkHops(ctx, u.network(), in)
}

func (u Usecases) Drilldown(ctx context.Context, in DrilldownInput) ([]DealSummary, error) {
	return steps.Drilldown(ctx, u.network(), in)
}
