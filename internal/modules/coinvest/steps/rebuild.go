package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	graphstore "github.com/yungbote/dealgraph-backend/internal/data/graph"
	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/dealgraph-backend/internal/platform/rediscache"
)

const (
	DefaultMaxInvestorsPerDeal = 50
	DefaultDealPage            = 1000

	// CacheNamespace holds every cached network answer; a rebuild invalidates it.
	CacheNamespace = "network"

	topIndustriesKept = 5
	skippedLogSample  = 10
)

type RebuildDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Link repos.LinkRepo
	Edge repos.CoInvestmentEdgeRepo
	Firm repos.FirmRepo

	// Cache and Neo4j are optional.
	Cache rediscache.Cache
	Neo4j *neo4jdb.Client

	DealPage int
}

type RebuildInput struct {
	MaxInvestorsPerDeal int    `json:"max_investors_per_deal,omitempty"`
	RunID               string `json:"run_id,omitempty"`
}

type SkippedDeal struct {
	DealID        uuid.UUID `json:"deal_id"`
	InvestorCount int       `json:"investor_count"`
}

type RebuildOutput struct {
	RunID                  string          `json:"run_id"`
	EdgesCreated           int64           `json:"edges_created"`
	DealsProcessed         int             `json:"deals_processed"`
	HighDegreeDealsSkipped int             `json:"high_degree_deals_skipped"`
	SkippedDeals           []SkippedDeal   `json:"skipped_deals,omitempty"`
	Stats                  repos.EdgeStats `json:"stats"`
	Projected              bool            `json:"projected"`
	ProjectionError        string          `json:"projection_error,omitempty"`
}

type edgeAcc struct {
	a, b       uuid.UUID
	deals      int
	value      float64
	hasValue   bool
	first      *time.Time
	last       *time.Time
	industries map[string]int
}

func (e *edgeAcc) add(d dealFacts) {
	e.deals++
	if d.value != nil {
		e.value += *d.value
		e.hasValue = true
	}
	if d.date != nil {
		if e.first == nil || d.date.Before(*e.first) {
			t := *d.date
			e.first = &t
		}
		if e.last == nil || d.date.After(*e.last) {
			t := *d.date
			e.last = &t
		}
	}
	if d.industry != "" {
		e.industries[d.industry]++
	}
}

type dealFacts struct {
	id       uuid.UUID
	firms    []uuid.UUID
	value    *float64
	date     *time.Time
	industry string
}

// RebuildEdges replaces the co-investment table in one transaction. Deals with
// more resolved investors than the guardrail allows contribute nothing and
// are returned as skipped.
func RebuildEdges(ctx context.Context, deps RebuildDeps, in RebuildInput) (RebuildOutput, error) {
	out := RebuildOutput{RunID: in.RunID}
	if deps.DB == nil || deps.Link == nil || deps.Edge == nil {
		return out, fmt.Errorf("rebuild edges: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.DealPage <= 0 {
		deps.DealPage = DefaultDealPage
	}
	if in.MaxInvestorsPerDeal <= 0 {
		in.MaxInvestorsPerDeal = DefaultMaxInvestorsPerDeal
	}
	if out.RunID == "" {
		out.RunID = uuid.NewString()
	}

	ctx, span := observability.StartStage(ctx, "rebuild_edges")
	var err error
	defer func() { observability.EndStage(span, err) }()

	var edges []*types.CoInvestmentEdge
	err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := deps.Edge.Truncate(dbc); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		acc := map[[2]uuid.UUID]*edgeAcc{}
		if err := streamDeals(dbc, deps.Link, deps.DealPage, func(d dealFacts) {
			if len(d.firms) > in.MaxInvestorsPerDeal {
				out.SkippedDeals = append(out.SkippedDeals, SkippedDeal{DealID: d.id, InvestorCount: len(d.firms)})
				return
			}
			out.DealsProcessed++
			for i := 0; i < len(d.firms); i++ {
				for j := i + 1; j < len(d.firms); j++ {
					a, b := types.OrderedPair(d.firms[i], d.firms[j])
					k := [2]uuid.UUID{a, b}
					e := acc[k]
					if e == nil {
						e = &edgeAcc{a: a, b: b, industries: map[string]int{}}
						acc[k] = e
					}
					e.add(d)
				}
			}
		}); err != nil {
			return err
		}
		edges = buildEdges(acc, out.RunID)
		n, err := deps.Edge.Create(dbc, edges)
		if err != nil {
			return fmt.Errorf("create edges: %w", err)
		}
		out.EdgesCreated = n
		return nil
	})
	if err != nil {
		err = fmt.Errorf("rebuild edges: %w", err)
		return out, err
	}
	out.HighDegreeDealsSkipped = len(out.SkippedDeals)
	reportSkippedDeals(ctx, deps.Log, out.SkippedDeals, in.MaxInvestorsPerDeal)

	stats, serr := deps.Edge.Stats(dbctx.Context{Ctx: ctx})
	if serr != nil {
		deps.Log.Warn("edge stats failed", "error", serr)
	} else {
		out.Stats = stats
	}
	observability.Current().SetEdgesBuilt(int(out.EdgesCreated))

	if deps.Cache != nil {
		if cerr := deps.Cache.Invalidate(ctx, CacheNamespace); cerr != nil {
			deps.Log.Warn("network cache invalidation failed", "error", cerr)
		}
	}
	if deps.Neo4j != nil && deps.Firm != nil {
		if perr := project(ctx, deps, out.RunID, edges); perr != nil {
			deps.Log.Warn("neo4j projection failed", "error", perr)
			out.ProjectionError = perr.Error()
		} else {
			out.Projected = true
		}
	}

	deps.Log.Info("co-investment edges rebuilt",
		"run_id", out.RunID,
		"edges", out.EdgesCreated,
		"deals_processed", out.DealsProcessed,
		"high_degree_skipped", out.HighDegreeDealsSkipped,
	)
	return out, nil
}

// streamDeals walks resolved investors deal by deal, de-duplicating firms
// within each deal.
func streamDeals(dbc dbctx.Context, link repos.LinkRepo, page int, fn func(dealFacts)) error {
	after := uuid.Nil
	for {
		if err := dbc.Ctx.Err(); err != nil {
			return err
		}
		rows, last, err := link.ResolvedInvestorsByDeal(dbc, after, page)
		if err != nil {
			return fmt.Errorf("investors after %s: %w", after, err)
		}
		if len(rows) == 0 {
			return nil
		}
		var cur *dealFacts
		seen := map[uuid.UUID]bool{}
		flush := func() {
			if cur != nil {
				fn(*cur)
			}
		}
		for _, r := range rows {
			if cur == nil || cur.id != r.DealID {
				flush()
				cur = &dealFacts{id: r.DealID, value: r.DealValueUSD, date: r.DealDate}
				if r.PrimaryIndustry != nil {
					cur.industry = *r.PrimaryIndustry
				}
				seen = map[uuid.UUID]bool{}
			}
			if seen[r.FirmID] {
				continue
			}
			seen[r.FirmID] = true
			cur.firms = append(cur.firms, r.FirmID)
		}
		flush()
		after = last
	}
}

type industryCount struct {
	Industry string
	Count    int
}

func topIndustries(counts map[string]int) datatypes.JSON {
	if len(counts) == 0 {
		return nil
	}
	list := make([]industryCount, 0, len(counts))
	for k, v := range counts {
		list = append(list, industryCount{Industry: k, Count: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Industry < list[j].Industry
	})
	if len(list) > topIndustriesKept {
		list = list[:topIndustriesKept]
	}
	top := make(map[string]int, len(list))
	for _, ic := range list {
		top[ic.Industry] = ic.Count
	}
	raw, _ := json.Marshal(top)
	return datatypes.JSON(raw)
}

func buildEdges(acc map[[2]uuid.UUID]*edgeAcc, runID string) []*types.CoInvestmentEdge {
	out := make([]*types.CoInvestmentEdge, 0, len(acc))
	now := time.Now().UTC()
	for _, e := range acc {
		edge := &types.CoInvestmentEdge{
			FirmAID:       e.a,
			FirmBID:       e.b,
			DealCount:     e.deals,
			FirstDealDate: e.first,
			LastDealDate:  e.last,
			TopIndustries: topIndustries(e.industries),
			RunID:         runID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if e.hasValue {
			v := e.value
			edge.TotalValueUSD = &v
		}
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirmAID != out[j].FirmAID {
			return types.FirmLess(out[i].FirmAID, out[j].FirmAID)
		}
		return types.FirmLess(out[i].FirmBID, out[j].FirmBID)
	})
	return out
}

func reportSkippedDeals(ctx context.Context, log *logger.Logger, skipped []SkippedDeal, maxInvestors int) {
	if len(skipped) == 0 {
		return
	}
	sample := skipped
	if len(sample) > skippedLogSample {
		sample = sample[:skippedLogSample]
	}
	samples := make([]string, 0, len(sample))
	for _, s := range sample {
		samples = append(samples, fmt.Sprintf("%s:%d", s.DealID, s.InvestorCount))
	}
	log.Warn("high-degree deals skipped", "count", len(skipped), "max_investors", maxInvestors, "sample", samples)
	observability.ReportDataQuality(ctx, log, "rebuild_edges", []observability.DataQualityIssue{{
		Issue:   observability.IssueHighDegreeDeal,
		Key:     "deal",
		Count:   len(skipped),
		Samples: samples,
	}}, map[string]any{"max_investors_per_deal": maxInvestors})
}

func project(ctx context.Context, deps RebuildDeps, runID string, edges []*types.CoInvestmentEdge) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, e := range edges {
		for _, id := range []uuid.UUID{e.FirmAID, e.FirmBID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	firms, err := deps.Firm.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return err
	}
	return graphstore.SyncCoInvestmentGraph(ctx, deps.Neo4j, deps.Log, runID, firms, edges)
}
