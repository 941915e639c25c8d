package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/rediscache"
)

const (
	DefaultLimit   = 50
	MaxLimit       = 200
	MaxHops        = 3
	DefaultMaxHops = 2
)

type NetworkDeps struct {
	Log *logger.Logger

	Edge    repos.CoInvestmentEdgeRepo
	Firm    repos.FirmRepo
	Deal    repos.DealRepo
	Company repos.CompanyRepo

	// Cache is optional.
	Cache rediscache.Cache
}

func (d *NetworkDeps) check() error {
	if d.Edge == nil || d.Firm == nil {
		return fmt.Errorf("network: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return nil
}

type CoInvestorSummary struct {
	FirmID        uuid.UUID      `json:"firm_id"`
	Name          string         `json:"name"`
	FirmType      *string        `json:"firm_type,omitempty"`
	Country       *string        `json:"country,omitempty"`
	DealCount     int            `json:"deal_count"`
	TotalValueUSD *float64       `json:"total_value_usd,omitempty"`
	FirstDealDate *time.Time     `json:"first_deal_date,omitempty"`
	LastDealDate  *time.Time     `json:"last_deal_date,omitempty"`
	TopIndustries map[string]int `json:"top_industries,omitempty"`
}

type CoInvestorsInput struct {
	FirmID   uuid.UUID `json:"firm_id"`
	MinDeals int       `json:"min_deals,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	return min(n, MaxLimit)
}

// cached serves from the network cache when one is configured; misses and
// cache errors fall through to load.
func cached[T any](ctx context.Context, c rediscache.Cache, log *logger.Logger, key string, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}
	var hit T
	ok, err := c.Get(ctx, CacheNamespace, key, &hit)
	if err != nil {
		log.Warn("network cache read failed", "key", key, "error", err)
	}
	observability.Current().IncCacheLookup(CacheNamespace, ok)
	if ok {
		return hit, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, CacheNamespace, key, v); err != nil {
		log.Warn("network cache write failed", "key", key, "error", err)
	}
	return v, nil
}

func requireFirm(ctx context.Context, firms repos.FirmRepo, id uuid.UUID) (*types.Firm, error) {
	f, err := firms.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("firm %s: %w", id, dgerrors.ErrNotFound)
	}
	return f, nil
}

func firmsByID(ctx context.Context, firms repos.FirmRepo, ids []uuid.UUID) (map[uuid.UUID]*types.Firm, error) {
	rows, err := firms.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*types.Firm, len(rows))
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

func other(e *types.CoInvestmentEdge, id uuid.UUID) uuid.UUID {
	if e.FirmAID == id {
		return e.FirmBID
	}
	return e.FirmAID
}

// CoInvestors lists the firms that invested alongside in.FirmID, strongest
// first: deal count, then total value with unknown values last, then name.
func CoInvestors(ctx context.Context, deps NetworkDeps, in CoInvestorsInput) ([]CoInvestorSummary, error) {
	if err := deps.check(); err != nil {
		return nil, err
	}
	in.MinDeals = max(in.MinDeals, 1)
	in.Limit = clampLimit(in.Limit, DefaultLimit)
	key := fmt.Sprintf("co:%s:%d:%d", in.FirmID, in.MinDeals, in.Limit)
	return cached(ctx, deps.Cache, deps.Log, key, func() ([]CoInvestorSummary, error) {
		if _, err := requireFirm(ctx, deps.Firm, in.FirmID); err != nil {
			return nil, err
		}
		edges, err := deps.Edge.Touching(dbctx.Context{Ctx: ctx}, []uuid.UUID{in.FirmID}, in.MinDeals)
		if err != nil {
			return nil, fmt.Errorf("co-investors: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(edges))
		for _, e := range edges {
			ids = append(ids, other(e, in.FirmID))
		}
		byID, err := firmsByID(ctx, deps.Firm, ids)
		if err != nil {
			return nil, fmt.Errorf("co-investors: %w", err)
		}
		out := make([]CoInvestorSummary, 0, len(edges))
		for _, e := range edges {
			id := other(e, in.FirmID)
			s := CoInvestorSummary{
				FirmID:        id,
				DealCount:     e.DealCount,
				TotalValueUSD: e.TotalValueUSD,
				FirstDealDate: e.FirstDealDate,
				LastDealDate:  e.LastDealDate,
			}
			if len(e.TopIndustries) > 0 {
				_ = json.Unmarshal(e.TopIndustries, &s.TopIndustries)
			}
			if f := byID[id]; f != nil {
				s.Name, s.FirmType, s.Country = f.Name, f.FirmType, f.HeadquartersCountry
			}
			out = append(out, s)
		}
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.DealCount != b.DealCount {
				return a.DealCount > b.DealCount
			}
			if (a.TotalValueUSD == nil) != (b.TotalValueUSD == nil) {
				return a.TotalValueUSD != nil
			}
			if a.TotalValueUSD != nil && *a.TotalValueUSD != *b.TotalValueUSD {
				return *a.TotalValueUSD > *b.TotalValueUSD
			}
			if a.Name != b.Name {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
			return types.FirmLess(a.FirmID, b.FirmID)
		})
		if len(out) > in.Limit {
			out = out[:in.Limit]
		}
		return out, nil
	})
}

type NetworkInput struct {
	FirmID      uuid.UUID `json:"firm_id"`
	MaxHops     int       `json:"max_hops,omitempty"`
	MinDeals    int       `json:"min_deals,omitempty"`
	LimitPerHop int       `json:"limit_per_hop,omitempty"`
}

type HopFirm struct {
	FirmID   uuid.UUID `json:"firm_id"`
	Name     string    `json:"name"`
	FirmType *string   `json:"firm_type,omitempty"`
	Country  *string   `json:"country,omitempty"`
	// Strength sums deal_count over edges into the previous frontier.
	Strength      int      `json:"connection_strength"`
	TotalValueUSD *float64 `json:"total_value_usd,omitempty"`
}

type NetworkSummary struct {
	OriginName   string `json:"origin_name"`
	MaxHops      int    `json:"max_hops"`
	HopsExplored int    `json:"hops_explored"`
	TotalFirms   int    `json:"total_firms"`
	// Truncated is set when some hop found more firms than the per-hop cap.
	Truncated bool `json:"truncated"`
}

type NetworkOutput struct {
	FirmID  uuid.UUID         `json:"firm_id"`
	Hops    map[int][]HopFirm `json:"hops"`
	Summary NetworkSummary    `json:"summary"`
}

type hopCandidate struct {
	id       uuid.UUID
	strength int
	value    float64
	hasValue bool
}

// NetworkHops expands the co-investment graph breadth first from in.FirmID.
// Each firm appears once, at the first hop that reaches it, and never the
// origin. Hops are clamped to [1,3] and each hop keeps its strongest
// LimitPerHop firms as the next frontier.
func NetworkHops(ctx context.Context, deps NetworkDeps, in NetworkInput) (NetworkOutput, error) {
	out := NetworkOutput{FirmID: in.FirmID, Hops: map[int][]HopFirm{}}
	if err := deps.check(); err != nil {
		return out, err
	}
	if in.MaxHops <= 0 {
		in.MaxHops = DefaultMaxHops
	}
	in.MaxHops = min(in.MaxHops, MaxHops)
	in.MinDeals = max(in.MinDeals, 1)
	in.LimitPerHop = clampLimit(in.LimitPerHop, DefaultLimit)

	key := fmt.Sprintf("hops:%s:%d:%d:%d", in.FirmID, in.MaxHops, in.MinDeals, in.LimitPerHop)
	return cached(ctx, deps.Cache, deps.Log, key, func() (NetworkOutput, error) {
		origin, err := requireFirm(ctx, deps.Firm, in.FirmID)
		if err != nil {
			return out, err
		}
		out.Summary = NetworkSummary{OriginName: origin.Name, MaxHops: in.MaxHops}

		visited := map[uuid.UUID]bool{in.FirmID: true}
		frontier := []uuid.UUID{in.FirmID}
		for hop := 1; hop <= in.MaxHops && len(frontier) > 0; hop++ {
			inFrontier := make(map[uuid.UUID]bool, len(frontier))
			for _, id := range frontier {
				inFrontier[id] = true
			}
			edges, err := deps.Edge.Touching(dbctx.Context{Ctx: ctx}, frontier, in.MinDeals)
			if err != nil {
				return out, fmt.Errorf("network hop %d: %w", hop, err)
			}
			found := map[uuid.UUID]*hopCandidate{}
			for _, e := range edges {
				var next uuid.UUID
				switch {
				case inFrontier[e.FirmAID] && !visited[e.FirmBID]:
					next = e.FirmBID
				case inFrontier[e.FirmBID] && !visited[e.FirmAID]:
					next = e.FirmAID
				default:
					continue
				}
				c := found[next]
				if c == nil {
					c = &hopCandidate{id: next}
					found[next] = c
				}
				c.strength += e.DealCount
				if e.TotalValueUSD != nil {
					c.value += *e.TotalValueUSD
					c.hasValue = true
				}
			}
			out.Summary.HopsExplored = hop
			if len(found) == 0 {
				break
			}

			cands := make([]*hopCandidate, 0, len(found))
			for id, c := range found {
				visited[id] = true
				cands = append(cands, c)
			}
			sort.Slice(cands, func(i, j int) bool {
				if cands[i].strength != cands[j].strength {
					return cands[i].strength > cands[j].strength
				}
				if cands[i].value != cands[j].value {
					return cands[i].value > cands[j].value
				}
				return types.FirmLess(cands[i].id, cands[j].id)
			})
			if len(cands) > in.LimitPerHop {
				cands = cands[:in.LimitPerHop]
				out.Summary.Truncated = true
			}

			ids := make([]uuid.UUID, 0, len(cands))
			for _, c := range cands {
				ids = append(ids, c.id)
			}
			byID, err := firmsByID(ctx, deps.Firm, ids)
			if err != nil {
				return out, fmt.Errorf("network hop %d: %w", hop, err)
			}
			level := make([]HopFirm, 0, len(cands))
			for _, c := range cands {
				hf := HopFirm{FirmID: c.id, Strength: c.strength}
				if c.hasValue {
					v := c.value
					hf.TotalValueUSD = &v
				}
				if f := byID[c.id]; f != nil {
					hf.Name, hf.FirmType, hf.Country = f.Name, f.FirmType, f.HeadquartersCountry
				}
				level = append(level, hf)
			}
			out.Hops[hop] = level
			out.Summary.TotalFirms += len(level)
			frontier = ids
		}
		return out, nil
	})
}

type DrilldownInput struct {
	FirmA uuid.UUID `json:"firm_a"`
	FirmB uuid.UUID `json:"firm_b"`
	Limit int       `json:"limit,omitempty"`
}

type DealSummary struct {
	DealID            uuid.UUID  `json:"deal_id"`
	SourceID          string     `json:"source_id"`
	DealDate          *time.Time `json:"deal_date,omitempty"`
	DealType          *string    `json:"deal_type,omitempty"`
	DealValueUSD      *float64   `json:"deal_value_usd,omitempty"`
	PrimaryIndustry   *string    `json:"primary_industry,omitempty"`
	TargetCompanyID   *uuid.UUID `json:"target_company_id,omitempty"`
	TargetCompanyName *string    `json:"target_company_name,omitempty"`
}

// Drilldown lists the deals both firms invested in, newest first.
func Drilldown(ctx context.Context, deps NetworkDeps, in DrilldownInput) ([]DealSummary, error) {
	if err := deps.check(); err != nil {
		return nil, err
	}
	if deps.Deal == nil {
		return nil, fmt.Errorf("drilldown: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if in.FirmA == in.FirmB {
		return nil, fmt.Errorf("drilldown: firms must differ: %w", dgerrors.ErrInvalidArgument)
	}
	in.Limit = clampLimit(in.Limit, DefaultLimit)
	a, b := types.OrderedPair(in.FirmA, in.FirmB)
	key := fmt.Sprintf("drill:%s:%s:%d", a, b, in.Limit)
	return cached(ctx, deps.Cache, deps.Log, key, func() ([]DealSummary, error) {
		dbc := dbctx.Context{Ctx: ctx}
		deals, err := deps.Deal.ListShared(dbc, a, b, in.Limit)
		if err != nil {
			return nil, fmt.Errorf("drilldown: %w", err)
		}
		names := map[uuid.UUID]string{}
		if deps.Company != nil {
			var ids []uuid.UUID
			for _, d := range deals {
				if d.TargetCompanyID != nil {
					ids = append(ids, *d.TargetCompanyID)
				}
			}
			companies, err := deps.Company.GetByIDs(dbc, ids)
			if err != nil {
				return nil, fmt.Errorf("drilldown: %w", err)
			}
			for _, c := range companies {
				names[c.ID] = c.Name
			}
		}
		out := make([]DealSummary, 0, len(deals))
		for _, d := range deals {
			s := DealSummary{
				DealID:            d.ID,
				SourceID:          d.SourceID,
				DealDate:          d.DealDate,
				DealType:          d.DealType,
				DealValueUSD:      d.DealValueUSD,
				PrimaryIndustry:   d.PrimaryIndustry,
				TargetCompanyID:   d.TargetCompanyID,
				TargetCompanyName: d.TargetCompanyName,
			}
			if d.TargetCompanyID != nil {
				if n, ok := names[*d.TargetCompanyID]; ok {
					s.TargetCompanyName = &n
				}
			}
			out = append(out, s)
		}
		return out, nil
	})
}
