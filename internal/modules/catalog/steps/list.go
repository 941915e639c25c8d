package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type CatalogDeps struct {
	Log *logger.Logger

	Firm       repos.FirmRepo
	Fund       repos.FundRepo
	Person     repos.PersonRepo
	Company    repos.CompanyRepo
	Deal       repos.DealRepo
	Link       repos.LinkRepo
	Alias      repos.AliasRepo
	Edge       repos.CoInvestmentEdgeRepo
	Quarantine repos.QuarantineRepo
	Doc        repos.EntityDocRepo
}

type PageRequest struct {
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
	Sort     string `json:"sort,omitempty"`
}

// Page is one page of a filtered list.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

// normalize fills defaults. A zero page or size means the default; anything
// else outside page >= 1 and 1 <= size <= MaxPageSize is rejected.
func (p PageRequest) normalize() (PageRequest, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 {
		return p, fmt.Errorf("page must be >= 1: %w", dgerrors.ErrInvalidArgument)
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return p, fmt.Errorf("page_size must be in [1,%d]: %w", MaxPageSize, dgerrors.ErrInvalidArgument)
	}
	return p, nil
}

func (p PageRequest) query(where []db.Predicate, sorts map[string]string, fallback string) (db.ListQuery, error) {
	order := sorts[fallback]
	if p.Sort != "" {
		o, ok := sorts[p.Sort]
		if !ok {
			return db.ListQuery{}, fmt.Errorf("unknown sort %q: %w", p.Sort, dgerrors.ErrInvalidArgument)
		}
		order = o
	}
	return db.ListQuery{
		Where:  where,
		Order:  order,
		Offset: (p.Page - 1) * p.PageSize,
		Limit:  p.PageSize,
	}, nil
}

func newPage[T any](items []T, total int64, p PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize, Pages: pages}
}

// listPage validates the request, builds the query and runs it.
func listPage[T any](ctx context.Context, p PageRequest, where []db.Predicate, sorts map[string]string, fallback string,
	list func(dbctx.Context, db.ListQuery) ([]T, int64, error)) (Page[T], error) {
	p, err := p.normalize()
	if err != nil {
		return Page[T]{}, err
	}
	q, err := p.query(where, sorts, fallback)
	if err != nil {
		return Page[T]{}, err
	}
	items, total, err := list(dbctx.Context{Ctx: ctx}, q)
	if err != nil {
		return Page[T]{}, err
	}
	return newPage(items, total, p), nil
}

// contains is a case-insensitive substring predicate on an allow-listed column.
func contains(column, value string) db.Predicate {
	like := "%" + strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(value)) + "%"
	return db.Where("LOWER("+column+`) LIKE ? ESCAPE '\'`, like)
}

// nameSearch matches the display name or the normalized name.
func nameSearch(column, normalizedColumn, value string) db.Predicate {
	p := contains(column, value)
	norm := normalization.Name(value)
	if norm == "" {
		return p
	}
	n := contains(normalizedColumn, norm)
	return db.Where("("+p.SQL+" OR "+n.SQL+")", append(p.Args, n.Args...)...)
}

type FirmFilter struct {
	FirmType string   `json:"firm_type,omitempty"`
	Country  string   `json:"country,omitempty"`
	MinAUM   *float64 `json:"min_aum,omitempty"`
	Search   string   `json:"search,omitempty"`
}

var firmSorts = map[string]string{
	"aum":  "aum_usd IS NULL, aum_usd DESC, name ASC, id ASC",
	"name": "name ASC, id ASC",
}

func ListFirms(ctx context.Context, deps CatalogDeps, f FirmFilter, p PageRequest) (Page[*types.Firm], error) {
	if deps.Firm == nil {
		return Page[*types.Firm]{}, fmt.Errorf("list firms: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	var where []db.Predicate
	if s := strings.TrimSpace(f.FirmType); s != "" {
		where = append(where, db.Where("firm_type = ?", s))
	}
	if s := strings.TrimSpace(f.Country); s != "" {
		where = append(where, contains("headquarters_country", s))
	}
	if f.MinAUM != nil {
		where = append(where, db.Where("aum_usd >= ?", *f.MinAUM))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, nameSearch("name", "name_normalized", s))
	}
	return listPage(ctx, p, where, firmSorts, "aum", deps.Firm.List)
}

type FundFilter struct {
	Strategy    string   `json:"strategy,omitempty"`
	VintageYear *int     `json:"vintage_year,omitempty"`
	MinSize     *float64 `json:"min_size,omitempty"`
	Search      string   `json:"search,omitempty"`
}

var fundSorts = map[string]string{
	"vintage": "vintage_year IS NULL, vintage_year DESC, fund_size_usd IS NULL, fund_size_usd DESC, id ASC",
	"size":    "fund_size_usd IS NULL, fund_size_usd DESC, id ASC",
	"name":    "name ASC, id ASC",
}

func ListFunds(ctx context.Context, deps CatalogDeps, f FundFilter, p PageRequest) (Page[*types.Fund], error) {
	if deps.Fund == nil {
		return Page[*types.Fund]{}, fmt.Errorf("list funds: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	var where []db.Predicate
	if s := strings.TrimSpace(f.Strategy); s != "" {
		where = append(where, contains("strategy", s))
	}
	if f.VintageYear != nil {
		where = append(where, db.Where("vintage_year = ?", *f.VintageYear))
	}
	if f.MinSize != nil {
		where = append(where, db.Where("fund_size_usd >= ?", *f.MinSize))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, nameSearch("name", "name_normalized", s))
	}
	return listPage(ctx, p, where, fundSorts, "vintage", deps.Fund.List)
}

type DealFilter struct {
	DealType string   `json:"deal_type,omitempty"`
	Industry string   `json:"industry,omitempty"`
	Country  string   `json:"country,omitempty"`
	MinValue *float64 `json:"min_value,omitempty"`
}

var dealSorts = map[string]string{
	"date":  "deal_date IS NULL, deal_date DESC, id ASC",
	"value": "deal_value_usd IS NULL, deal_value_usd DESC, id ASC",
}

func ListDeals(ctx context.Context, deps CatalogDeps, f DealFilter, p PageRequest) (Page[*types.Deal], error) {
	if deps.Deal == nil {
		return Page[*types.Deal]{}, fmt.Errorf("list deals: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	var where []db.Predicate
	if s := strings.TrimSpace(f.DealType); s != "" {
		where = append(where, contains("deal_type", s))
	}
	if s := strings.TrimSpace(f.Industry); s != "" {
		where = append(where, contains("primary_industry", s))
	}
	if s := strings.TrimSpace(f.Country); s != "" {
		where = append(where, contains("country", s))
	}
	if f.MinValue != nil {
		where = append(where, db.Where("deal_value_usd >= ?", *f.MinValue))
	}
	return listPage(ctx, p, where, dealSorts, "date", deps.Deal.List)
}

type CompanyFilter struct {
	Industry string `json:"industry,omitempty"`
	Country  string `json:"country,omitempty"`
	Search   string `json:"search,omitempty"`
}

var companySorts = map[string]string{
	"name": "name ASC, id ASC",
}

func ListCompanies(ctx context.Context, deps CatalogDeps, f CompanyFilter, p PageRequest) (Page[*types.Company], error) {
	if deps.Company == nil {
		return Page[*types.Company]{}, fmt.Errorf("list companies: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	var where []db.Predicate
	if s := strings.TrimSpace(f.Industry); s != "" {
		where = append(where, contains("primary_industry", s))
	}
	if s := strings.TrimSpace(f.Country); s != "" {
		where = append(where, contains("country", s))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, nameSearch("name", "name_normalized", s))
	}
	return listPage(ctx, p, where, companySorts, "name", deps.Company.List)
}

type PersonFilter struct {
	Title   string `json:"title,omitempty"`
	Country string `json:"country,omitempty"`
	Firm    string `json:"firm,omitempty"`
	Search  string `json:"search,omitempty"`
}

var personSorts = map[string]string{
	"name": "full_name ASC, id ASC",
}

func ListPersons(ctx context.Context, deps CatalogDeps, f PersonFilter, p PageRequest) (Page[*types.Person], error) {
	if deps.Person == nil {
		return Page[*types.Person]{}, fmt.Errorf("list persons: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	var where []db.Predicate
	if s := strings.TrimSpace(f.Title); s != "" {
		where = append(where, contains("title", s))
	}
	if s := strings.TrimSpace(f.Country); s != "" {
		where = append(where, contains("location_country", s))
	}
	if s := strings.TrimSpace(f.Firm); s != "" {
		where = append(where, contains("firm_name", s))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, nameSearch("full_name", "name_normalized", s))
	}
	return listPage(ctx, p, where, personSorts, "name", deps.Person.List)
}
