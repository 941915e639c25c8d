package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/modules/catalog/steps"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type UsecasesDeps struct {
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

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	PageRequest   = steps.PageRequest
	FirmFilter    = steps.FirmFilter
	FundFilter    = steps.FundFilter
	DealFilter    = steps.DealFilter
	CompanyFilter = steps.CompanyFilter
	PersonFilter  = steps.PersonFilter
	FirmDetail    = steps.FirmDetail
	FundDetail    = steps.FundDetail
	DealDetail    = steps.DealDetail
	PersonDetail  = steps.PersonDetail
	InvestorRef   = steps.InvestorRef
	Stats         = steps.Stats
)

func (u Usecases) catalog() steps.CatalogDeps {
	return steps.CatalogDeps{
		Log:        u.deps.Log,
		Firm:       u.deps.Firm,
		Fund:       u.deps.Fund,
		Person:     u.deps.Person,
		Company:    u.deps.Company,
		Deal:       u.deps.Deal,
		Link:       u.deps.Link,
		Alias:      u.deps.Alias,
		Edge:       u.deps.Edge,
		Quarantine: u.deps.Quarantine,
		Doc:        u.deps.Doc,
	}
}

func (u Usecases) GetFirm(ctx context.Context, id uuid.UUID) (*FirmDetail, error) {
	return steps.GetFirm(ctx, u.catalog(), id)
}

func (u Usecases) ListFirms(ctx context.Context, f FirmFilter, p PageRequest) (steps.Page[*types.Firm], error) {
	return steps.ListFirms(ctx, u.catalog(), f, p)
}

func (u Usecases) GetFund(ctx context.Context, id uuid.UUID) (*FundDetail, error) {
	return steps.GetFund(ctx, u.catalog(), id)
}

func (u Usecases) ListFunds(ctx context.Context, f FundFilter, p PageRequest) (steps.Page[*types.Fund], error) {
	return steps.ListFunds(ctx, u.catalog(), f, p)
}

func (u Usecases) GetDeal(ctx context.Context, id uuid.UUID) (*DealDetail, error) {
	return steps.GetDeal(ctx, u.catalog(), id)
}

func (u Usecases) ListDeals(ctx context.Context, f DealFilter, p PageRequest) (steps.Page[*types.Deal], error) {
	return steps.ListDeals(ctx, u.catalog(), f, p)
}

func (u Usecases) GetCompany(ctx context.Context, id uuid.UUID) (*types.Company, error) {
	return steps.GetCompany(ctx, u.catalog(), id)
}

func (u Usecases) ListCompanies(ctx context.Context, f CompanyFilter, p PageRequest) (steps.Page[*types.Company], error) {
	return steps.ListCompanies(ctx, u.catalog(), f, p)
}

func (u Usecases) GetPerson(ctx context.Context, id uuid.UUID) (*PersonDetail, error) {
	return steps.GetPerson(ctx, u.catalog(), id)
}

func (u Usecases) ListPersons(ctx context.Context, f PersonFilter, p PageRequest) (steps.Page[*types.Person], error) {
	return steps.ListPersons(ctx, u.catalog(), f, p)
}

func (u Usecases) Stats(ctx context.Context) (Stats, error) {
	return steps.GetStats(ctx, u.catalog())
}
