package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

const (
	firmDetailFunds    = 10
	firmDetailContacts = 5
)

type FirmDetail struct {
	*types.Firm
	Aliases      []string        `json:"aliases"`
	ManagedFunds []*types.Fund   `json:"managed_funds"`
	TopContacts  []*types.Person `json:"top_contacts"`
}

// GetFirm returns the firm with its aliases, newest managed funds and the
// most senior current contacts.
func GetFirm(ctx context.Context, deps CatalogDeps, id uuid.UUID) (*FirmDetail, error) {
	if deps.Firm == nil || deps.Fund == nil || deps.Link == nil || deps.Person == nil || deps.Alias == nil {
		return nil, fmt.Errorf("get firm: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	dbc := dbctx.Context{Ctx: ctx}
	f, err := deps.Firm.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("firm %s: %w", id, dgerrors.ErrNotFound)
	}
	out := &FirmDetail{Firm: f, Aliases: []string{}, ManagedFunds: []*types.Fund{}, TopContacts: []*types.Person{}}

	aliases, err := deps.Alias.ListFirmAliases(dbc, id)
	if err != nil {
		return nil, err
	}
	for _, a := range aliases {
		out.Aliases = append(out.Aliases, a.AliasText)
	}

	funds, err := deps.Fund.ListByManagingFirm(dbc, id)
	if err != nil {
		return nil, err
	}
	if len(funds) > firmDetailFunds {
		funds = funds[:firmDetailFunds]
	}
	out.ManagedFunds = append(out.ManagedFunds, funds...)

	jobs, err := deps.Link.EmploymentForFirm(dbc, id)
	if err != nil {
		return nil, err
	}
	var personIDs []uuid.UUID
	rank := map[uuid.UUID]int{}
	for _, j := range jobs {
		if !j.IsCurrent {
			continue
		}
		r := seniorityRank(j.Title)
		if prev, ok := rank[j.PersonID]; !ok || r < prev {
			if !ok {
				personIDs = append(personIDs, j.PersonID)
			}
			rank[j.PersonID] = r
		}
	}
	people, err := deps.Person.GetByIDs(dbc, personIDs)
	if err != nil {
		return nil, err
	}
	sort.Slice(people, func(i, j int) bool {
		ri, rj := rank[people[i].ID], rank[people[j].ID]
		if ri != rj {
			return ri < rj
		}
		return people[i].FullName < people[j].FullName
	})
	if len(people) > firmDetailContacts {
		people = people[:firmDetailContacts]
	}
	out.TopContacts = append(out.TopContacts, people...)
	return out, nil
}

// seniorityRank orders titles: chiefs first, then partners and directors.
func seniorityRank(title string) int {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "ceo") || strings.Contains(t, "chief"):
		return 1
	case strings.Contains(t, "partner") || strings.Contains(t, "director"):
		return 2
	}
	return 3
}

type FundDetail struct {
	*types.Fund
	ManagingFirm *types.Firm `json:"managing_firm,omitempty"`
}

func GetFund(ctx context.Context, deps CatalogDeps, id uuid.UUID) (*FundDetail, error) {
	if deps.Fund == nil || deps.Firm == nil {
		return nil, fmt.Errorf("get fund: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	dbc := dbctx.Context{Ctx: ctx}
	f, err := deps.Fund.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("fund %s: %w", id, dgerrors.ErrNotFound)
	}
	out := &FundDetail{Fund: f}
	if f.ManagingFirmID != nil {
		if out.ManagingFirm, err = deps.Firm.GetByID(dbc, *f.ManagingFirmID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InvestorRef is one investor as listed on a deal; FirmID is nil while the
// raw name is unresolved.
type InvestorRef struct {
	Name             string     `json:"name"`
	FirmID           *uuid.UUID `json:"firm_id,omitempty"`
	FundID           *uuid.UUID `json:"fund_id,omitempty"`
	ResolutionMethod string     `json:"resolution_method"`
}

type DealDetail struct {
	*types.Deal
	TargetCompany *types.Company `json:"target_company,omitempty"`
	InvestorFirms []InvestorRef  `json:"investor_firms"`
	InvestorFunds []InvestorRef  `json:"investor_funds"`
}

func GetDeal(ctx context.Context, deps CatalogDeps, id uuid.UUID) (*DealDetail, error) {
	if deps.Deal == nil || deps.Company == nil || deps.Link == nil || deps.Firm == nil {
		return nil, fmt.Errorf("get deal: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	dbc := dbctx.Context{Ctx: ctx}
	d, err := deps.Deal.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("deal %s: %w", id, dgerrors.ErrNotFound)
	}
	out := &DealDetail{Deal: d, InvestorFirms: []InvestorRef{}, InvestorFunds: []InvestorRef{}}
	if d.TargetCompanyID != nil {
		if out.TargetCompany, err = deps.Company.GetByID(dbc, *d.TargetCompanyID); err != nil {
			return nil, err
		}
	}

	firmLinks, err := deps.Link.InvestorFirmsForDeals(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	var firmIDs []uuid.UUID
	for _, l := range firmLinks {
		if l.InvestorFirmID != nil {
			firmIDs = append(firmIDs, *l.InvestorFirmID)
		}
	}
	firms, err := deps.Firm.GetByIDs(dbc, firmIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(firms))
	for _, f := range firms {
		names[f.ID] = f.Name
	}
	for _, l := range firmLinks {
		ref := InvestorRef{Name: l.InvestorFirmNameRaw, FirmID: l.InvestorFirmID, ResolutionMethod: l.ResolutionMethod}
		if l.InvestorFirmID != nil && names[*l.InvestorFirmID] != "" {
			ref.Name = names[*l.InvestorFirmID]
		}
		out.InvestorFirms = append(out.InvestorFirms, ref)
	}

	fundLinks, err := deps.Link.InvestorFundsForDeals(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	for _, l := range fundLinks {
		out.InvestorFunds = append(out.InvestorFunds, InvestorRef{
			Name:             l.InvestorFundNameRaw,
			FundID:           l.InvestorFundID,
			ResolutionMethod: l.ResolutionMethod,
		})
	}
	return out, nil
}

func GetCompany(ctx context.Context, deps CatalogDeps, id uuid.UUID) (*types.Company, error) {
	if deps.Company == nil {
		return nil, fmt.Errorf("get company: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	c, err := deps.Company.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("company %s: %w", id, dgerrors.ErrNotFound)
	}
	return c, nil
}

type PersonDetail struct {
	*types.Person
	Employment []*types.PersonEmployment `json:"employment"`
}

func GetPerson(ctx context.Context, deps CatalogDeps, id uuid.UUID) (*PersonDetail, error) {
	if deps.Person == nil || deps.Link == nil {
		return nil, fmt.Errorf("get person: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	dbc := dbctx.Context{Ctx: ctx}
	p, err := deps.Person.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("person %s: %w", id, dgerrors.ErrNotFound)
	}
	jobs, err := deps.Link.EmploymentForPerson(dbc, id)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*types.PersonEmployment{}
	}
	return &PersonDetail{Person: p, Employment: jobs}, nil
}
