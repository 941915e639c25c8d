package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const (
	LinkFundManager       = "fund_manager"
	LinkPersonEmployment  = "person_employment"
	LinkDealTargetCompany = "deal_target_company"
	LinkDealInvestorFirm  = "deal_investor_firm"
	LinkDealInvestorFund  = "deal_investor_fund"
)

// LinkKinds is the order RunAll links in.
var LinkKinds = []string{
	LinkFundManager,
	LinkPersonEmployment,
	LinkDealTargetCompany,
	LinkDealInvestorFirm,
	LinkDealInvestorFund,
}

type LinkDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Firm    repos.FirmRepo
	Fund    repos.FundRepo
	Person  repos.PersonRepo
	Company repos.CompanyRepo
	Deal    repos.DealRepo
	Link    repos.LinkRepo
	Alias   repos.AliasRepo

	PageSize int
}

type LinkInput struct {
	Kind string `json:"kind"`
}

type LinkOutput struct {
	Kind       string `json:"kind"`
	Linked     int64  `json:"rows_linked"`
	Unresolved int    `json:"unresolved"`
}

// Link runs one relationship pass. Every insert ignores existing links, so a
// pass can be repeated.
func Link(ctx context.Context, deps LinkDeps, in LinkInput) (LinkOutput, error) {
	out := LinkOutput{Kind: in.Kind}
	if deps.DB == nil || deps.Link == nil || deps.Firm == nil {
		return out, fmt.Errorf("link: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.PageSize <= 0 {
		deps.PageSize = DefaultBatchSize
	}

	ctx, span := observability.StartStage(ctx, "link_"+in.Kind)
	var err error
	defer func() { observability.EndStage(span, err) }()

	switch in.Kind {
	case LinkFundManager:
		err = linkFundManagers(ctx, deps, &out)
	case LinkPersonEmployment:
		err = linkEmployment(ctx, deps, &out)
	case LinkDealTargetCompany:
		err = linkDealTargets(ctx, deps, &out)
	case LinkDealInvestorFirm:
		err = linkDealInvestorFirms(ctx, deps, &out)
	case LinkDealInvestorFund:
		err = linkDealInvestorFunds(ctx, deps, &out)
	default:
		err = fmt.Errorf("link: unknown kind %q: %w", in.Kind, dgerrors.ErrInvalidArgument)
		return out, err
	}
	if err != nil {
		err = fmt.Errorf("link %s: %w", in.Kind, err)
		return out, err
	}
	deps.Log.Info("link finished", "kind", in.Kind, "rows_linked", out.Linked, "unresolved", out.Unresolved)
	return out, nil
}

func inTx(ctx context.Context, db *gorm.DB, fn func(dbc dbctx.Context) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// pageAll walks a by-id pager until it is exhausted.
func pageAll[T any](ctx context.Context, size int, page func(dbc dbctx.Context, after uuid.UUID, limit int) ([]*T, error), id func(*T) uuid.UUID, fn func(rows []*T) error) error {
	dbc := dbctx.Context{Ctx: ctx}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := page(dbc, after, size)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows); err != nil {
			return err
		}
		after = id(rows[len(rows)-1])
	}
}

func fundID(f *types.Fund) uuid.UUID     { return f.ID }
func personID(p *types.Person) uuid.UUID { return p.ID }
func dealID(d *types.Deal) uuid.UUID     { return d.ID }

// linkFundManagers links by the sourced manager id first. Only funds still
// without a manager are then tried by manager name and firm alias.
func linkFundManagers(ctx context.Context, deps LinkDeps, out *LinkOutput) error {
	if deps.Fund == nil {
		return dgerrors.ErrNotConfigured
	}
	err := pageAll(ctx, deps.PageSize, deps.Fund.Page, fundID, func(funds []*types.Fund) error {
		var pending []*types.Fund
		var sourceIDs []string
		for _, f := range funds {
			if f.ManagingFirmID == nil && f.ManagerFirmSourceID != nil {
				pending = append(pending, f)
				sourceIDs = append(sourceIDs, *f.ManagerFirmSourceID)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		return inTx(ctx, deps.DB, func(dbc dbctx.Context) error {
			ids, err := deps.Firm.IDsBySourceIDs(dbc, sourceIDs)
			if err != nil {
				return err
			}
			byFund := map[*types.Fund]Match{}
			for _, f := range pending {
				if id, ok := ids[*f.ManagerFirmSourceID]; ok {
					byFund[f] = Match{ID: id, Method: types.ResolutionID, Confidence: 1}
				}
			}
			return writeManagerLinks(dbc, deps, byFund, out)
		})
	})
	if err != nil {
		return err
	}

	resolver := FirmNameResolver(deps.Firm, deps.Alias)
	return pageAll(ctx, deps.PageSize, deps.Fund.PageUnmanaged, fundID, func(funds []*types.Fund) error {
		var names []string
		for _, f := range funds {
			if f.ManagerFirmName != nil {
				names = append(names, *f.ManagerFirmName)
			}
		}
		return inTx(ctx, deps.DB, func(dbc dbctx.Context) error {
			matches, err := resolver.Resolve(dbc, names)
			if err != nil {
				return err
			}
			byFund := map[*types.Fund]Match{}
			for _, f := range funds {
				if f.ManagerFirmName == nil {
					out.Unresolved++
					continue
				}
				m, ok := matches[*f.ManagerFirmName]
				if !ok {
					out.Unresolved++
					continue
				}
				byFund[f] = m
			}
			return writeManagerLinks(dbc, deps, byFund, out)
		})
	})
}

func writeManagerLinks(dbc dbctx.Context, deps LinkDeps, byFund map[*types.Fund]Match, out *LinkOutput) error {
	if len(byFund) == 0 {
		return nil
	}
	rows := make([]*types.FirmManagesFund, 0, len(byFund))
	for f, m := range byFund {
		method := m.Method
		rows = append(rows, &types.FirmManagesFund{
			FirmID:           m.ID,
			FundID:           f.ID,
			Role:             "Manager",
			ConfidenceScore:  m.Confidence,
			ResolutionMethod: &method,
			SourceFile:       f.SourceFile,
		})
	}
	n, err := deps.Link.CreateFirmManagesFund(dbc, rows)
	if err != nil {
		return err
	}
	for f, m := range byFund {
		if err := deps.Fund.SetManagingFirm(dbc, f.ID, m.ID); err != nil {
			return err
		}
	}
	out.Linked += n
	return nil
}

// linkEmployment links people without an employment row by the contact's
// source firm id, then by firm name and alias.
func linkEmployment(ctx context.Context, deps LinkDeps, out *LinkOutput) error {
	if deps.Person == nil {
		return dgerrors.ErrNotConfigured
	}
	resolver := FirmNameResolver(deps.Firm, deps.Alias)
	return pageAll(ctx, deps.PageSize, deps.Person.PageWithoutEmployment, personID, func(people []*types.Person) error {
		var sourceIDs, names []string
		for _, p := range people {
			if p.FirmSourceID != nil {
				sourceIDs = append(sourceIDs, *p.FirmSourceID)
			}
			if p.FirmName != nil {
				names = append(names, *p.FirmName)
			}
		}
		return inTx(ctx, deps.DB, func(dbc dbctx.Context) error {
			byID, err := deps.Firm.IDsBySourceIDs(dbc, sourceIDs)
			if err != nil {
				return err
			}
			byName, err := resolver.Resolve(dbc, names)
			if err != nil {
				return err
			}
			var rows []*types.PersonEmployment
			for _, p := range people {
				var m Match
				if p.FirmSourceID != nil {
					if id, ok := byID[*p.FirmSourceID]; ok {
						m = Match{ID: id, Method: types.ResolutionID, Confidence: 1}
					}
				}
				if !m.Resolved() && p.FirmName != nil {
					m = byName[*p.FirmName]
				}
				if !m.Resolved() {
					out.Unresolved++
					continue
				}
				method := m.Method
				title := ""
				if p.Title != nil {
					title = *p.Title
				}
				rows = append(rows, &types.PersonEmployment{
					PersonID:         p.ID,
					FirmID:           m.ID,
					Title:            title,
					IsCurrent:        true,
					ConfidenceScore:  m.Confidence,
					ResolutionMethod: &method,
					SourceFile:       p.SourceFile,
				})
			}
			n, err := deps.Link.CreatePersonEmployment(dbc, rows)
			out.Linked += n
			return err
		})
	})
}

func linkDealTargets(ctx context.Context, deps LinkDeps, out *LinkOutput) error {
	if deps.Deal == nil || deps.Company == nil {
		return dgerrors.ErrNotConfigured
	}
	return pageAll(ctx, deps.PageSize, deps.Deal.Page, dealID, func(deals []*types.Deal) error {
		var pending []*types.Deal
		var keys []string
		for _, d := range deals {
			if d.TargetCompanyID == nil && d.TargetCompanySourceID != nil {
				pending = append(pending, d)
				keys = append(keys, *d.TargetCompanySourceID)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		return inTx(ctx, deps.DB, func(dbc dbctx.Context) error {
			ids, err := deps.Company.IDsBySourceIDs(dbc, keys)
			if err != nil {
				return err
			}
			// An id-less mention of a company sourced elsewhere with an id
			// is keyed by name hash; fall back to the normalized name.
			var names []string
			for _, d := range pending {
				if _, ok := ids[*d.TargetCompanySourceID]; !ok && d.TargetCompanyName != nil {
					names = append(names, normalization.Name(*d.TargetCompanyName))
				}
			}
			byName := map[string]uuid.UUID{}
			if len(names) > 0 {
				if byName, err = deps.Company.IDsByNormalizedNames(dbc, names); err != nil {
					return err
				}
			}
			method := types.ResolutionExact
			var rows []*types.DealTargetCompany
			for _, d := range pending {
				cid, ok := ids[*d.TargetCompanySourceID]
				if !ok && d.TargetCompanyName != nil {
					cid, ok = byName[normalization.Name(*d.TargetCompanyName)]
				}
				if !ok {
					out.Unresolved++
					continue
				}
				rows = append(rows, &types.DealTargetCompany{
					DealID:           d.ID,
					CompanyID:        cid,
					ConfidenceScore:  TargetCompanyConfidence,
					ResolutionMethod: &method,
					SourceFile:       d.SourceFile,
				})
				if err := deps.Deal.SetTargetCompany(dbc, d.ID, cid); err != nil {
					return err
				}
			}
			n, err := deps.Link.CreateDealTargetCompany(dbc, rows)
			out.Linked += n
			return err
		})
	})
}

// investorRefs splits each deal's raw list and collects every entry once.
func investorRefs(deals []*types.Deal, raw func(*types.Deal) *string) (map[uuid.UUID][]string, []string) {
	perDeal := make(map[uuid.UUID][]string, len(deals))
	var all []string
	for _, d := range deals {
		s := raw(d)
		if s == nil {
			continue
		}
		names := SplitInvestorNames(*s)
		if len(names) == 0 {
			continue
		}
		perDeal[d.ID] = names
		all = append(all, names...)
	}
	return perDeal, all
}

// linkDealInvestorFirms writes one row per listed investor. Unmatched names
// are kept with a null firm so the quarantine sweep and replay can see them.
func linkDealInvestorFirms(ctx context.Context, deps LinkDeps, out *LinkOutput) error {
	if deps.Deal == nil {
		return dgerrors.ErrNotConfigured
	}
	resolver := FirmNameResolver(deps.Firm, deps.Alias)
	return pageAll(ctx, deps.PageSize, deps.Deal.Page, dealID, func(deals []*types.Deal) error {
		perDeal, all := investorRefs(deals, func(d *types.Deal) *string { return d.InvestorNamesRaw })
		if len(all) == 0 {
			return nil
		}
		return inTx(ctx, deps.DB, func(dbc dbctx.Context) error {
			matches, err := resolver.Resolve(dbc, all)
			if err != nil {
				return err
			}
			var rows []*types.DealInvestorFirm
			for _, d := range deals {
				seen := map[uuid.UUID]bool{}
				for _, name := range perDeal[d.ID] {
					row := &types.DealInvestorFirm{
						DealID:              d.ID,
						InvestorFirmNameRaw: name,
						ResolutionMethod:    types.ResolutionUnresolved,
						SourceFile:          d.SourceFile,
					}
					if m, ok := matches[name]; ok {
						// Two spellings of one firm in one deal count once.
						if seen[m.ID] {
							continue
						}
						seen[m.ID] = true
						id := m.ID
						row.InvestorFirmID = &id
						row.ResolutionMethod = m.Method
						row.ConfidenceScore = m.Confidence
					} else {
						out.Unresolved++
					}
					rows = append(rows, row)
				}
			}
			n, err := deps.Link.CreateDealInvestorFirms(dbc, rows)
			out.Linked += n
			return err
		})
	})
}

func linkDealInvestorFunds(ctx context.Context, deps LinkDeps, out *LinkOutput) error {
	if deps.Deal == nil || deps.Fund == nil {
		return dgerrors.ErrNotConfigured
	}
	resolver := FundNameResolver(deps.Fund, deps.Alias)
	return pageAll(ctx, deps.PageSize, deps.Deal.Page, dealID, func(deals []*types.Deal) error {
		perDeal, all := investorRefs(deals, func(d *types.Deal) *string { return d.FundNamesRaw })
		if len(all) == 0 {
			return nil
		}
		return inTx(ctx, deps.DB, func(dbc dbctx.Context) error {
			matches, err := resolver.Resolve(dbc, all)
			if err != nil {
				return err
			}
			var rows []*types.DealInvestorFund
			for _, d := range deals {
				for _, name := range perDeal[d.ID] {
					row := &types.DealInvestorFund{
						DealID:              d.ID,
						InvestorFundNameRaw: name,
						ResolutionMethod:    types.ResolutionUnresolved,
						SourceFile:          d.SourceFile,
					}
					if m, ok := matches[name]; ok {
						id := m.ID
						row.InvestorFundID = &id
						row.ResolutionMethod = m.Method
						row.ConfidenceScore = m.Confidence
					} else {
						out.Unresolved++
					}
					rows = append(rows, row)
				}
			}
			n, err := deps.Link.CreateDealInvestorFunds(dbc, rows)
			out.Linked += n
			return err
		})
	})
}

