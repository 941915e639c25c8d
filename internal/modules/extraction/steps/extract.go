package steps

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// ExtractKinds is the order RunAll extracts in.
var ExtractKinds = []string{types.KindFirm, types.KindFund, types.KindPerson, types.KindCompany, types.KindDeal}

type ExtractDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Normalized repos.NormalizedRepo
	Firm       repos.FirmRepo
	Fund       repos.FundRepo
	Person     repos.PersonRepo
	Company    repos.CompanyRepo
	Deal       repos.DealRepo

	// GroupPage is the number of source ids merged per transaction.
	GroupPage int
}

type ExtractInput struct {
	Kind string `json:"kind"`
}

type ExtractOutput struct {
	Kind      string `json:"kind"`
	Extracted int64  `json:"rows_extracted"`
	Entities  int    `json:"entities"`
	// DuplicateSourceIDs counts source ids that appeared on more than one row.
	DuplicateSourceIDs int `json:"duplicate_source_ids"`
}

// Extract folds normalized rows into canonical entities of one kind.
func Extract(ctx context.Context, deps ExtractDeps, in ExtractInput) (ExtractOutput, error) {
	out := ExtractOutput{Kind: in.Kind}
	if deps.DB == nil || deps.Normalized == nil {
		return out, fmt.Errorf("extract: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.GroupPage <= 0 {
		deps.GroupPage = DefaultBatchSize
	}

	ctx, span := observability.StartStage(ctx, "extract_"+in.Kind)
	var err error
	defer func() { observability.EndStage(span, err) }()

	dups := &duplicates{}
	switch in.Kind {
	case types.KindFirm:
		err = extractFirms(ctx, deps, &out, dups)
	case types.KindFund:
		err = extractFunds(ctx, deps, &out, dups)
	case types.KindPerson:
		err = extractPersons(ctx, deps, &out, dups)
	case types.KindCompany:
		err = extractCompanies(ctx, deps, &out)
	case types.KindDeal:
		err = extractDeals(ctx, deps, &out, dups)
	default:
		err = fmt.Errorf("extract: unknown kind %q: %w", in.Kind, dgerrors.ErrInvalidArgument)
		return out, err
	}
	if err != nil {
		err = fmt.Errorf("extract %s: %w", in.Kind, err)
		return out, err
	}

	out.DuplicateSourceIDs = dups.count
	if dups.count > 0 {
		observability.ReportDataQuality(ctx, deps.Log, "extract", []observability.DataQualityIssue{{
			Issue:   observability.IssueDuplicateSourceID,
			Key:     in.Kind,
			Count:   dups.count,
			Samples: dups.samples,
		}}, map[string]any{"kind": in.Kind})
	}
	deps.Log.Info("extract finished", "kind", in.Kind, "entities", out.Entities, "rows_extracted", out.Extracted, "duplicate_source_ids", dups.count)
	return out, nil
}

type duplicates struct {
	count   int
	samples []string
}

func (d *duplicates) observe(sourceID string, rows int) {
	if rows <= 1 {
		return
	}
	d.count++
	d.samples = appendSample(d.samples, fmt.Sprintf("%s (%d rows)", sourceID, rows))
}

// forEachGroup pages normalized rows and hands each source id's rows, in row
// order, to fn. Rows of one id always arrive in the same page.
func forEachGroup[T any](
	ctx context.Context,
	page func(dbc dbctx.Context, after string, limit int) ([]*T, string, error),
	key func(*T) string,
	limit int,
	fn func(groups [][]*T) error,
) error {
	dbc := dbctx.Context{Ctx: ctx}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, last, err := page(dbc, after, limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 || last == "" {
			return nil
		}
		var groups [][]*T
		for i := 0; i < len(rows); {
			j := i + 1
			for j < len(rows) && key(rows[j]) == key(rows[i]) {
				j++
			}
			groups = append(groups, rows[i:j])
			i = j
		}
		if err := fn(groups); err != nil {
			return err
		}
		after = last
	}
}

// later overwrites dst with src when src is present.
func later[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func laterString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func provenanceOf(p types.NormalizedProvenance) types.Provenance {
	row := p.SourceRowNumber
	out := types.Provenance{SourceRowNumber: &row}
	if p.SourceFile != "" {
		f := p.SourceFile
		out.SourceFile = &f
	}
	if p.SourceSheet != "" {
		s := p.SourceSheet
		out.SourceSheet = &s
	}
	if p.RunID != "" {
		r := p.RunID
		out.RunID = &r
	}
	return out
}

func extractFirms(ctx context.Context, deps ExtractDeps, out *ExtractOutput, dups *duplicates) error {
	if deps.Firm == nil {
		return dgerrors.ErrNotConfigured
	}
	return forEachGroup(ctx, deps.Normalized.FirmGroups,
		func(r *types.NormalizedFirm) string { return r.SourceFirmID },
		deps.GroupPage,
		func(groups [][]*types.NormalizedFirm) error {
			rows := make([]*types.Firm, 0, len(groups))
			for _, g := range groups {
				dups.observe(g[0].SourceFirmID, len(g))
				rows = append(rows, mergeFirm(g))
			}
			return upsertInTx(ctx, deps.DB, out, len(rows), func(dbc dbctx.Context) (int64, error) {
				return deps.Firm.Upsert(dbc, rows)
			})
		})
}

// mergeFirm folds rows ordered by source row: later non-null values win and
// earlier values survive where later rows are null.
func mergeFirm(g []*types.NormalizedFirm) *types.Firm {
	first := g[0]
	f := &types.Firm{
		SourceSystem: types.DefaultSourceSystem,
		SourceID:     first.SourceFirmID,
	}
	sourceType := ""
	for _, r := range g {
		laterString(&f.Name, r.FirmName)
		laterString(&f.NameNormalized, r.FirmNameNormalized)
		laterString(&sourceType, r.SourceType)
		later(&f.FirmType, r.FirmType)
		later(&f.InstitutionType, r.InstitutionType)
		later(&f.HeadquartersCity, r.City)
		later(&f.HeadquartersState, r.State)
		later(&f.HeadquartersCountry, r.Country)
		later(&f.HeadquartersRegion, r.Region)
		later(&f.AumUSD, r.AumUSD)
		later(&f.AumRaw, r.AumRaw)
		later(&f.DryPowderUSD, r.DryPowderUSD)
		later(&f.Website, r.Website)
		later(&f.Description, r.Description)
		later(&f.YearFounded, r.YearFounded)
		later(&f.IsListed, r.IsListed)
		later(&f.Ticker, r.Ticker)
		f.Provenance = provenanceOf(r.Provenance)
	}
	switch {
	case sourceType == "lp":
		t := "LP"
		f.FirmType = &t
	case f.FirmType == nil:
		t := "GP"
		f.FirmType = &t
	}
	return f
}

func extractFunds(ctx context.Context, deps ExtractDeps, out *ExtractOutput, dups *duplicates) error {
	if deps.Fund == nil {
		return dgerrors.ErrNotConfigured
	}
	return forEachGroup(ctx, deps.Normalized.FundGroups,
		func(r *types.NormalizedFund) string { return r.SourceFundID },
		deps.GroupPage,
		func(groups [][]*types.NormalizedFund) error {
			rows := make([]*types.Fund, 0, len(groups))
			for _, g := range groups {
				dups.observe(g[0].SourceFundID, len(g))
				rows = append(rows, mergeFund(g))
			}
			return upsertInTx(ctx, deps.DB, out, len(rows), func(dbc dbctx.Context) (int64, error) {
				return deps.Fund.Upsert(dbc, rows)
			})
		})
}

func mergeFund(g []*types.NormalizedFund) *types.Fund {
	f := &types.Fund{
		SourceSystem: types.DefaultSourceSystem,
		SourceID:     g[0].SourceFundID,
	}
	for _, r := range g {
		laterString(&f.Name, r.FundName)
		laterString(&f.NameNormalized, r.FundNameNormalized)
		later(&f.ManagerFirmSourceID, r.ManagerFirmID)
		later(&f.ManagerFirmName, r.ManagerFirmName)
		later(&f.VintageYear, r.VintageYear)
		later(&f.FundSizeUSD, r.FundSizeUSD)
		later(&f.FundSizeRaw, r.FundSizeRaw)
		later(&f.TargetSizeUSD, r.TargetSizeUSD)
		later(&f.Currency, r.Currency)
		later(&f.Strategy, r.Strategy)
		later(&f.SubStrategy, r.SubStrategy)
		later(&f.AssetClass, r.AssetClass)
		later(&f.Status, r.Status)
		later(&f.DomicileCountry, r.DomicileCountry)
		later(&f.GeographyFocus, r.GeographyFocus)
		later(&f.SectorFocus, r.SectorFocus)
		later(&f.FirstCloseDate, r.FirstCloseDate)
		later(&f.FinalCloseDate, r.FinalCloseDate)
		later(&f.IRR, r.IRR)
		later(&f.TVPI, r.TVPI)
		later(&f.DPI, r.DPI)
		f.Provenance = provenanceOf(r.Provenance)
	}
	return f
}

func extractPersons(ctx context.Context, deps ExtractDeps, out *ExtractOutput, dups *duplicates) error {
	if deps.Person == nil {
		return dgerrors.ErrNotConfigured
	}
	return forEachGroup(ctx, deps.Normalized.ContactGroups,
		func(r *types.NormalizedContact) string { return r.SourceContactID },
		deps.GroupPage,
		func(groups [][]*types.NormalizedContact) error {
			rows := make([]*types.Person, 0, len(groups))
			for _, g := range groups {
				dups.observe(g[0].SourceContactID, len(g))
				rows = append(rows, mergePerson(g))
			}
			return upsertInTx(ctx, deps.DB, out, len(rows), func(dbc dbctx.Context) (int64, error) {
				return deps.Person.Upsert(dbc, rows)
			})
		})
}

func mergePerson(g []*types.NormalizedContact) *types.Person {
	p := &types.Person{
		SourceSystem: types.DefaultSourceSystem,
		SourceID:     g[0].SourceContactID,
	}
	for _, r := range g {
		laterString(&p.FullName, r.FullName)
		later(&p.FirstName, r.FirstName)
		later(&p.LastName, r.LastName)
		later(&p.Email, r.Email)
		later(&p.Phone, r.Phone)
		later(&p.LinkedinURL, r.LinkedinURL)
		later(&p.Title, r.Title)
		later(&p.SeniorityLevel, r.SeniorityLevel)
		later(&p.LocationCity, r.City)
		later(&p.LocationCountry, r.Country)
		later(&p.FirmSourceID, r.SourceFirmID)
		later(&p.FirmName, r.FirmName)
		p.Provenance = provenanceOf(r.Provenance)
	}
	p.NameNormalized = normalization.Name(p.FullName)
	return p
}

func extractDeals(ctx context.Context, deps ExtractDeps, out *ExtractOutput, dups *duplicates) error {
	if deps.Deal == nil {
		return dgerrors.ErrNotConfigured
	}
	return forEachGroup(ctx, deps.Normalized.DealGroups,
		func(r *types.NormalizedDeal) string { return r.SourceDealID },
		deps.GroupPage,
		func(groups [][]*types.NormalizedDeal) error {
			rows := make([]*types.Deal, 0, len(groups))
			for _, g := range groups {
				dups.observe(g[0].SourceDealID, len(g))
				rows = append(rows, mergeDeal(g))
			}
			return upsertInTx(ctx, deps.DB, out, len(rows), func(dbc dbctx.Context) (int64, error) {
				return deps.Deal.Upsert(dbc, rows)
			})
		})
}

func mergeDeal(g []*types.NormalizedDeal) *types.Deal {
	d := &types.Deal{
		SourceSystem: types.DefaultSourceSystem,
		SourceID:     g[0].SourceDealID,
	}
	var targetID *string
	for _, r := range g {
		later(&d.TargetCompanyName, r.TargetCompanyName)
		later(&targetID, r.TargetCompanyID)
		later(&d.DealType, r.DealType)
		later(&d.DealDate, r.DealDate)
		later(&d.DealValueUSD, r.DealValueUSD)
		later(&d.DealValueRaw, r.DealValueRaw)
		later(&d.Stage, r.Stage)
		later(&d.DealStatus, r.DealStatus)
		later(&d.PrimaryIndustry, r.PrimaryIndustry)
		later(&d.SecondaryIndustry, r.SecondaryIndustry)
		later(&d.Country, r.Country)
		later(&d.Region, r.Region)
		later(&d.InvestorNamesRaw, r.InvestorNamesRaw)
		later(&d.FundNamesRaw, r.FundNamesRaw)
		d.Provenance = provenanceOf(r.Provenance)
	}
	if key := CompanySourceID(targetID, d.TargetCompanyName); key != "" {
		d.TargetCompanySourceID = &key
	}
	return d
}

// CompanySourceID keys a deal target: the sourced company id when present,
// otherwise the md5 of the normalized company name.
func CompanySourceID(id, name *string) string {
	if id != nil && *id != "" {
		return *id
	}
	if name == nil {
		return ""
	}
	n := normalization.Name(*name)
	if n == "" {
		return ""
	}
	sum := md5.Sum([]byte(n))
	return hex.EncodeToString(sum[:])
}

// extractCompanies derives companies from deal targets. Every deal row of a
// target contributes in row order, so the latest non-null attributes win.
func extractCompanies(ctx context.Context, deps ExtractDeps, out *ExtractOutput) error {
	if deps.Company == nil {
		return dgerrors.ErrNotConfigured
	}
	byKey := map[string]*types.Company{}
	// A company seen once with an id keeps that id for id-less mentions.
	idByName := map[string]string{}
	var pending []*types.NormalizedDeal

	err := forEachGroup(ctx, deps.Normalized.DealGroups,
		func(r *types.NormalizedDeal) string { return r.SourceDealID },
		deps.GroupPage,
		func(groups [][]*types.NormalizedDeal) error {
			for _, g := range groups {
				for _, r := range g {
					if r.TargetCompanyName == nil || normalization.Name(*r.TargetCompanyName) == "" {
						continue
					}
					if r.TargetCompanyID != nil && *r.TargetCompanyID != "" {
						idByName[normalization.Name(*r.TargetCompanyName)] = *r.TargetCompanyID
					}
					pending = append(pending, r)
				}
			}
			return nil
		})
	if err != nil {
		return err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].SourceRowNumber < pending[j].SourceRowNumber
	})
	for _, r := range pending {
		name := normalization.Name(*r.TargetCompanyName)
		id := r.TargetCompanyID
		if id == nil {
			if known, ok := idByName[name]; ok {
				id = &known
			}
		}
		key := CompanySourceID(id, r.TargetCompanyName)
		c, ok := byKey[key]
		if !ok {
			c = &types.Company{
				SourceSystem:   types.DefaultSourceSystem,
				SourceID:       key,
				Name:           *r.TargetCompanyName,
				NameNormalized: name,
			}
			byKey[key] = c
		}
		laterString(&c.Name, *r.TargetCompanyName)
		later(&c.Country, r.Country)
		later(&c.Region, r.Region)
		later(&c.PrimaryIndustry, r.PrimaryIndustry)
		later(&c.SecondaryIndustry, r.SecondaryIndustry)
		c.Provenance = provenanceOf(r.Provenance)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for start := 0; start < len(keys); start += deps.GroupPage {
		end := start + deps.GroupPage
		if end > len(keys) {
			end = len(keys)
		}
		rows := make([]*types.Company, 0, end-start)
		for _, k := range keys[start:end] {
			rows = append(rows, byKey[k])
		}
		if err := upsertInTx(ctx, deps.DB, out, len(rows), func(dbc dbctx.Context) (int64, error) {
			return deps.Company.Upsert(dbc, rows)
		}); err != nil {
			return err
		}
	}
	return nil
}

func upsertInTx(ctx context.Context, db *gorm.DB, out *ExtractOutput, entities int, fn func(dbc dbctx.Context) (int64, error)) error {
	if entities == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := fn(dbctx.Context{Ctx: ctx, Tx: tx})
		if err != nil {
			return err
		}
		out.Extracted += n
		out.Entities += entities
		return nil
	})
}
