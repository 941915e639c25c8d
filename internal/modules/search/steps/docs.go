package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/rediscache"
)

const (
	DefaultDocPage = 500

	// CacheNamespace holds cached search answers; doc and embedding runs invalidate it.
	CacheNamespace = "search"
)

// AllKinds lists every entity type that gets a search document.
var AllKinds = []string{types.KindFirm, types.KindFund, types.KindCompany, types.KindDeal, types.KindPerson}

type DocsDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Doc     repos.EntityDocRepo
	Firm    repos.FirmRepo
	Fund    repos.FundRepo
	Company repos.CompanyRepo
	Deal    repos.DealRepo
	Person  repos.PersonRepo

	Cache rediscache.Cache

	PageSize int
}

type DocsInput struct {
	Kinds []string `json:"kinds,omitempty"`
	RunID string   `json:"run_id,omitempty"`
}

type DocsOutput struct {
	Counts map[string]int `json:"counts"`
}

// GenerateDocs rebuilds the search document of every entity of the requested
// kinds. Each page is upserted in its own transaction.
func GenerateDocs(ctx context.Context, deps DocsDeps, in DocsInput) (DocsOutput, error) {
	out := DocsOutput{Counts: map[string]int{}}
	if deps.DB == nil || deps.Doc == nil || deps.Firm == nil || deps.Fund == nil ||
		deps.Company == nil || deps.Deal == nil || deps.Person == nil {
		return out, fmt.Errorf("generate docs: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.PageSize <= 0 {
		deps.PageSize = DefaultDocPage
	}
	kinds, err := resolveKinds(in.Kinds, AllKinds)
	if err != nil {
		return out, err
	}

	ctx, span := observability.StartStage(ctx, "generate_docs")
	defer func() { observability.EndStage(span, err) }()

	for _, kind := range kinds {
		n, kerr := generateKind(ctx, deps, kind, in.RunID)
		out.Counts[kind] = n
		if kerr != nil {
			err = fmt.Errorf("generate docs %s: %w", kind, kerr)
			return out, err
		}
		deps.Log.Info("entity documents generated", "entity_type", kind, "count", n)
	}
	if deps.Cache != nil {
		if cerr := deps.Cache.Invalidate(ctx, CacheNamespace); cerr != nil {
			deps.Log.Warn("search cache invalidation failed", "error", cerr)
		}
	}
	return out, nil
}

func resolveKinds(requested, fallback []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), fallback...), nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(requested))
	for _, k := range requested {
		k = strings.ToLower(strings.TrimSpace(k))
		if !isKind(k) {
			return nil, fmt.Errorf("unknown entity type %q: %w", k, dgerrors.ErrInvalidArgument)
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

func isKind(k string) bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// generateKind pages one entity table by id and upserts the built docs.
func generateKind(ctx context.Context, deps DocsDeps, kind, runID string) (int, error) {
	total := 0
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		dbc := dbctx.Context{Ctx: ctx}
		docs, last, err := buildPage(dbc, deps, kind, after)
		if err != nil {
			return total, err
		}
		if last == uuid.Nil {
			return total, nil
		}
		if len(docs) > 0 {
			for _, d := range docs {
				if runID != "" {
					id := runID
					d.RunID = &id
				}
			}
			err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				_, err := deps.Doc.Upsert(dbctx.Context{Ctx: ctx, Tx: tx}, docs)
				return err
			})
			if err != nil {
				return total, err
			}
			total += len(docs)
		}
		after = last
	}
}

// buildPage returns the docs of the next page and the last id seen, which is
// uuid.Nil once the table is exhausted.
func buildPage(dbc dbctx.Context, deps DocsDeps, kind string, after uuid.UUID) ([]*types.EntityDoc, uuid.UUID, error) {
	switch kind {
	case types.KindFirm:
		rows, err := deps.Firm.Page(dbc, after, deps.PageSize)
		if err != nil || len(rows) == 0 {
			return nil, uuid.Nil, err
		}
		docs := make([]*types.EntityDoc, 0, len(rows))
		for _, f := range rows {
			docs = append(docs, FirmDoc(f))
		}
		return docs, rows[len(rows)-1].ID, nil
	case types.KindFund:
		rows, err := deps.Fund.Page(dbc, after, deps.PageSize)
		if err != nil || len(rows) == 0 {
			return nil, uuid.Nil, err
		}
		managers, err := managerNames(dbc, deps.Firm, rows)
		if err != nil {
			return nil, uuid.Nil, err
		}
		docs := make([]*types.EntityDoc, 0, len(rows))
		for _, f := range rows {
			docs = append(docs, FundDoc(f, managers[f.ID]))
		}
		return docs, rows[len(rows)-1].ID, nil
	case types.KindCompany:
		rows, err := deps.Company.Page(dbc, after, deps.PageSize)
		if err != nil || len(rows) == 0 {
			return nil, uuid.Nil, err
		}
		docs := make([]*types.EntityDoc, 0, len(rows))
		for _, c := range rows {
			docs = append(docs, CompanyDoc(c))
		}
		return docs, rows[len(rows)-1].ID, nil
	case types.KindDeal:
		rows, err := deps.Deal.Page(dbc, after, deps.PageSize)
		if err != nil || len(rows) == 0 {
			return nil, uuid.Nil, err
		}
		targets, err := targetNames(dbc, deps.Company, rows)
		if err != nil {
			return nil, uuid.Nil, err
		}
		docs := make([]*types.EntityDoc, 0, len(rows))
		for _, d := range rows {
			docs = append(docs, DealDoc(d, targets[d.ID]))
		}
		return docs, rows[len(rows)-1].ID, nil
	case types.KindPerson:
		rows, err := deps.Person.Page(dbc, after, deps.PageSize)
		if err != nil || len(rows) == 0 {
			return nil, uuid.Nil, err
		}
		docs := make([]*types.EntityDoc, 0, len(rows))
		for _, p := range rows {
			docs = append(docs, PersonDoc(p))
		}
		return docs, rows[len(rows)-1].ID, nil
	}
	return nil, uuid.Nil, fmt.Errorf("unknown entity type %q: %w", kind, dgerrors.ErrInvalidArgument)
}

// managerNames prefers the linked managing firm's name over the sourced one.
func managerNames(dbc dbctx.Context, firms repos.FirmRepo, funds []*types.Fund) (map[uuid.UUID]string, error) {
	var ids []uuid.UUID
	for _, f := range funds {
		if f.ManagingFirmID != nil {
			ids = append(ids, *f.ManagingFirmID)
		}
	}
	byID := map[uuid.UUID]string{}
	if len(ids) > 0 {
		rows, err := firms.GetByIDs(dbc, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			byID[r.ID] = r.Name
		}
	}
	out := make(map[uuid.UUID]string, len(funds))
	for _, f := range funds {
		if f.ManagingFirmID != nil && byID[*f.ManagingFirmID] != "" {
			out[f.ID] = byID[*f.ManagingFirmID]
		} else {
			out[f.ID] = deref(f.ManagerFirmName)
		}
	}
	return out, nil
}

func targetNames(dbc dbctx.Context, companies repos.CompanyRepo, deals []*types.Deal) (map[uuid.UUID]string, error) {
	var ids []uuid.UUID
	for _, d := range deals {
		if d.TargetCompanyID != nil {
			ids = append(ids, *d.TargetCompanyID)
		}
	}
	byID := map[uuid.UUID]string{}
	if len(ids) > 0 {
		rows, err := companies.GetByIDs(dbc, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			byID[r.ID] = r.Name
		}
	}
	out := make(map[uuid.UUID]string, len(deals))
	for _, d := range deals {
		if d.TargetCompanyID != nil && byID[*d.TargetCompanyID] != "" {
			out[d.ID] = byID[*d.TargetCompanyID]
		} else {
			out[d.ID] = deref(d.TargetCompanyName)
		}
	}
	return out, nil
}

func FirmDoc(f *types.Firm) *types.EntityDoc {
	parts := []string{f.Name, deref(f.FirmType), deref(f.InstitutionType),
		joinNonEmpty(", ", deref(f.HeadquartersCity), deref(f.HeadquartersCountry)),
		deref(f.HeadquartersRegion)}
	if f.AumUSD != nil {
		parts = append(parts, "AUM "+billions(*f.AumUSD))
	}
	parts = append(parts, deref(f.Description))
	return newDoc(types.KindFirm, f.ID, f.Name, parts, map[string]any{
		"firm_type":        nullable(f.FirmType),
		"institution_type": nullable(f.InstitutionType),
		"country":          nullable(f.HeadquartersCountry),
		"aum_usd":          nullableFloat(f.AumUSD),
	})
}

func FundDoc(f *types.Fund, manager string) *types.EntityDoc {
	parts := []string{f.Name, deref(f.Strategy), deref(f.SubStrategy)}
	if f.VintageYear != nil {
		parts = append(parts, "vintage "+strconv.Itoa(*f.VintageYear))
	}
	parts = append(parts, manager)
	if f.FundSizeUSD != nil {
		parts = append(parts, "size "+billions(*f.FundSizeUSD))
	}
	parts = append(parts, deref(f.GeographyFocus))
	meta := map[string]any{
		"strategy":      nullable(f.Strategy),
		"vintage_year":  nil,
		"fund_size_usd": nullableFloat(f.FundSizeUSD),
		"manager_name":  nil,
	}
	if f.VintageYear != nil {
		meta["vintage_year"] = *f.VintageYear
	}
	if manager != "" {
		meta["manager_name"] = manager
	}
	return newDoc(types.KindFund, f.ID, f.Name, parts, meta)
}

func CompanyDoc(c *types.Company) *types.EntityDoc {
	parts := []string{c.Name, deref(c.PrimaryIndustry), deref(c.SecondaryIndustry),
		joinNonEmpty(", ", deref(c.City), deref(c.Country)), deref(c.Region), deref(c.Description)}
	return newDoc(types.KindCompany, c.ID, c.Name, parts, map[string]any{
		"industry": nullable(c.PrimaryIndustry),
		"country":  nullable(c.Country),
		"region":   nullable(c.Region),
	})
}

func DealDoc(d *types.Deal, target string) *types.EntityDoc {
	title := target
	if title == "" {
		title = "Deal " + d.SourceID
	}
	parts := []string{title, deref(d.DealType), deref(d.Stage), deref(d.PrimaryIndustry),
		joinNonEmpty(", ", deref(d.Country), deref(d.Region))}
	var date any
	if d.DealDate != nil {
		date = d.DealDate.Format("2006-01-02")
		parts = append(parts, date.(string))
	}
	if d.DealValueUSD != nil {
		parts = append(parts, "value "+billions(*d.DealValueUSD))
	}
	parts = append(parts, deref(d.InvestorNamesRaw))
	return newDoc(types.KindDeal, d.ID, title, parts, map[string]any{
		"deal_type": nullable(d.DealType),
		"deal_date": date,
		"country":   nullable(d.Country),
	})
}

func PersonDoc(p *types.Person) *types.EntityDoc {
	parts := []string{p.FullName, deref(p.Title), deref(p.SeniorityLevel), deref(p.FirmName),
		joinNonEmpty(", ", deref(p.LocationCity), deref(p.LocationCountry))}
	return newDoc(types.KindPerson, p.ID, p.FullName, parts, map[string]any{
		"title":     nullable(p.Title),
		"firm_name": nullable(p.FirmName),
		"country":   nullable(p.LocationCountry),
	})
}

func newDoc(kind string, id uuid.UUID, title string, parts []string, meta map[string]any) *types.EntityDoc {
	raw, _ := json.Marshal(meta)
	return &types.EntityDoc{
		EntityType: kind,
		EntityID:   id,
		Title:      title,
		DocText:    joinNonEmpty(" | ", parts...),
		Metadata:   datatypes.JSON(raw),
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// billions renders a USD amount as "1.25 billion" or "350.0 million".
func billions(v float64) string {
	if v >= 1e9 {
		return strconv.FormatFloat(v/1e9, 'f', 2, 64) + " billion"
	}
	return strconv.FormatFloat(v/1e6, 'f', 1, 64) + " million"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
