package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const DefaultBatchSize = 1000

type TransformDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Raw        repos.RawRecordRepo
	Normalized repos.NormalizedRepo

	// Fields maps header labels to field names; nil uses the built-in table.
	Fields    *normalization.FieldMapper
	BatchSize int
}

type TransformInput struct {
	// RunID restricts the rebuild to one ingestion run; empty means every run.
	RunID string `json:"run_id,omitempty"`
}

type TransformOutput struct {
	RunID      string         `json:"run_id,omitempty"`
	RawRecords int            `json:"raw_records"`
	Rows       map[string]int `json:"rows"`
	// Skipped counts rows per dataset that lacked a source id or a name.
	Skipped map[string]int `json:"skipped,omitempty"`
	Unknown int            `json:"unknown_dataset"`
}

// Transform rebuilds the normalized tables from raw records.
func Transform(ctx context.Context, deps TransformDeps, in TransformInput) (TransformOutput, error) {
	out := TransformOutput{RunID: in.RunID, Rows: map[string]int{}, Skipped: map[string]int{}}
	if deps.DB == nil || deps.Raw == nil || deps.Normalized == nil {
		return out, fmt.Errorf("transform: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Fields == nil {
		deps.Fields = normalization.DefaultFieldMapper()
	}
	size := deps.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	ctx, span := observability.StartStage(ctx, "transform")
	var stageErr error
	defer func() { observability.EndStage(span, stageErr) }()

	dbc := dbctx.Context{Ctx: ctx}
	if err := deps.Normalized.Reset(dbc); err != nil {
		stageErr = fmt.Errorf("transform: reset: %w", err)
		return out, stageErr
	}

	var samples []string
	err := deps.Raw.ForEachBatch(dbc, in.RunID, size, func(batch []*types.RawRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var b normalizedBatch
		for _, rec := range batch {
			out.RawRecords++
			fields, err := mapFields(deps.Fields, rec.RawData)
			if err != nil {
				out.Skipped[rec.Dataset]++
				samples = appendSample(samples, rowKey(rec))
				continue
			}
			dataset := rec.Dataset
			if dataset == "" || dataset == types.DatasetUnknown {
				dataset = normalization.DetectDataset(fieldKeys(fields), rec.SourceSheet, rec.SourceFile)
			}
			if !b.add(dataset, fields, rec) {
				if dataset == types.DatasetUnknown {
					out.Unknown++
				} else {
					out.Skipped[dataset]++
				}
				samples = appendSample(samples, rowKey(rec))
			}
		}
		return deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := b.write(dbc.WithTx(tx), deps.Normalized); err != nil {
				return err
			}
			out.Rows[types.DatasetFirm] += len(b.firms)
			out.Rows[types.DatasetFund] += len(b.funds)
			out.Rows[types.DatasetContact] += len(b.contacts)
			out.Rows[types.DatasetDeal] += len(b.deals)
			return nil
		})
	})
	if err != nil {
		stageErr = fmt.Errorf("transform: %w", err)
		return out, stageErr
	}

	skipped := out.Unknown
	for _, n := range out.Skipped {
		skipped += n
	}
	if skipped > 0 {
		observability.ReportDataQuality(ctx, deps.Log, "transform", []observability.DataQualityIssue{{
			Issue:   observability.IssueUnparsableRow,
			Key:     "raw_record",
			Count:   skipped,
			Samples: samples,
		}}, map[string]any{"skipped": out.Skipped, "unknown_dataset": out.Unknown})
	}
	deps.Log.Info("transform finished", "run_id", in.RunID, "raw_records", out.RawRecords, "rows", out.Rows, "skipped", skipped)
	return out, nil
}

type fieldSet map[string]string

// mapFields decodes a raw row and renames its keys to field names. When two
// headers map to the same field the first non-empty value is kept.
func mapFields(m *normalization.FieldMapper, raw []byte) (fieldSet, error) {
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	out := make(fieldSet, len(values))
	for k, v := range values {
		s, ok := normalization.CleanString(v)
		if !ok {
			continue
		}
		f := m.FieldName(k)
		if _, seen := out[f]; !seen {
			out[f] = s
		}
	}
	return out, nil
}

func fieldKeys(f fieldSet) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	return keys
}

func (f fieldSet) str(keys ...string) *string {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != "" {
			return &v
		}
	}
	return nil
}

func (f fieldSet) year(key string) *int {
	if y, ok := normalization.ParseYear(f[key]); ok {
		return &y
	}
	return nil
}

func (f fieldSet) date(key string) *time.Time {
	if t, ok := normalization.ParseDate(f[key]); ok {
		return &t
	}
	return nil
}

func (f fieldSet) float(key string) *float64 {
	if v, ok := normalization.ParseFloat(f[key]); ok {
		return &v
	}
	return nil
}

func (f fieldSet) percent(key string) *float64 {
	if v, ok := normalization.ParsePercentage(f[key]); ok {
		return &v
	}
	return nil
}

func (f fieldSet) boolean(key string) *bool {
	if v, ok := normalization.ParseBool(f[key]); ok {
		return &v
	}
	return nil
}

// money reads base, base_mn or base_bn. Denominated columns are scaled to
// units; the raw text of whichever column was used is returned alongside.
func (f fieldSet) money(base string) (*float64, *string) {
	for _, c := range []struct {
		key   string
		scale float64
	}{{base + "_mn", 1e6}, {base + "_bn", 1e9}, {base, 1}} {
		raw, ok := f[c.key]
		if !ok {
			continue
		}
		v, ok := normalization.ParseCurrency(raw)
		if !ok {
			return nil, &raw
		}
		v *= c.scale
		return &v, &raw
	}
	return nil, nil
}

type normalizedBatch struct {
	firms    []*types.NormalizedFirm
	funds    []*types.NormalizedFund
	contacts []*types.NormalizedContact
	deals    []*types.NormalizedDeal
}

// add converts one mapped row. It reports false when the row cannot be used.
func (b *normalizedBatch) add(dataset string, f fieldSet, rec *types.RawRecord) bool {
	prov := types.NormalizedProvenance{
		SourceFile:      rec.SourceFile,
		SourceSheet:     rec.SourceSheet,
		SourceRowNumber: rec.SourceRowNumber,
		RunID:           rec.RunID,
	}
	switch dataset {
	case types.DatasetFirm:
		row := firmRow(f, rec.SourceFile, prov)
		if row == nil {
			return false
		}
		b.firms = append(b.firms, row)
	case types.DatasetFund:
		row := fundRow(f, prov)
		if row == nil {
			return false
		}
		b.funds = append(b.funds, row)
	case types.DatasetContact:
		row := contactRow(f, rec.SourceFile, prov)
		if row == nil {
			return false
		}
		b.contacts = append(b.contacts, row)
	case types.DatasetDeal:
		row := dealRow(f, prov)
		if row == nil {
			return false
		}
		b.deals = append(b.deals, row)
	default:
		return false
	}
	return true
}

func (b *normalizedBatch) write(dbc dbctx.Context, repo repos.NormalizedRepo) error {
	if err := repo.CreateFirms(dbc, b.firms); err != nil {
		return fmt.Errorf("normalized firms: %w", err)
	}
	if err := repo.CreateFunds(dbc, b.funds); err != nil {
		return fmt.Errorf("normalized funds: %w", err)
	}
	if err := repo.CreateContacts(dbc, b.contacts); err != nil {
		return fmt.Errorf("normalized contacts: %w", err)
	}
	if err := repo.CreateDeals(dbc, b.deals); err != nil {
		return fmt.Errorf("normalized deals: %w", err)
	}
	return nil
}

func firmRow(f fieldSet, sourceFile string, prov types.NormalizedProvenance) *types.NormalizedFirm {
	id, name := f.str("firm_id"), f.str("firm_name")
	if id == nil || name == nil {
		return nil
	}
	aum, aumRaw := f.money("aum")
	dry, _ := f.money("dry_powder")
	return &types.NormalizedFirm{
		SourceFirmID:       *id,
		SourceType:         normalization.SourceTypeFromFile(sourceFile),
		FirmName:           *name,
		FirmNameNormalized: normalization.Name(*name),
		FirmType:           f.str("firm_type"),
		InstitutionType:    f.str("institution_type"),
		City:               f.str("city"),
		State:              f.str("state"),
		Country:            f.str("country"),
		Region:             f.str("region"),
		AumUSD:             aum,
		AumRaw:             aumRaw,
		DryPowderUSD:       dry,
		Website:            f.str("website"),
		Description:        f.str("description"),
		YearFounded:        f.year("year_founded"),
		IsListed:           f.boolean("is_listed"),
		Ticker:             f.str("ticker"),
		Provenance:         prov,
	}
}

func fundRow(f fieldSet, prov types.NormalizedProvenance) *types.NormalizedFund {
	id, name := f.str("fund_id"), f.str("fund_name")
	if id == nil || name == nil {
		return nil
	}
	size, sizeRaw := f.money("fund_size")
	target, _ := f.money("target_size")
	return &types.NormalizedFund{
		SourceFundID:       *id,
		FundName:           *name,
		FundNameNormalized: normalization.Name(*name),
		VintageYear:        f.year("vintage_year"),
		// Fund exports carry the manager under the firm columns.
		ManagerFirmName: f.str("manager_name", "firm_name"),
		ManagerFirmID:   f.str("firm_id"),
		FundSizeUSD:     size,
		FundSizeRaw:     sizeRaw,
		TargetSizeUSD:   target,
		Currency:        f.str("currency"),
		Strategy:        f.str("strategy"),
		SubStrategy:     f.str("sub_strategy"),
		AssetClass:      f.str("asset_class"),
		Status:          f.str("status"),
		GeographyFocus:  f.str("geography_focus"),
		SectorFocus:     f.str("sector_focus"),
		DomicileCountry: f.str("domicile_country"),
		IRR:             f.percent("irr"),
		TVPI:            f.float("tvpi"),
		DPI:             f.float("dpi"),
		FirstCloseDate:  f.date("first_close_date"),
		FinalCloseDate:  f.date("final_close_date"),
		Provenance:      prov,
	}
}

func contactRow(f fieldSet, sourceFile string, prov types.NormalizedProvenance) *types.NormalizedContact {
	name := f.str("full_name")
	if name == nil {
		first, last := f.str("first_name"), f.str("last_name")
		joined := strings.TrimSpace(strings.TrimSpace(deref(first)) + " " + strings.TrimSpace(deref(last)))
		if joined != "" {
			name = &joined
		}
	}
	if name == nil {
		return nil
	}
	id := f.str("contact_id")
	if id == nil {
		// Contacts without an id are keyed by their sheet row.
		key := prov.SourceSheet + "#" + strconv.Itoa(prov.SourceRowNumber)
		id = &key
	}
	return &types.NormalizedContact{
		SourceContactID: *id,
		SourceFirmID:    f.str("firm_id"),
		SourceType:      normalization.SourceTypeFromFile(sourceFile),
		FullName:        *name,
		FirstName:       f.str("first_name"),
		LastName:        f.str("last_name"),
		Title:           f.str("title"),
		SeniorityLevel:  f.str("seniority_level"),
		Email:           f.str("email"),
		Phone:           f.str("phone"),
		LinkedinURL:     f.str("linkedin_url"),
		City:            f.str("city"),
		Country:         f.str("country"),
		FirmName:        f.str("firm_name"),
		Provenance:      prov,
	}
}

func dealRow(f fieldSet, prov types.NormalizedProvenance) *types.NormalizedDeal {
	id := f.str("deal_id")
	if id == nil {
		return nil
	}
	value, valueRaw := f.money("deal_size")
	return &types.NormalizedDeal{
		SourceDealID:      *id,
		DealType:          f.str("deal_type"),
		DealDate:          f.date("deal_date"),
		DealValueUSD:      value,
		DealValueRaw:      valueRaw,
		Stage:             f.str("stage"),
		DealStatus:        f.str("deal_status"),
		TargetCompanyName: f.str("company_name"),
		TargetCompanyID:   f.str("company_id"),
		Country:           f.str("company_country", "country"),
		Region:            f.str("company_region", "region"),
		PrimaryIndustry:   f.str("primary_industry"),
		SecondaryIndustry: f.str("secondary_industry"),
		InvestorNamesRaw:  f.str("investor_firms"),
		FundNamesRaw:      f.str("investor_funds"),
		Provenance:        prov,
	}
}

func rowKey(rec *types.RawRecord) string {
	return fmt.Sprintf("%s/%s#%d", rec.SourceFile, rec.SourceSheet, rec.SourceRowNumber)
}

func appendSample(samples []string, s string) []string {
	if len(samples) >= 5 {
		return samples
	}
	return append(samples, s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
