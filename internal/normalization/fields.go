package normalization

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// builtinFields maps lowercased, whitespace-collapsed header labels to field names.
var builtinFields = map[string]string{
	// Identifiers
	"firm id":              "firm_id",
	"firm_id":              "firm_id",
	"firmid":               "firm_id",
	"preqin firm id":       "firm_id",
	"gp id":                "firm_id",
	"lp id":                "firm_id",
	"investor id":          "firm_id",
	"fund id":              "fund_id",
	"fund_id":              "fund_id",
	"preqin fund id":       "fund_id",
	"deal id":              "deal_id",
	"deal_id":              "deal_id",
	"preqin deal id":       "deal_id",
	"contact id":           "contact_id",
	"contact_id":           "contact_id",
	"portfolio company id": "company_id",
	"company id":           "company_id",

	// Firm names
	"firm name":     "firm_name",
	"firm":          "firm_name",
	"investor name": "firm_name",
	"investor":      "firm_name",
	"gp name":       "firm_name",
	"lp name":       "firm_name",
	"manager name":  "manager_name",
	"manager":       "manager_name",
	"fund manager":  "manager_name",

	// Firm attributes
	"firm type":        "firm_type",
	"investor type":    "firm_type",
	"institution type": "institution_type",
	"background":       "description",
	"description":      "description",
	"firm description": "description",
	"website":          "website",
	"web site":         "website",
	"year founded":     "year_founded",
	"year est.":        "year_founded",
	"established":      "year_founded",
	"listed":           "is_listed",
	"is listed":        "is_listed",
	"ticker":           "ticker",
	"ticker symbol":    "ticker",

	// Location
	"city":                 "city",
	"hq city":              "city",
	"headquarters city":    "city",
	"state":                "state",
	"state/county":         "state",
	"state/province":       "state",
	"country":              "country",
	"country/territory":    "country",
	"hq country":           "country",
	"headquarters country": "country",
	"region":               "region",
	"hq region":            "region",
	"headquarters region":  "region",

	// Money (mn-denominated columns are scaled by the transform)
	"aum":                                  "aum",
	"assets under management":              "aum",
	"aum (mn)":                             "aum_mn",
	"aum (usd mn)":                         "aum_mn",
	"aum (bn)":                             "aum_bn",
	"pe: assets under management (usd mn)": "aum_mn",
	"dry powder":                           "dry_powder",
	"dry powder (mn)":                      "dry_powder_mn",
	"dry powder (usd mn)":                  "dry_powder_mn",
	"pe: estimated dry powder (usd mn)":    "dry_powder_mn",

	// Funds
	"fund name":                "fund_name",
	"fund":                     "fund_name",
	"fund series name":         "fund_series_name",
	"vintage":                  "vintage_year",
	"vintage year":             "vintage_year",
	"vintage / inception year": "vintage_year",
	"inception year":           "vintage_year",
	"fund size":                "fund_size",
	"fund size (mn)":           "fund_size_mn",
	"fund size (usd mn)":       "fund_size_mn",
	"target size":              "target_size",
	"target size (mn)":         "target_size_mn",
	"target size (usd mn)":     "target_size_mn",
	"hard cap (usd mn)":        "target_size_mn",
	"currency":                 "currency",
	"fund currency":            "currency",
	"strategy":                 "strategy",
	"fund strategy":            "strategy",
	"sub-strategy":             "sub_strategy",
	"substrategy":              "sub_strategy",
	"sub strategy":             "sub_strategy",
	"asset class":              "asset_class",
	"status":                   "status",
	"fund status":              "status",
	"geographic focus":         "geography_focus",
	"geography focus":          "geography_focus",
	"core industries":          "sector_focus",
	"industry focus":           "sector_focus",
	"sector focus":             "sector_focus",
	"domicile":                 "domicile_country",
	"fund domicile":            "domicile_country",
	"first close date":         "first_close_date",
	"final close date":         "final_close_date",

	// Performance
	"irr":              "irr",
	"net irr":          "irr",
	"net irr (%)":      "irr",
	"tvpi":             "tvpi",
	"net multiple (x)": "tvpi",
	"dpi":              "dpi",
	"dpi (%)":          "dpi",

	// Contacts
	"contact name":  "full_name",
	"full name":     "full_name",
	"first name":    "first_name",
	"last name":     "last_name",
	"job title":     "title",
	"title":         "title",
	"position":      "title",
	"role":          "seniority_level",
	"email":         "email",
	"e-mail":        "email",
	"email address": "email",
	"tel":           "phone",
	"phone":         "phone",
	"telephone":     "phone",
	"linkedin":      "linkedin_url",
	"linkedin url":  "linkedin_url",

	// Deals
	"deal type":                  "deal_type",
	"investment type":            "deal_type",
	"deal date":                  "deal_date",
	"announced date":             "deal_date",
	"deal value":                 "deal_size",
	"deal size":                  "deal_size",
	"deal value (mn)":            "deal_size_mn",
	"deal size (mn)":             "deal_size_mn",
	"deal size (usd mn)":         "deal_size_mn",
	"deal size (curr. mn)":       "deal_size_mn",
	"stage":                      "stage",
	"deal stage":                 "stage",
	"deal status":                "deal_status",
	"industry":                   "primary_industry",
	"sector":                     "primary_industry",
	"primary industry":           "primary_industry",
	"secondary industry":         "secondary_industry",
	"industry verticals":         "secondary_industry",
	"company":                    "company_name",
	"company name":               "company_name",
	"portfolio company":          "company_name",
	"target company":             "company_name",
	"portfolio company country":  "company_country",
	"portfolio company region":   "company_region",
	"investors / buyers (firms)": "investor_firms",
	"investors":                  "investor_firms",
	"investor firms":             "investor_firms",
	"investors / buyers (funds)": "investor_funds",
	"investor funds":             "investor_funds",
}

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	nonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
	defaultMap = &FieldMapper{table: builtinFields}
)

// FieldMapper maps raw header labels to field names. The zero value is unusable;
// use DefaultFieldMapper or LoadFieldMapper.
type FieldMapper struct {
	table map[string]string
}

// DefaultFieldMapper returns the mapper backed by the built-in synonym table.
func DefaultFieldMapper() *FieldMapper { return defaultMap }

// NewFieldMapper layers overlay on top of the built-in table. Overlay keys are
// header labels in any case.
func NewFieldMapper(overlay map[string]string) *FieldMapper {
	if len(overlay) == 0 {
		return defaultMap
	}
	table := make(map[string]string, len(builtinFields)+len(overlay))
	for k, v := range builtinFields {
		table[k] = v
	}
	for k, v := range overlay {
		key := headerKey(k)
		v = strings.TrimSpace(v)
		if key == "" || v == "" {
			continue
		}
		table[key] = v
	}
	return &FieldMapper{table: table}
}

// LoadFieldMapper reads a YAML document of `header: field` pairs. An empty path
// returns the default mapper.
func LoadFieldMapper(path string) (*FieldMapper, error) {
	if strings.TrimSpace(path) == "" {
		return defaultMap, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms %s: %w", path, err)
	}
	var overlay map[string]string
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return nil, fmt.Errorf("parse synonyms %s: %w", path, err)
	}
	return NewFieldMapper(overlay), nil
}

// FieldName resolves raw through the synonym table, then falls back to a slug.
func (m *FieldMapper) FieldName(raw string) string {
	key := headerKey(raw)
	if f, ok := m.table[key]; ok {
		return f
	}
	return Slug(key)
}

// FieldName resolves raw with the built-in table.
func FieldName(raw string) string { return defaultMap.FieldName(raw) }

// Slug lowercases s and replaces every run of non-alphanumerics with one
// underscore. It never returns the empty string.
func Slug(s string) string {
	out := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if out == "" {
		return "unknown"
	}
	return out
}

func headerKey(raw string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(strings.ToLower(raw), " "))
}
