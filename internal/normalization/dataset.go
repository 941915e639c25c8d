package normalization

import (
	"strings"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
)

// DetectDataset infers the dataset kind of a sheet from its mapped field
// names, falling back to hints in the sheet or file name. Deals are checked
// first because deal exports also carry fund and firm identifiers.
func DetectDataset(fields []string, hints ...string) string {
	has := make(map[string]bool, len(fields))
	for _, f := range fields {
		has[f] = true
	}
	switch {
	case has["deal_id"]:
		return types.DatasetDeal
	case has["fund_id"]:
		return types.DatasetFund
	case has["contact_id"]:
		return types.DatasetContact
	case has["firm_id"]:
		return types.DatasetFirm
	}
	for _, h := range hints {
		h = strings.ToLower(h)
		switch {
		case strings.Contains(h, "deal"):
			return types.DatasetDeal
		case strings.Contains(h, "fund"):
			return types.DatasetFund
		case strings.Contains(h, "contact"):
			return types.DatasetContact
		case strings.Contains(h, "firm"), strings.Contains(h, "profile"):
			return types.DatasetFirm
		}
	}
	return types.DatasetUnknown
}

// SourceTypeFromFile reports "lp" for limited-partner exports and "gp"
// otherwise.
func SourceTypeFromFile(sourceFile string) string {
	name := strings.ToLower(sourceFile)
	for _, tok := range strings.FieldsFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if tok == "lp" || tok == "lps" {
			return "lp"
		}
	}
	return "gp"
}
