package steps

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

// Confidence assigned to links resolved by exact normalized name and to deal
// target companies.
const (
	ExactNameConfidence     = 0.90
	TargetCompanyConfidence = 0.95
)

var listSeparators = strings.NewReplacer("|", ";", "\r\n", ";", "\n", ";", "\r", ";")

// SplitInvestorNames splits a raw investor list on ';', '|' and newlines.
// Commas are never separators since they occur inside firm names. Entries
// that are only a legal suffix, an article or a placeholder are dropped, as
// are repeats.
func SplitInvestorNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(listSeparators.Replace(raw), ";")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || normalization.IsNoiseToken(p) || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Match is the outcome of resolving one name to a canonical id.
type Match struct {
	ID         uuid.UUID
	Method     string
	Confidence float64
}

// Resolved reports whether the name was matched.
func (m Match) Resolved() bool { return m.ID != uuid.Nil }

// NameResolver looks names up by exact normalized name, then by alias.
type NameResolver struct {
	Exact func(dbc dbctx.Context, names []string) (map[string]uuid.UUID, error)
	Alias func(dbc dbctx.Context, names []string) (map[string]repos.AliasMatch, error)
}

// FirmNameResolver resolves against firm names and firm aliases.
func FirmNameResolver(firms repos.FirmRepo, aliases repos.AliasRepo) NameResolver {
	r := NameResolver{Exact: firms.IDsByNormalizedNames}
	if aliases != nil {
		r.Alias = aliases.MatchFirms
	}
	return r
}

// FundNameResolver resolves against fund names and fund aliases.
func FundNameResolver(funds repos.FundRepo, aliases repos.AliasRepo) NameResolver {
	r := NameResolver{Exact: funds.IDsByNormalizedNames}
	if aliases != nil {
		r.Alias = aliases.MatchFunds
	}
	return r
}

// Resolve maps each raw name to its match. Names that normalize to nothing or
// match nothing are absent from the result.
func (r NameResolver) Resolve(dbc dbctx.Context, raw []string) (map[string]Match, error) {
	out := make(map[string]Match, len(raw))
	normByRaw := make(map[string]string, len(raw))
	var norms []string
	for _, s := range raw {
		n := normalization.Name(s)
		if n == "" {
			continue
		}
		normByRaw[s] = n
		norms = append(norms, n)
	}
	if len(norms) == 0 {
		return out, nil
	}
	exact, err := r.Exact(dbc, norms)
	if err != nil {
		return nil, err
	}
	var missing []string
	for s, n := range normByRaw {
		if id, ok := exact[n]; ok {
			out[s] = Match{ID: id, Method: types.ResolutionExact, Confidence: ExactNameConfidence}
		} else {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 || r.Alias == nil {
		return out, nil
	}
	aliases, err := r.Alias(dbc, missing)
	if err != nil {
		return nil, err
	}
	for s, n := range normByRaw {
		if _, done := out[s]; done {
			continue
		}
		if a, ok := aliases[n]; ok {
			out[s] = Match{ID: a.CanonicalID, Method: types.ResolutionAlias, Confidence: a.ConfidenceScore}
		}
	}
	return out, nil
}
