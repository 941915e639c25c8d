package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	linking "github.com/yungbote/dealgraph-backend/internal/modules/extraction/steps"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type ReplayDeps struct {
	Log *logger.Logger

	Quarantine repos.QuarantineRepo
	Link       repos.LinkRepo
	Firm       repos.FirmRepo
	Alias      repos.AliasRepo

	PageSize int
}

type ReplayOutput struct {
	Attempted       int `json:"attempted"`
	Resolved        int `json:"resolved"`
	StillUnresolved int `json:"still_unresolved"`
	// Duplicates are names that now resolve to a firm the deal already lists.
	Duplicates int `json:"duplicates"`
}

// Replay re-resolves unresolved investor rows against the current firms and
// aliases. Newly resolved rows close their quarantine entry.
func Replay(ctx context.Context, deps ReplayDeps) (ReplayOutput, error) {
	out := ReplayOutput{}
	if deps.Quarantine == nil || deps.Link == nil || deps.Firm == nil {
		return out, fmt.Errorf("quarantine replay: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.PageSize <= 0 {
		deps.PageSize = DefaultPageSize
	}
	resolver := linking.FirmNameResolver(deps.Firm, deps.Alias)
	dbc := dbctx.Context{Ctx: ctx}

	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rows, err := deps.Link.PageUnresolvedInvestorFirms(dbc, after, deps.PageSize)
		if err != nil {
			return out, fmt.Errorf("quarantine replay: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		after = rows[len(rows)-1].ID

		names := make([]string, 0, len(rows))
		for _, r := range rows {
			names = append(names, r.InvestorFirmNameRaw)
		}
		matches, err := resolver.Resolve(dbc, names)
		if err != nil {
			return out, fmt.Errorf("quarantine replay: %w", err)
		}
		// Each row is updated on its own: a unique violation on one row must
		// not abort the others.
		for _, r := range rows {
			out.Attempted++
			m, ok := matches[r.InvestorFirmNameRaw]
			if !ok {
				out.StillUnresolved++
				continue
			}
			changed, err := deps.Link.ResolveInvestorFirm(dbc, r.ID, m.ID, m.Method, m.Confidence)
			if err != nil {
				return out, fmt.Errorf("quarantine replay: resolve %s: %w", r.ID, err)
			}
			if !changed {
				out.Duplicates++
				continue
			}
			out.Resolved++
			notes := fmt.Sprintf("replay: resolved by %s (%.2f)", m.Method, m.Confidence)
			if _, err := deps.Quarantine.MarkResolvedBySource(dbc, types.SourceDealInvestorFirm, r.ID.String(), types.ErrorUnresolvedInvestorFirm, notes); err != nil {
				return out, fmt.Errorf("quarantine replay: close %s: %w", r.ID, err)
			}
		}
	}
	deps.Log.Info("quarantine replay finished",
		"attempted", out.Attempted,
		"resolved", out.Resolved,
		"still_unresolved", out.StillUnresolved,
		"duplicates", out.Duplicates,
	)
	return out, nil
}
