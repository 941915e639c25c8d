package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/quality"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

type SummaryOutput struct {
	TotalUnresolved int64                 `json:"total_unresolved"`
	ByType          []quality.TypeSummary `json:"by_type"`
}

func Summary(ctx context.Context, repo repos.QuarantineRepo) (SummaryOutput, error) {
	out := SummaryOutput{ByType: []quality.TypeSummary{}}
	if repo == nil {
		return out, fmt.Errorf("quarantine summary: %w", dgerrors.ErrNotConfigured)
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := repo.Summary(dbc)
	if err != nil {
		return out, fmt.Errorf("quarantine summary: %w", err)
	}
	out.ByType = rows
	for _, r := range rows {
		out.TotalUnresolved += r.Count
	}
	return out, nil
}

type ListInput struct {
	SourceTable string `json:"source_table,omitempty"`
	ErrorType   string `json:"error_type,omitempty"`
	Resolved    *bool  `json:"resolved,omitempty"`
	Page        int    `json:"page"`
	PageSize    int    `json:"page_size"`
}

type ListOutput struct {
	Records  []*types.QuarantineRecord `json:"records"`
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

func List(ctx context.Context, repo repos.QuarantineRepo, in ListInput) (ListOutput, error) {
	if repo == nil {
		return ListOutput{}, fmt.Errorf("quarantine list: %w", dgerrors.ErrNotConfigured)
	}
	page, size := in.Page, in.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	rows, total, err := repo.List(dbctx.Context{Ctx: ctx}, quality.Filter{
		SourceTable: in.SourceTable,
		ErrorType:   in.ErrorType,
		Resolved:    in.Resolved,
	}, (page-1)*size, size)
	if err != nil {
		return ListOutput{}, fmt.Errorf("quarantine list: %w", err)
	}
	return ListOutput{Records: rows, Total: total, Page: page, PageSize: size}, nil
}

// Resolve marks rows resolved by hand. Already resolved rows are not touched.
func Resolve(ctx context.Context, repo repos.QuarantineRepo, ids []uuid.UUID, notes string) (int64, error) {
	if repo == nil {
		return 0, fmt.Errorf("quarantine resolve: %w", dgerrors.ErrNotConfigured)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("quarantine resolve: no ids: %w", dgerrors.ErrInvalidArgument)
	}
	n, err := repo.MarkResolved(dbctx.Context{Ctx: ctx}, ids, notes)
	if err != nil {
		return 0, fmt.Errorf("quarantine resolve: %w", err)
	}
	return n, nil
}
