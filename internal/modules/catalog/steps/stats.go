package steps

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

type Stats struct {
	Entities          map[string]int64 `json:"entities"`
	Links             map[string]int64 `json:"links"`
	Aliases           map[string]int64 `json:"aliases"`
	Edges             repos.EdgeStats  `json:"edges"`
	QuarantineOpen    int64            `json:"quarantine_open"`
	Docs              int64            `json:"docs"`
	DocsWithEmbedding int64            `json:"docs_with_embedding"`
}

// GetStats counts every table of the graph. The counts run concurrently and
// the first failure is returned.
func GetStats(ctx context.Context, deps CatalogDeps) (Stats, error) {
	out := Stats{Entities: map[string]int64{}}
	if deps.Firm == nil || deps.Fund == nil || deps.Person == nil || deps.Company == nil || deps.Deal == nil ||
		deps.Link == nil || deps.Alias == nil || deps.Edge == nil || deps.Quarantine == nil || deps.Doc == nil {
		return out, fmt.Errorf("stats: missing deps: %w", dgerrors.ErrNotConfigured)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	counters := map[string]func(dbctx.Context) (int64, error){
		types.KindFirm:    deps.Firm.Count,
		types.KindFund:    deps.Fund.Count,
		types.KindPerson:  deps.Person.Count,
		types.KindCompany: deps.Company.Count,
		types.KindDeal:    deps.Deal.Count,
	}
	for kind, count := range counters {
		g.Go(func() error {
			n, err := count(dbctx.Context{Ctx: gctx})
			if err != nil {
				return fmt.Errorf("count %s: %w", kind, err)
			}
			mu.Lock()
			out.Entities[kind] = n
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		links, err := deps.Link.Counts(dbctx.Context{Ctx: gctx})
		if err != nil {
			return fmt.Errorf("link counts: %w", err)
		}
		mu.Lock()
		out.Links = links
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		aliases, err := deps.Alias.Counts(dbctx.Context{Ctx: gctx})
		if err != nil {
			return fmt.Errorf("alias counts: %w", err)
		}
		mu.Lock()
		out.Aliases = aliases
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		edges, err := deps.Edge.Stats(dbctx.Context{Ctx: gctx})
		if err != nil {
			return fmt.Errorf("edge stats: %w", err)
		}
		mu.Lock()
		out.Edges = edges
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		open, err := deps.Quarantine.CountUnresolved(dbctx.Context{Ctx: gctx})
		if err != nil {
			return fmt.Errorf("quarantine count: %w", err)
		}
		mu.Lock()
		out.QuarantineOpen = open
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		total, embedded, err := deps.Doc.Counts(dbctx.Context{Ctx: gctx})
		if err != nil {
			return fmt.Errorf("doc counts: %w", err)
		}
		mu.Lock()
		out.Docs, out.DocsWithEmbedding = total, embedded
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
