package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

func TestEdgeOrderingIsEnforced(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewCoInvestmentEdgeRepo(db, testutil.Logger(t))

	a, b := types.OrderedPair(uuid.New(), uuid.New())
	if _, err := repo.Create(dbc, []*types.CoInvestmentEdge{{FirmAID: b, FirmBID: a, DealCount: 1}}); err == nil {
		t.Fatalf("expected reversed pair to be rejected")
	}
	if _, err := repo.Create(dbc, []*types.CoInvestmentEdge{{FirmAID: a, FirmBID: b, DealCount: 3}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(dbc, b, a)
	if err != nil || got == nil {
		t.Fatalf("Get with swapped ids: %v", err)
	}
	if got.DealCount != 3 {
		t.Fatalf("unexpected deal count %d", got.DealCount)
	}
}

func TestTouchingAndStats(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewCoInvestmentEdgeRepo(db, testutil.Logger(t))

	x, y, z := uuid.New(), uuid.New(), uuid.New()
	edge := func(p, q uuid.UUID, n int) *types.CoInvestmentEdge {
		p, q = types.OrderedPair(p, q)
		return &types.CoInvestmentEdge{FirmAID: p, FirmBID: q, DealCount: n, RunID: "run_1"}
	}
	if _, err := repo.Create(dbc, []*types.CoInvestmentEdge{edge(x, y, 4), edge(y, z, 1), edge(x, z, 2)}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := repo.Touching(dbc, []uuid.UUID{x, y}, 2)
	if err != nil {
		t.Fatalf("Touching: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected the two edges with >= 2 deals, got %d", len(rows))
	}

	stats, err := repo.Stats(dbc)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEdges != 3 || stats.TotalDealConnections != 7 || stats.MaxDealsPerEdge != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.Truncate(dbc); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	stats, err = repo.Stats(dbc)
	if err != nil || stats.TotalEdges != 0 || stats.AvgDealsPerEdge != 0 {
		t.Fatalf("stats after truncate: %+v %v", stats, err)
	}
}
