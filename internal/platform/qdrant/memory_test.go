package qdrant

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.Upsert(ctx, "firm", []Vector{
		{ID: "a", Values: []float32{1, 0, 0}, Metadata: map[string]any{"firm_type": "Venture Capital", "aum_usd": 2e9}},
		{ID: "b", Values: []float32{0.8, 0.6, 0}, Metadata: map[string]any{"firm_type": "Private Equity", "aum_usd": 8e9}},
		{ID: "c", Values: []float32{0, 1, 0}, Metadata: map[string]any{"firm_type": "Venture Capital"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, "fund", []Vector{{ID: "z", Values: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Upsert fund: %v", err)
	}

	got, err := s.QueryMatches(ctx, "firm", []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected ranking: %+v", got)
	}
	if got[0].Score < 0.999 || got[1].Score < 0.79 || got[1].Score > 0.81 {
		t.Fatalf("unexpected scores: %+v", got)
	}

	got, err = s.QueryMatches(ctx, "firm", []float32{1, 0, 0}, 10, map[string]any{
		"firm_type": "Venture Capital",
		"aum_usd":   map[string]any{"$gte": 1e9},
	})
	if err != nil {
		t.Fatalf("QueryMatches filtered: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("filter not applied: %+v", got)
	}

	if err := s.DeleteIDs(ctx, "firm", []string{"a"}); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}
	if s.Len("firm") != 2 || s.Len("fund") != 1 {
		t.Fatalf("unexpected sizes after delete: firm=%d fund=%d", s.Len("firm"), s.Len("fund"))
	}
}

func TestMemoryStoreUnavailable(t *testing.T) {
	s := NewMemoryStore()
	down := errors.New("index offline")
	s.SetUnavailable(down)
	if err := s.Ready(context.Background()); !errors.Is(err, down) {
		t.Fatalf("Ready: want %v got %v", down, err)
	}
	if _, err := s.QueryMatches(context.Background(), "firm", []float32{1}, 1, nil); !errors.Is(err, down) {
		t.Fatalf("QueryMatches: want %v got %v", down, err)
	}
}
