package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/dealgraph-backend/internal/platform/qdrant"
)

func TestInstrumentVectorStorePassThrough(t *testing.T) {
	inner := &fakeVectorStore{}
	vs := instrumentVectorStore("qdrant", inner)
	if vs == nil {
		t.Fatalf("instrumentVectorStore: expected non-nil wrapper")
	}

	if err := vs.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := vs.Upsert(context.Background(), "firm", []qdrant.Vector{{ID: "v1", Values: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	matches, err := vs.QueryMatches(context.Background(), "firm", []float32{1, 2, 3}, 3, nil)
	if err != nil || len(matches) != 1 || matches[0].ID != "v1" {
		t.Fatalf("QueryMatches: %v %v", matches, err)
	}
	if err := vs.DeleteIDs(context.Background(), "firm", []string{"v1"}); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}
	if inner.readyCalls != 1 || inner.upsertCalls != 1 || inner.queryCalls != 1 || inner.deleteCalls != 1 {
		t.Fatalf("unexpected call counts: %+v", inner)
	}
}

func TestInstrumentVectorStoreErrorPassThrough(t *testing.T) {
	want := errors.New("delete failed")
	vs := instrumentVectorStore("qdrant", &fakeVectorStore{deleteErr: want})
	if err := vs.DeleteIDs(context.Background(), "firm", []string{"v1"}); !errors.Is(err, want) {
		t.Fatalf("DeleteIDs: expected %v, got %v", want, err)
	}
}

func TestInstrumentVectorStoreNil(t *testing.T) {
	if instrumentVectorStore("qdrant", nil) != nil {
		t.Fatalf("nil inner must stay nil")
	}
}

type fakeVectorStore struct {
	readyCalls  int
	upsertCalls int
	queryCalls  int
	deleteCalls int

	deleteErr error
}

func (f *fakeVectorStore) Ready(context.Context) error {
	f.readyCalls++
	return nil
}

func (f *fakeVectorStore) Upsert(context.Context, string, []qdrant.Vector) error {
	f.upsertCalls++
	return nil
}

func (f *fakeVectorStore) QueryMatches(context.Context, string, []float32, int, map[string]any) ([]qdrant.VectorMatch, error) {
	f.queryCalls++
	return []qdrant.VectorMatch{{ID: "v1", Score: 0.9}}, nil
}

func (f *fakeVectorStore) DeleteIDs(context.Context, string, []string) error {
	f.deleteCalls++
	return f.deleteErr
}
