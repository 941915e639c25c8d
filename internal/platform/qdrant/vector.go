package qdrant

import "context"

// VectorStore is the semantic index. Namespaces partition vectors by entity type.
type VectorStore interface {
	// Ready reports whether the index can serve queries right now.
	Ready(ctx context.Context) error
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	// QueryMatches returns IDs with their similarity scores (higher is better).
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]VectorMatch, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
}

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type VectorMatch struct {
	ID    string
	Score float64
}
