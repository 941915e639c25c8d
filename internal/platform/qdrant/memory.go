package qdrant

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// MemoryStore is an in-process VectorStore scored by cosine similarity. It
// serves tests and single-node runs without a Qdrant deployment.
type MemoryStore struct {
	mu      sync.RWMutex
	points  map[string]map[string]Vector
	readErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: map[string]map[string]Vector{}}
}

// SetUnavailable makes Ready and QueryMatches fail with err (nil restores).
func (m *MemoryStore) SetUnavailable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *MemoryStore) Ready(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readErr
}

func (m *MemoryStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.points[namespace]
	if ns == nil {
		ns = map[string]Vector{}
		m.points[namespace] = ns
	}
	for _, v := range vectors {
		if strings.TrimSpace(v.ID) == "" {
			return opErr("upsert", OperationErrorValidation, "vector id is required", nil)
		}
		vals := make([]float32, len(v.Values))
		copy(vals, v.Values)
		ns[v.ID] = Vector{ID: v.ID, Values: vals, Metadata: clonePayload(v.Metadata)}
	}
	return nil
}

func (m *MemoryStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(q) == 0 {
		return nil, opErr("query", OperationErrorValidation, "query vector required", nil)
	}
	if topK <= 0 {
		topK = 10
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	out := make([]VectorMatch, 0)
	for id, v := range m.points[namespace] {
		ok, err := matchesFilter(v.Metadata, filter)
		if err != nil {
			return nil, err
		}
		if !ok || len(v.Values) != len(q) {
			continue
		}
		out = append(out, VectorMatch{ID: id, Score: cosine(q, v.Values)})
	}
	sortMatches(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *MemoryStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points[namespace], id)
	}
	return nil
}

// Len reports how many vectors a namespace holds.
func (m *MemoryStore) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points[namespace])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// matchesFilter evaluates the same filter dialect translateFilterMap accepts.
func matchesFilter(payload map[string]any, filter map[string]any) (bool, error) {
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		switch strings.ToLower(key) {
		case filterOpAnd, filterOpOr:
			items, err := toObjectSlice(value)
			if err != nil {
				return false, opErr("filter_eval", OperationErrorValidation, fmt.Sprintf("operator %s expects array of objects", key), err)
			}
			matched := false
			for _, item := range items {
				ok, err := matchesFilter(payload, item)
				if err != nil {
					return false, err
				}
				if strings.ToLower(key) == filterOpAnd && !ok {
					return false, nil
				}
				matched = matched || ok
			}
			if strings.ToLower(key) == filterOpOr && !matched {
				return false, nil
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, opErr("filter_eval", OperationErrorUnsupportedFilter, fmt.Sprintf("unsupported top-level filter operator %q", key), nil)
			}
			ok, err := matchesField(payload[key], value)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func matchesField(actual any, cond any) (bool, error) {
	ops, isOps := cond.(map[string]any)
	if !isOps {
		return equalScalar(actual, cond), nil
	}
	for op, want := range ops {
		switch strings.ToLower(op) {
		case filterOpEq:
			if !equalScalar(actual, want) {
				return false, nil
			}
		case filterOpIn:
			values, err := toScalarSlice(want)
			if err != nil {
				return false, opErr("filter_eval", OperationErrorValidation, "operator $in expects scalar array", err)
			}
			hit := false
			for _, v := range values {
				if equalScalar(actual, v) {
					hit = true
					break
				}
			}
			if !hit {
				return false, nil
			}
		case filterOpGte, filterOpLte:
			a, okA := toNumber(actual)
			w, okW := toNumber(want)
			if !okA || !okW {
				return false, nil
			}
			if strings.ToLower(op) == filterOpGte && a < w {
				return false, nil
			}
			if strings.ToLower(op) == filterOpLte && a > w {
				return false, nil
			}
		default:
			return false, opErr("filter_eval", OperationErrorUnsupportedFilter, fmt.Sprintf("unsupported filter operator %q", op), nil)
		}
	}
	return true, nil
}

func equalScalar(a, b any) bool {
	if na, ok := toNumber(a); ok {
		if nb, ok := toNumber(b); ok {
			return na == nb
		}
		return false
	}
	return a == b
}
