package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

func TestNewVectorStoreCreatesMissingCollection(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/readyz":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Path == "/collections/entities":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/entities":
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			writeOK(w, true)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	s, err := NewVectorStore(logger.Nop(), Config{
		URL:              srv.URL,
		Collection:       "entities",
		NamespacePrefix:  "dg",
		VectorDim:        3,
		CreateCollection: true,
	})
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	if s == nil {
		t.Fatalf("expected a store")
	}
	vectors, _ := created["vectors"].(map[string]any)
	if vectors["size"] != float64(3) || vectors["distance"] != "Cosine" {
		t.Fatalf("unexpected create body: %v", created)
	}
}

func TestNewVectorStoreRejectsDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeOK(w, map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": 8, "distance": "Cosine"}}},
		})
	}))
	defer srv.Close()

	_, err := NewVectorStore(logger.Nop(), Config{URL: srv.URL, Collection: "entities", NamespacePrefix: "dg", VectorDim: 3})
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVectorStoreUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/entities/points" || r.URL.RawQuery != "wait=true" {
			t.Errorf("unexpected request %s %s?%s", r.Method, r.URL.Path, r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeOK(w, map[string]any{"status": "acknowledged"})
	})

	meta := map[string]any{"title": "Acme"}
	err := s.Upsert(context.Background(), "firm", []Vector{
		{ID: "firm-1", Values: []float32{1, 2, 3}, Metadata: meta},
		{ID: "firm-2", Values: []float32{4, 5, 6}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	points, _ := captured["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("points length: want=2 got=%d", len(points))
	}
	first, _ := points[0].(map[string]any)
	if first["id"] != s.pointID("dg:firm", "firm-1") {
		t.Fatalf("point id mismatch: got=%v", first["id"])
	}
	payload, _ := first["payload"].(map[string]any)
	if payload[payloadNamespaceKey] != "dg:firm" || payload[payloadVectorIDKey] != "firm-1" || payload["title"] != "Acme" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, exists := meta[payloadNamespaceKey]; exists {
		t.Fatalf("input metadata mutated")
	}

	err = s.Upsert(context.Background(), "firm", []Vector{{ID: "short", Values: []float32{1}}})
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorValidation {
		t.Fatalf("expected dimension validation error, got %v", err)
	}
}

func TestVectorStoreQueryMatchesScopesNamespaceAndSorts(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/entities/points/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeOK(w, []map[string]any{
			{"id": "p-b", "score": 0.61, "payload": map[string]any{payloadVectorIDKey: "firm-b"}},
			{"id": "p-a", "score": 0.93, "payload": map[string]any{payloadVectorIDKey: "firm-a"}},
		})
	})

	matches, err := s.QueryMatches(context.Background(), "firm", []float32{1, 2, 3}, 500, map[string]any{
		"firm_type": "Venture Capital",
	})
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != "firm-a" || matches[1].ID != "firm-b" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if captured["limit"] != float64(maxTopK) {
		t.Fatalf("topK not capped: %v", captured["limit"])
	}
	filter, _ := captured["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if findConditionByKey(must, payloadNamespaceKey) == nil || findConditionByKey(must, "firm_type") == nil {
		t.Fatalf("filter missing namespace or field condition: %v", filter)
	}
}

func TestVectorStoreReportsServerErrors(t *testing.T) {
	s := newTestVectorStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":{"error":"boom"}}`))
	})
	err := s.DeleteIDs(context.Background(), "firm", []string{"a", "a", " "})
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 operation error, got %v", err)
	}
	if err := s.Ready(context.Background()); err == nil {
		t.Fatalf("Ready: expected failure")
	}
}

func TestVectorStoreRetriesTransientStatuses(t *testing.T) {
	var calls atomic.Int32
	s := newTestVectorStore(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeOK(w, []map[string]any{
			{"id": "p-a", "score": 0.9, "payload": map[string]any{payloadVectorIDKey: "firm-a"}},
		})
	})
	s.maxRetries = 2
	s.retryWait = time.Millisecond

	matches, err := s.QueryMatches(context.Background(), "firm", []float32{1, 2, 3}, 5, nil)
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "firm-a" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls: want=3 got=%d", got)
	}
}

func TestVectorStoreDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	s := newTestVectorStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":{"error":"bad filter"}}`))
	})
	s.maxRetries = 3
	s.retryWait = time.Millisecond

	err := s.Upsert(context.Background(), "firm", []Vector{{ID: "firm-1", Values: []float32{1, 2, 3}}})
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.StatusCode != http.StatusBadRequest || opErr.Code != OperationErrorQueryFailed {
		t.Fatalf("expected 400 operation error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls: want=1 got=%d", got)
	}
}

func TestClassifyHTTPCallErrorTimeout(t *testing.T) {
	err := classifyHTTPCallError("query", "request failed", context.DeadlineExceeded)
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != OperationErrorTimeout {
		t.Fatalf("expected timeout code, got %v", err)
	}
}

func newTestVectorStore(t *testing.T, handler http.HandlerFunc) *vectorStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &vectorStore{
		log:      logger.Nop(),
		cfg:      Config{URL: srv.URL, Collection: "entities", NamespacePrefix: "dg", VectorDim: 3},
		baseURL:  srv.URL,
		nsPrefix: "dg",
		distance: "Cosine",
		http:     srv.Client(),
	}
}

func writeOK(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}
