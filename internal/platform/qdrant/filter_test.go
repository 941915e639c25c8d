package qdrant

import (
	"errors"
	"testing"
)

func TestTranslateFilterMapEqualityInAndRange(t *testing.T) {
	got, err := translateFilterMap(map[string]any{
		"firm_type":    "Venture Capital",
		"vintage_year": map[string]any{"$in": []int{2019, 2020}},
		"aum_usd":      map[string]any{"$gte": 1e9, "$lte": 5e9},
	})
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.Must) != 3 {
		t.Fatalf("must length: want=3 got=%d", len(got.Must))
	}

	typeCond := findConditionByKey(got.Must, "firm_type")
	if typeCond == nil {
		t.Fatalf("missing firm_type condition")
	}
	if match, ok := typeCond["match"].(map[string]any); !ok || match["value"] != "Venture Capital" {
		t.Fatalf("firm_type match: got=%v", typeCond["match"])
	}

	yearCond := findConditionByKey(got.Must, "vintage_year")
	if yearCond == nil {
		t.Fatalf("missing vintage_year condition")
	}
	anyVals, _ := yearCond["match"].(map[string]any)["any"].([]any)
	if len(anyVals) != 2 || anyVals[0] != 2019 {
		t.Fatalf("vintage_year any values: got=%v", anyVals)
	}

	aumCond := findConditionByKey(got.Must, "aum_usd")
	rng, ok := aumCond["range"].(map[string]any)
	if !ok || rng["gte"] != 1e9 || rng["lte"] != 5e9 {
		t.Fatalf("aum_usd range: got=%v", aumCond)
	}
}

func TestTranslateFilterMapOr(t *testing.T) {
	got, err := translateFilterMap(map[string]any{
		"$or": []any{
			map[string]any{"country": "US"},
			map[string]any{"country": "UK"},
		},
	})
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.Should) != 2 || len(got.Must) != 0 {
		t.Fatalf("unexpected translation: %+v", got)
	}
}

func TestTranslateFilterMapUnsupportedOperator(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"vintage_year": map[string]any{"$gt": 2},
	})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("error code: want=%q got=%q", OperationErrorUnsupportedFilter, opErr.Code)
	}
}

func findConditionByKey(items []any, key string) map[string]any {
	for _, raw := range items {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if condKey, _ := cond["key"].(string); condKey == key {
			return cond
		}
	}
	return nil
}
