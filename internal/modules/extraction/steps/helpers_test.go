package steps

import (
	"context"
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
)

type env struct {
	db  *gorm.DB
	set *repos.Set
	row int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	return &env{db: db, set: repos.NewSet(db, testutil.Logger(t)), row: 1}
}

// raw stores one ingested row of file. Row numbers increase across calls.
func (e *env) raw(t *testing.T, file, dataset string, data map[string]string) {
	t.Helper()
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	e.row++
	rec := &types.RawRecord{
		RunID:           "run_test",
		SourceFile:      file,
		SourceSheet:     "Sheet1",
		SourceRowNumber: e.row,
		Dataset:         dataset,
		RawData:         datatypes.JSON(b),
	}
	if err := e.db.Create(rec).Error; err != nil {
		t.Fatalf("seed raw: %v", err)
	}
}

func (e *env) transformDeps(t *testing.T) TransformDeps {
	return TransformDeps{
		DB:         e.db,
		Log:        testutil.Logger(t),
		Raw:        e.set.Raw,
		Normalized: e.set.Normalized,
		BatchSize:  2,
	}
}

func (e *env) extractDeps(t *testing.T) ExtractDeps {
	return ExtractDeps{
		DB:         e.db,
		Log:        testutil.Logger(t),
		Normalized: e.set.Normalized,
		Firm:       e.set.Firm,
		Fund:       e.set.Fund,
		Person:     e.set.Person,
		Company:    e.set.Company,
		Deal:       e.set.Deal,
		GroupPage:  2,
	}
}

func (e *env) linkDeps(t *testing.T) LinkDeps {
	return LinkDeps{
		DB:       e.db,
		Log:      testutil.Logger(t),
		Firm:     e.set.Firm,
		Fund:     e.set.Fund,
		Person:   e.set.Person,
		Company:  e.set.Company,
		Deal:     e.set.Deal,
		Link:     e.set.Link,
		Alias:    e.set.Alias,
		PageSize: 2,
	}
}

// extractAll transforms the seeded rows and extracts every kind.
func (e *env) extractAll(t *testing.T) map[string]ExtractOutput {
	t.Helper()
	ctx := context.Background()
	if _, err := Transform(ctx, e.transformDeps(t), TransformInput{}); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	out := map[string]ExtractOutput{}
	for _, kind := range ExtractKinds {
		res, err := Extract(ctx, e.extractDeps(t), ExtractInput{Kind: kind})
		if err != nil {
			t.Fatalf("Extract %s: %v", kind, err)
		}
		out[kind] = res
	}
	return out
}

func (e *env) link(t *testing.T, kind string) LinkOutput {
	t.Helper()
	out, err := Link(context.Background(), e.linkDeps(t), LinkInput{Kind: kind})
	if err != nil {
		t.Fatalf("Link %s: %v", kind, err)
	}
	return out
}
