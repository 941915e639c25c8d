package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	dbpkg "github.com/yungbote/dealgraph-backend/internal/data/db"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

func TestUpsertClearsEmbeddingWhenTextChanges(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewEntityDocRepo(db, testutil.Logger(t))

	entityID := uuid.New()
	doc := func(text string) []*types.EntityDoc {
		return []*types.EntityDoc{{EntityType: types.KindFirm, EntityID: entityID, Title: "Acme", DocText: text}}
	}
	if _, err := repo.Upsert(dbc, doc("Acme | Private Equity")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	pending, err := repo.PageWithoutEmbedding(dbc, types.KindFirm, uuid.Nil, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("PageWithoutEmbedding: %v (%d)", err, len(pending))
	}
	if err := repo.SetEmbedding(dbc, pending[0].ID, datatypes.JSON([]byte("[0.1,0.2]")), "test-model"); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}

	// Same text keeps the vector.
	if _, err := repo.Upsert(dbc, doc("Acme | Private Equity")); err != nil {
		t.Fatalf("Upsert same: %v", err)
	}
	total, embedded, err := repo.Counts(dbc)
	if err != nil || total != 1 || embedded != 1 {
		t.Fatalf("Counts after same-text upsert: %d/%d %v", embedded, total, err)
	}

	if _, err := repo.Upsert(dbc, doc("Acme | Venture Capital")); err != nil {
		t.Fatalf("Upsert changed: %v", err)
	}
	_, embedded, err = repo.Counts(dbc)
	if err != nil || embedded != 0 {
		t.Fatalf("changed text must drop the embedding: %d %v", embedded, err)
	}
}

func TestLexicalCandidatesMatchAnyToken(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewEntityDocRepo(db, testutil.Logger(t))

	docs := []*types.EntityDoc{
		{EntityType: types.KindFirm, EntityID: uuid.New(), Title: "Sequoia Capital", DocText: "Venture Capital | US", Metadata: datatypes.JSON(`{"country":"US"}`)},
		{EntityType: types.KindFirm, EntityID: uuid.New(), Title: "Blackstone", DocText: "Private Equity | US", Metadata: datatypes.JSON(`{"country":"US"}`)},
		{EntityType: types.KindFirm, EntityID: uuid.New(), Title: "100% Growth", DocText: "Growth | UK", Metadata: datatypes.JSON(`{"country":"UK"}`)},
		{EntityType: types.KindFund, EntityID: uuid.New(), Title: "Sequoia Fund XV", DocText: "Venture"},
	}
	if _, err := repo.Upsert(dbc, docs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.LexicalCandidates(dbc, CandidateQuery{EntityType: types.KindFirm, Tokens: []string{"sequoia", "equity"}})
	if err != nil {
		t.Fatalf("LexicalCandidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 firm candidates, got %d", len(got))
	}

	got, err = repo.LexicalCandidates(dbc, CandidateQuery{EntityType: types.KindFirm, Tokens: []string{"%"}})
	if err != nil || len(got) != 1 || got[0].Title != "100% Growth" {
		t.Fatalf("wildcards must be matched literally: %v %d", err, len(got))
	}

	got, err = repo.LexicalCandidates(dbc, CandidateQuery{
		EntityType: types.KindFirm,
		Tokens:     []string{"us"},
		Where:      []dbpkg.Predicate{dbpkg.Where("title = ?", "Blackstone")},
	})
	if err != nil || len(got) != 1 {
		t.Fatalf("predicates not applied: %v %d", err, len(got))
	}

	got, err = repo.LexicalCandidates(dbc, CandidateQuery{
		EntityType: types.KindFirm,
		Tokens:     []string{"us", "uk"},
		Where:      []dbpkg.Predicate{dbpkg.Expr(datatypes.JSONQuery("metadata").Equals("UK", "country"))},
	})
	if err != nil || len(got) != 1 || got[0].Title != "100% Growth" {
		t.Fatalf("json predicate not applied: %v %d", err, len(got))
	}

	var paged []string
	after := uuid.Nil
	for {
		page, err := repo.LexicalCandidates(dbc, CandidateQuery{EntityType: types.KindFirm, Tokens: []string{"us", "uk"}, After: after, Limit: 2})
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		for _, d := range page {
			paged = append(paged, d.Title)
		}
		if len(page) < 2 {
			break
		}
		after = page[len(page)-1].ID
	}
	if len(paged) != 3 {
		t.Fatalf("paging should visit every match once: %v", paged)
	}

	byID, err := repo.GetByEntityIDs(dbc, types.KindFund, []uuid.UUID{docs[3].EntityID, docs[0].EntityID}, nil)
	if err != nil || len(byID) != 1 {
		t.Fatalf("GetByEntityIDs: %v %d", err, len(byID))
	}
}
