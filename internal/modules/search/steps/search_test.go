package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/qdrant"
)

// keywordEmbedder maps text onto a tiny keyword space so cosine scores are
// predictable.
type keywordEmbedder struct {
	fail bool
}

var keywordDims = [][]string{
	{"venture", "startup"},
	{"equity", "buyout"},
	{"software", "saas"},
}

func (e *keywordEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("embeddings offline")
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		lower := strings.ToLower(in)
		v := make([]float32, len(keywordDims))
		for d, words := range keywordDims {
			for _, w := range words {
				v[d] += float32(strings.Count(lower, w))
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) Model() string { return "keyword-test" }

type searchFixture struct {
	db  *gorm.DB
	set *repos.Set

	sequoia, blackstone, apax *types.Firm
	fund                      *types.Fund
	company                   *types.Company
	deal                      *types.Deal
	person                    *types.Person
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	db := testutil.DB(t)
	f := &searchFixture{db: db, set: repos.NewSet(db, testutil.Logger(t))}

	firm := func(sid, name, firmType, city, country string, aum float64) *types.Firm {
		row := &types.Firm{
			SourceID:            sid,
			Name:                name,
			FirmType:            testutil.PtrString(firmType),
			HeadquartersCity:    testutil.PtrString(city),
			HeadquartersCountry: testutil.PtrString(country),
			AumUSD:              testutil.PtrFloat(aum),
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed firm: %v", err)
		}
		return row
	}
	f.sequoia = firm("F1", "Sequoia Capital", "Venture Capital", "Menlo Park", "US", 85e9)
	f.blackstone = firm("F2", "Blackstone", "Private Equity", "New York", "US", 1000e9)
	f.apax = firm("F3", "Apax Partners", "Private Equity", "London", "UK", 60e9)

	f.fund = &types.Fund{
		SourceID:       "P1",
		Name:           "Apax IX",
		Strategy:       testutil.PtrString("Buyout"),
		VintageYear:    testutil.PtrInt(2016),
		ManagingFirmID: testutil.PtrUUID(f.apax.ID),
	}
	f.company = &types.Company{
		SourceID:        "C1",
		Name:            "Stripe",
		PrimaryIndustry: testutil.PtrString("Software"),
		Country:         testutil.PtrString("US"),
	}
	for _, row := range []interface{}{f.fund, f.company} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	f.deal = &types.Deal{
		SourceID:        "D1",
		TargetCompanyID: testutil.PtrUUID(f.company.ID),
		DealType:        testutil.PtrString("Venture"),
		DealDate:        testutil.PtrTime(testutil.Date(2021, 3, 1)),
		Country:         testutil.PtrString("US"),
	}
	f.person = &types.Person{
		SourceID:        "C-1",
		FullName:        "Jane Roe",
		Title:           testutil.PtrString("Partner"),
		FirmName:        testutil.PtrString("Sequoia Capital"),
		LocationCountry: testutil.PtrString("US"),
	}
	for _, row := range []interface{}{f.deal, f.person} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return f
}

func (f *searchFixture) docsDeps(t *testing.T) DocsDeps {
	return DocsDeps{
		DB:       f.db,
		Log:      testutil.Logger(t),
		Doc:      f.set.Doc,
		Firm:     f.set.Firm,
		Fund:     f.set.Fund,
		Company:  f.set.Company,
		Deal:     f.set.Deal,
		Person:   f.set.Person,
		PageSize: 2,
	}
}

func (f *searchFixture) generate(t *testing.T) {
	t.Helper()
	if _, err := GenerateDocs(context.Background(), f.docsDeps(t), DocsInput{}); err != nil {
		t.Fatalf("GenerateDocs: %v", err)
	}
}

func (f *searchFixture) embed(t *testing.T, emb *keywordEmbedder, store *qdrant.MemoryStore) {
	t.Helper()
	_, err := GenerateEmbeddings(context.Background(), EmbeddingsDeps{
		DB:        f.db,
		Log:       testutil.Logger(t),
		Doc:       f.set.Doc,
		Embedder:  emb,
		Vectors:   store,
		BatchSize: 2,
	}, EmbeddingsInput{})
	if err != nil {
		t.Fatalf("GenerateEmbeddings: %v", err)
	}
}

func (f *searchFixture) searchDeps(t *testing.T, emb *keywordEmbedder, store *qdrant.MemoryStore) SearchDeps {
	deps := SearchDeps{Log: testutil.Logger(t), Doc: f.set.Doc}
	if emb != nil {
		deps.Embedder = emb
	}
	if store != nil {
		deps.Vectors = store
	}
	return deps
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGenerateDocsCoversEveryKind(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	out, err := GenerateDocs(ctx, f.docsDeps(t), DocsInput{RunID: "run-1"})
	if err != nil {
		t.Fatalf("GenerateDocs: %v", err)
	}
	want := map[string]int{types.KindFirm: 3, types.KindFund: 1, types.KindCompany: 1, types.KindDeal: 1, types.KindPerson: 1}
	for k, n := range want {
		if out.Counts[k] != n {
			t.Fatalf("%s docs: want=%d got=%d", k, n, out.Counts[k])
		}
	}

	dbc := dbctx.Context{Ctx: ctx}
	funds, err := f.set.Doc.GetByEntityIDs(dbc, types.KindFund, []uuid.UUID{f.fund.ID}, nil)
	if err != nil || len(funds) != 1 {
		t.Fatalf("fund doc: %v (%d)", err, len(funds))
	}
	var meta map[string]any
	if err := json.Unmarshal(funds[0].Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["manager_name"] != "Apax Partners" || meta["strategy"] != "Buyout" || meta["vintage_year"] != float64(2016) {
		t.Fatalf("unexpected fund metadata: %v", meta)
	}
	if funds[0].DocText != "Apax IX | Buyout | vintage 2016 | Apax Partners" {
		t.Fatalf("unexpected fund doc text: %q", funds[0].DocText)
	}

	deals, err := f.set.Doc.GetByEntityIDs(dbc, types.KindDeal, []uuid.UUID{f.deal.ID}, nil)
	if err != nil || len(deals) != 1 || deals[0].Title != "Stripe" {
		t.Fatalf("deal doc should be titled by its target company: %v %+v", err, deals)
	}
	if deals[0].RunID == nil || *deals[0].RunID != "run-1" {
		t.Fatalf("run id not stamped: %+v", deals[0].RunID)
	}

	// Regenerating updates in place.
	if _, err := GenerateDocs(ctx, f.docsDeps(t), DocsInput{}); err != nil {
		t.Fatalf("GenerateDocs rerun: %v", err)
	}
	total, _, err := f.set.Doc.Counts(dbc)
	if err != nil || total != 7 {
		t.Fatalf("docs after rerun: %d %v", total, err)
	}
}

func TestGenerateDocsRejectsUnknownKind(t *testing.T) {
	f := newSearchFixture(t)
	_, err := GenerateDocs(context.Background(), f.docsDeps(t), DocsInput{Kinds: []string{"planet"}})
	if !errors.Is(err, dgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGenerateEmbeddings(t *testing.T) {
	f := newSearchFixture(t)
	f.generate(t)
	ctx := context.Background()
	store := qdrant.NewMemoryStore()
	deps := EmbeddingsDeps{
		DB:        f.db,
		Log:       testutil.Logger(t),
		Doc:       f.set.Doc,
		Embedder:  &keywordEmbedder{},
		Vectors:   store,
		BatchSize: 2,
	}

	out, err := GenerateEmbeddings(ctx, deps, EmbeddingsInput{Kinds: []string{types.KindFirm}, Limit: 2})
	if err != nil {
		t.Fatalf("GenerateEmbeddings: %v", err)
	}
	if out.Counts[types.KindFirm] != 2 || store.Len(types.KindFirm) != 2 {
		t.Fatalf("limit not honoured: %v store=%d", out.Counts, store.Len(types.KindFirm))
	}

	out, err = GenerateEmbeddings(ctx, deps, EmbeddingsInput{})
	if err != nil {
		t.Fatalf("GenerateEmbeddings: %v", err)
	}
	if out.Counts[types.KindFirm] != 1 || out.Counts[types.KindFund] != 1 || out.Counts[types.KindCompany] != 1 {
		t.Fatalf("unexpected counts: %v", out.Counts)
	}
	if out.Model != "keyword-test" {
		t.Fatalf("model: %q", out.Model)
	}
	_, embedded, err := f.set.Doc.Counts(dbctx.Context{Ctx: ctx})
	if err != nil || embedded != 5 {
		t.Fatalf("embedded docs: %d %v", embedded, err)
	}

	out, err = GenerateEmbeddings(ctx, deps, EmbeddingsInput{})
	if err != nil || out.Counts[types.KindFirm] != 0 {
		t.Fatalf("rerun should find nothing pending: %v %v", out.Counts, err)
	}
}

func TestGenerateEmbeddingsFailure(t *testing.T) {
	f := newSearchFixture(t)
	f.generate(t)
	_, err := GenerateEmbeddings(context.Background(), EmbeddingsDeps{
		DB:       f.db,
		Doc:      f.set.Doc,
		Embedder: &keywordEmbedder{fail: true},
	}, EmbeddingsInput{})
	if err == nil {
		t.Fatalf("expected embedding failure")
	}
	_, err = GenerateEmbeddings(context.Background(), EmbeddingsDeps{DB: f.db, Doc: f.set.Doc}, EmbeddingsInput{})
	if !errors.Is(err, dgerrors.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSearchShortQuery(t *testing.T) {
	f := newSearchFixture(t)
	res, err := Search(context.Background(), f.searchDeps(t, nil, nil), SearchInput{Query: " a "})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SearchType != SearchTypeNone || res.Results == nil || len(res.Results) != 0 || res.Total != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSearchLexical(t *testing.T) {
	f := newSearchFixture(t)
	f.generate(t)
	ctx := context.Background()

	res, err := Search(ctx, f.searchDeps(t, nil, nil), SearchInput{Query: "Sequoia"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SearchType != SearchTypeFTSOnly || res.Total != 1 || res.Results[0].EntityID != f.sequoia.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
	hit := res.Results[0]
	// coverage 0.5 + tf 0.2*(1/2) + title 0.3
	if !approx(hit.TextScore, 0.9) || !approx(hit.CombinedScore, 0.9) || hit.SemanticScore != nil {
		t.Fatalf("unexpected scores: %+v", hit)
	}
	if !strings.HasPrefix(hit.Snippet, "Sequoia Capital | Venture Capital") {
		t.Fatalf("unexpected snippet: %q", hit.Snippet)
	}

	res, err = Search(ctx, f.searchDeps(t, nil, nil), SearchInput{Query: "equity"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 2 || res.Results[0].EntityID != f.apax.ID || res.Results[1].EntityID != f.blackstone.ID {
		t.Fatalf("equal scores should order by title: %+v", res.Results)
	}

	res, err = Search(ctx, f.searchDeps(t, nil, nil), SearchInput{Query: "equity", Limit: 1})
	if err != nil || len(res.Results) != 1 || res.Total != 1 {
		t.Fatalf("limit: %v %+v", err, res)
	}

	res, err = Search(ctx, f.searchDeps(t, nil, nil), SearchInput{Query: "jane", EntityTypes: []string{types.KindPerson}})
	if err != nil || len(res.Results) != 1 || res.Results[0].EntityID != f.person.ID {
		t.Fatalf("person search: %v %+v", err, res)
	}
}

func TestSearchFilters(t *testing.T) {
	f := newSearchFixture(t)
	f.generate(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		filters map[string]any
		want    []uuid.UUID
	}{
		{"country contains", map[string]any{"country": "uk"}, []uuid.UUID{f.apax.ID}},
		{"min aum", map[string]any{"min_aum": 100e9}, []uuid.UUID{f.blackstone.ID}},
		{"min aum as string", map[string]any{"min_aum": "100000000000"}, []uuid.UUID{f.blackstone.ID}},
		{"firm type", map[string]any{"firm_type": "Private Equity"}, []uuid.UUID{f.apax.ID, f.blackstone.ID}},
		{"firm type is exact", map[string]any{"firm_type": "private"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Search(ctx, f.searchDeps(t, nil, nil), SearchInput{Query: "equity", Filters: tc.filters})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(res.Results) != len(tc.want) {
				t.Fatalf("want %d results, got %+v", len(tc.want), res.Results)
			}
			for i, id := range tc.want {
				if res.Results[i].EntityID != id {
					t.Fatalf("result %d: want=%s got=%s", i, id, res.Results[i].EntityID)
				}
			}
		})
	}

	res, err := Search(ctx, f.searchDeps(t, nil, nil), SearchInput{
		Query:       "apax",
		EntityTypes: []string{types.KindFund},
		Filters:     map[string]any{"vintage_year": 2016, "strategy": "buy"},
	})
	if err != nil || len(res.Results) != 1 || res.Results[0].EntityID != f.fund.ID {
		t.Fatalf("fund filters: %v %+v", err, res)
	}
}

func TestSearchRanksEveryLexicalMatch(t *testing.T) {
	db := testutil.DB(t)
	set := repos.NewSet(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	var docs []*types.EntityDoc
	for i := 0; i < 120; i++ {
		name := fmt.Sprintf("Filler%03d Capital", i)
		docs = append(docs, &types.EntityDoc{
			EntityType: types.KindFirm,
			EntityID:   uuid.New(),
			Title:      name,
			DocText:    name + " | Private Equity | US",
			Metadata:   datatypes.JSON(`{"country":"US","firm_type":"Private Equity"}`),
		})
	}
	acme := &types.EntityDoc{
		// Sorts after every other id, so it is on the last candidate page.
		ID:         uuid.MustParse("ffffffff-ffff-4fff-bfff-ffffffffffff"),
		EntityType: types.KindFirm,
		EntityID:   uuid.New(),
		Title:      "Acme Capital",
		DocText:    "Acme Capital | Venture Capital | UK",
		Metadata:   datatypes.JSON(`{"country":"UK","firm_type":"Venture Capital"}`),
	}
	docs = append(docs, acme)
	if _, err := set.Doc.Upsert(dbc, docs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	deps := SearchDeps{Log: testutil.Logger(t), Doc: set.Doc, CandidateLimit: 50}
	ctx := context.Background()

	res, err := Search(ctx, deps, SearchInput{Query: "Acme Capital", Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 5 || res.Results[0].EntityID != acme.EntityID || !approx(res.Results[0].TextScore, 1) {
		t.Fatalf("exact title match should rank first: %+v", res.Results)
	}
	if res.Results[1].Title != "Filler000 Capital" {
		t.Fatalf("equal scores should order by title: %+v", res.Results[1])
	}

	for _, filters := range []map[string]any{
		{"country": "uk"},
		{"firm_type": "Venture Capital"},
	} {
		res, err = Search(ctx, deps, SearchInput{Query: "capital", Filters: filters})
		if err != nil {
			t.Fatalf("Search %v: %v", filters, err)
		}
		if res.Total != 1 || res.Results[0].EntityID != acme.EntityID {
			t.Fatalf("filter %v should find the last match: %+v", filters, res)
		}
	}

	res, err = Search(ctx, deps, SearchInput{Query: "capital", Filters: map[string]any{"firm_type": "Private Equity"}, Limit: 100})
	if err != nil || res.Total != 100 {
		t.Fatalf("firm_type filter: %v total=%d", err, res.Total)
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	bad := []SearchInput{
		{Query: "equity", Filters: map[string]any{"sector": "tech"}},
		{Query: "equity", Filters: map[string]any{"min_aum": "lots"}},
		{Query: "equity", Filters: map[string]any{"vintage_year": 2016.5}},
		{Query: "equity", Filters: map[string]any{"country": 44}},
		{Query: "equity", EntityTypes: []string{"planet"}},
	}
	for _, in := range bad {
		if _, err := Search(ctx, f.searchDeps(t, nil, nil), in); !errors.Is(err, dgerrors.ErrInvalidArgument) {
			t.Fatalf("%+v: expected ErrInvalidArgument, got %v", in, err)
		}
	}
}

func TestSearchHybrid(t *testing.T) {
	f := newSearchFixture(t)
	f.generate(t)
	emb := &keywordEmbedder{}
	store := qdrant.NewMemoryStore()
	f.embed(t, emb, store)

	// "startup" never appears in a doc; only the vector index can find Sequoia.
	res, err := Search(context.Background(), f.searchDeps(t, emb, store), SearchInput{Query: "startup", UseSemantic: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SearchType != SearchTypeHybrid || len(res.Results) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	hit := res.Results[0]
	if hit.EntityID != f.sequoia.ID || hit.SemanticScore == nil || !approx(*hit.SemanticScore, 1) {
		t.Fatalf("unexpected hit: %+v", hit)
	}
	if hit.TextScore != 0 || !approx(hit.CombinedScore, 0.7) {
		t.Fatalf("combined should be 0.3*0 + 0.7*1: %+v", hit)
	}

	// Lexical and semantic together.
	res, err = Search(context.Background(), f.searchDeps(t, emb, store), SearchInput{Query: "venture", UseSemantic: true})
	if err != nil || len(res.Results) != 1 {
		t.Fatalf("Search: %v %+v", err, res)
	}
	hit = res.Results[0]
	if hit.SemanticScore == nil || !approx(hit.CombinedScore, 0.3*hit.TextScore+0.7) {
		t.Fatalf("unexpected hybrid score: %+v", hit)
	}
}

func TestSearchDegradesToLexical(t *testing.T) {
	f := newSearchFixture(t)
	f.generate(t)
	emb := &keywordEmbedder{}
	store := qdrant.NewMemoryStore()
	f.embed(t, emb, store)
	ctx := context.Background()

	store.SetUnavailable(errors.New("qdrant down"))
	deps := f.searchDeps(t, emb, store)
	deps.Caps = &Capabilities{}
	res, err := Search(ctx, deps, SearchInput{Query: "startup", UseSemantic: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SearchType != SearchTypeFTSOnly || len(res.Results) != 0 {
		t.Fatalf("expected fts_only with no hits: %+v", res)
	}

	// The memo keeps the first answer for the life of the searcher.
	store.SetUnavailable(nil)
	res, err = Search(ctx, deps, SearchInput{Query: "startup", UseSemantic: true})
	if err != nil || res.SearchType != SearchTypeFTSOnly {
		t.Fatalf("memoized capability ignored: %v %+v", err, res)
	}
	deps.Caps = &Capabilities{}
	res, err = Search(ctx, deps, SearchInput{Query: "startup", UseSemantic: true})
	if err != nil || res.SearchType != SearchTypeHybrid {
		t.Fatalf("fresh searcher should see the index: %v %+v", err, res)
	}

	// A failing query embedding also falls back.
	emb.fail = true
	res, err = Search(ctx, f.searchDeps(t, emb, store), SearchInput{Query: "sequoia", UseSemantic: true})
	if err != nil || res.SearchType != SearchTypeFTSOnly || len(res.Results) != 1 {
		t.Fatalf("embedding failure should degrade: %v %+v", err, res)
	}
}

func TestTokenizeAndScore(t *testing.T) {
	got := Tokenize("Sequoia, a VC-fund! sequoia")
	want := []string{"sequoia", "vc", "fund"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Tokenize: want=%v got=%v", want, got)
	}
	if s := LexicalScore("Blackstone", Tokenize("Blackstone"), "Blackstone", "Blackstone | Private Equity"); s != 1 {
		t.Fatalf("exact title should score 1, got %v", s)
	}
	if s := LexicalScore("zeta", Tokenize("zeta"), "Blackstone", "Blackstone | Private Equity"); s != 0 {
		t.Fatalf("no match should score 0, got %v", s)
	}
	if ClampLimit(0) != DefaultSearchLimit || ClampLimit(500) != MaxSearchLimit || ClampLimit(7) != 7 {
		t.Fatalf("ClampLimit out of range")
	}
}
