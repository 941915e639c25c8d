package steps

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/embeddings"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/qdrant"
	"github.com/yungbote/dealgraph-backend/internal/platform/rediscache"
)

const (
	SearchTypeNone    = "none"
	SearchTypeFTSOnly = "fts_only"
	SearchTypeHybrid  = "hybrid"

	DefaultSearchLimit    = 20
	MaxSearchLimit        = 100
	DefaultLexicalWeight  = 0.3
	DefaultSemanticWeight = 0.7
	DefaultSemanticFloor  = 0.6
	DefaultCandidateLimit = 500
	MaxVectorTopK         = 200

	minQueryLen = 2
	snippetLen  = 200
)

// DefaultSearchKinds are searched when the caller names none.
var DefaultSearchKinds = []string{types.KindFirm, types.KindFund, types.KindCompany}

// Capabilities memoizes whether semantic search can run. One value is owned
// by a searcher and checked at most once.
type Capabilities struct {
	mu        sync.Mutex
	checked   bool
	available bool
	reason    string
}

// Semantic reports whether the vector index and embedder are usable, checking
// the index on first call only.
func (c *Capabilities) Semantic(ctx context.Context, vectors qdrant.VectorStore, embedder embeddings.Client) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checked {
		return c.available, c.reason
	}
	c.checked = true
	switch {
	case vectors == nil || embedder == nil:
		c.reason = "not configured"
	default:
		if err := vectors.Ready(ctx); err != nil {
			c.reason = err.Error()
		} else {
			c.available = true
		}
	}
	return c.available, c.reason
}

type SearchDeps struct {
	Log *logger.Logger

	Doc repos.EntityDocRepo

	// Embedder, Vectors and Cache are optional.
	Embedder embeddings.Client
	Vectors  qdrant.VectorStore
	Cache    rediscache.Cache

	// Caps is the searcher's capability memo; nil gets a fresh one per call.
	Caps *Capabilities

	LexicalWeight  float64
	SemanticWeight float64
	SemanticFloor  float64
	CandidateLimit int
}

type SearchInput struct {
	Query       string         `json:"query"`
	EntityTypes []string       `json:"entity_types,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
	UseSemantic bool           `json:"use_semantic"`
	Limit       int            `json:"limit,omitempty"`
}

type SearchHit struct {
	EntityType    string         `json:"entity_type"`
	EntityID      uuid.UUID      `json:"entity_id"`
	Title         string         `json:"title"`
	Snippet       string         `json:"snippet"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	TextScore     float64        `json:"text_score"`
	SemanticScore *float64       `json:"semantic_score,omitempty"`
	CombinedScore float64        `json:"combined_score"`
}

type SearchResult struct {
	Results    []SearchHit `json:"results"`
	SearchType string      `json:"search_type"`
	Total      int         `json:"total"`
}

// Search ranks entity docs for a free-text query. Lexical matching always
// runs; semantic matching joins in when requested and available, and any
// semantic failure degrades the whole answer to lexical only.
func Search(ctx context.Context, deps SearchDeps, in SearchInput) (SearchResult, error) {
	out := SearchResult{Results: []SearchHit{}, SearchType: SearchTypeNone}
	if deps.Doc == nil {
		return out, fmt.Errorf("search: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	applySearchDefaults(&deps)

	q := strings.TrimSpace(in.Query)
	if len([]rune(q)) < minQueryLen {
		observability.Current().IncSearch(SearchTypeNone)
		return out, nil
	}
	filters, err := ParseFilters(in.Filters)
	if err != nil {
		return out, err
	}
	kinds, err := resolveKinds(in.EntityTypes, DefaultSearchKinds)
	if err != nil {
		return out, err
	}
	in.Query = q
	in.EntityTypes = kinds
	in.Limit = ClampLimit(in.Limit)

	key := cacheKey(in)
	if deps.Cache != nil {
		var hit SearchResult
		ok, cerr := deps.Cache.Get(ctx, CacheNamespace, key, &hit)
		if cerr != nil {
			deps.Log.Warn("search cache read failed", "error", cerr)
		}
		observability.Current().IncCacheLookup(CacheNamespace, ok)
		if ok {
			observability.Current().IncSearch(hit.SearchType)
			return hit, nil
		}
	}

	ctx, span := observability.StartStage(ctx, "search")
	defer func() { observability.EndStage(span, err) }()

	out, err = run(ctx, deps, in, filters)
	if err != nil {
		err = fmt.Errorf("search: %w", err)
		return out, err
	}
	observability.Current().IncSearch(out.SearchType)

	wanted := SearchTypeFTSOnly
	if in.UseSemantic {
		wanted = SearchTypeHybrid
	}
	if deps.Cache != nil && out.SearchType == wanted {
		if cerr := deps.Cache.Set(ctx, CacheNamespace, key, out); cerr != nil {
			deps.Log.Warn("search cache write failed", "error", cerr)
		}
	}
	return out, nil
}

func applySearchDefaults(deps *SearchDeps) {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Caps == nil {
		deps.Caps = &Capabilities{}
	}
	if deps.LexicalWeight <= 0 && deps.SemanticWeight <= 0 {
		deps.LexicalWeight, deps.SemanticWeight = DefaultLexicalWeight, DefaultSemanticWeight
	}
	if deps.SemanticFloor <= 0 {
		deps.SemanticFloor = DefaultSemanticFloor
	}
	if deps.CandidateLimit <= 0 {
		deps.CandidateLimit = DefaultCandidateLimit
	}
}

// ClampLimit maps a requested limit into [1, MaxSearchLimit]; zero or less
// means the default.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultSearchLimit
	case n > MaxSearchLimit:
		return MaxSearchLimit
	}
	return n
}

type hitKey struct {
	kind string
	id   uuid.UUID
}

func run(ctx context.Context, deps SearchDeps, in SearchInput, filters Filters) (SearchResult, error) {
	out := SearchResult{Results: []SearchHit{}, SearchType: SearchTypeFTSOnly}
	tokens := Tokenize(in.Query)
	dbc := dbctx.Context{Ctx: ctx}

	var semantic map[hitKey]float64
	if in.UseSemantic {
		if ok, reason := deps.Caps.Semantic(ctx, deps.Vectors, deps.Embedder); !ok {
			deps.Log.Info("semantic search unavailable", "reason", reason)
		} else if scores, err := semanticScores(ctx, deps, in, filters); err != nil {
			deps.Log.Warn("semantic search failed; using lexical only", "error", err)
		} else {
			semantic = scores
			out.SearchType = SearchTypeHybrid
		}
	}

	hits := map[hitKey]*SearchHit{}
	where := filters.Predicates()
	for _, kind := range in.EntityTypes {
		top, err := lexicalTop(ctx, deps, kind, in, tokens, where, filters)
		if err != nil {
			return out, err
		}
		for _, h := range top {
			hits[hitKey{kind: h.EntityType, id: h.EntityID}] = h
		}

		var missing []uuid.UUID
		for k := range semantic {
			if k.kind == kind && hits[k] == nil {
				missing = append(missing, k.id)
			}
		}
		if len(missing) > 0 {
			sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })
			docs, err := deps.Doc.GetByEntityIDs(dbc, kind, missing, nil)
			if err != nil {
				return out, fmt.Errorf("semantic docs %s: %w", kind, err)
			}
			for _, d := range docs {
				if h, ok := newHit(d, in.Query, tokens, filters); ok {
					hits[hitKey{kind: h.EntityType, id: h.EntityID}] = h
				}
			}
		}
	}

	for k, h := range hits {
		if s, ok := semantic[k]; ok {
			v := s
			h.SemanticScore = &v
			h.CombinedScore = deps.LexicalWeight*h.TextScore + deps.SemanticWeight*s
		} else {
			h.CombinedScore = h.TextScore
		}
		if h.CombinedScore > 0 {
			out.Results = append(out.Results, *h)
		}
	}
	sort.Slice(out.Results, func(i, j int) bool {
		return ranksAbove(out.Results[i].CombinedScore, &out.Results[i], out.Results[j].CombinedScore, &out.Results[j])
	})
	if len(out.Results) > in.Limit {
		out.Results = out.Results[:in.Limit]
	}
	out.Total = len(out.Results)
	return out, nil
}

// lexicalTop pages through every doc of kind that matches a query token and
// keeps the limit best by text score. Exact filters are applied in SQL; the
// rest are checked on each row.
func lexicalTop(ctx context.Context, deps SearchDeps, kind string, in SearchInput, tokens []string, where []db.Predicate, filters Filters) ([]*SearchHit, error) {
	dbc := dbctx.Context{Ctx: ctx}
	top := &hitHeap{}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs, err := deps.Doc.LexicalCandidates(dbc, repos.CandidateQuery{
			EntityType: kind,
			Tokens:     tokens,
			Where:      where,
			After:      after,
			Limit:      deps.CandidateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("lexical %s: %w", kind, err)
		}
		for _, d := range docs {
			h, ok := newHit(d, in.Query, tokens, filters)
			if !ok {
				continue
			}
			heap.Push(top, h)
			if top.Len() > in.Limit {
				heap.Pop(top)
			}
		}
		if len(docs) < deps.CandidateLimit {
			break
		}
		after = docs[len(docs)-1].ID
	}
	return *top, nil
}

func newHit(d *types.EntityDoc, query string, tokens []string, filters Filters) (*SearchHit, bool) {
	meta := map[string]any{}
	if len(d.Metadata) > 0 {
		_ = json.Unmarshal(d.Metadata, &meta)
	}
	if !filters.Match(meta) {
		return nil, false
	}
	return &SearchHit{
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		Title:      d.Title,
		Snippet:    truncateRunes(d.DocText, snippetLen),
		Metadata:   meta,
		TextScore:  LexicalScore(query, tokens, d.Title, d.DocText),
	}, true
}

// ranksAbove orders hits by score, then title, then entity id.
func ranksAbove(sa float64, a *SearchHit, sb float64, b *SearchHit) bool {
	if sa != sb {
		return sa > sb
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.EntityID.String() < b.EntityID.String()
}

// hitHeap is a min-heap on text score rank; the root is the weakest hit.
type hitHeap []*SearchHit

func (h hitHeap) Len() int { return len(h) }
func (h hitHeap) Less(i, j int) bool {
	return ranksAbove(h[j].TextScore, h[j], h[i].TextScore, h[i])
}
func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)   { *h = append(*h, x.(*SearchHit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func semanticScores(ctx context.Context, deps SearchDeps, in SearchInput, filters Filters) (map[hitKey]float64, error) {
	vecs, err := deps.Embedder.Embed(ctx, []string{truncateRunes(in.Query, MaxEmbedChars)})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed query: empty vector")
	}
	topK := in.Limit * 4
	if topK > MaxVectorTopK {
		topK = MaxVectorTopK
	}
	out := map[hitKey]float64{}
	for _, kind := range in.EntityTypes {
		matches, err := deps.Vectors.QueryMatches(ctx, kind, vecs[0], topK, filters.VectorFilter())
		if err != nil {
			return nil, fmt.Errorf("vector query %s: %w", kind, err)
		}
		for _, m := range matches {
			if m.Score <= deps.SemanticFloor {
				continue
			}
			id, err := uuid.Parse(m.ID)
			if err != nil {
				continue
			}
			out[hitKey{kind: kind, id: id}] = math.Min(m.Score, 1)
		}
	}
	return out, nil
}

func cacheKey(in SearchInput) string {
	raw, _ := json.Marshal(struct {
		Q string         `json:"q"`
		T []string       `json:"t"`
		F map[string]any `json:"f"`
		S bool           `json:"s"`
		L int            `json:"l"`
	}{strings.ToLower(in.Query), in.EntityTypes, in.Filters, in.UseSemantic, in.Limit})
	return string(raw)
}

// Filters are the allow-listed search filters.
type Filters struct {
	MinAUM      *float64
	Country     string
	Strategy    string
	FirmType    string
	VintageYear *int
}

// ParseFilters accepts min_aum, country, strategy, firm_type and
// vintage_year. Any other key, or a value of the wrong shape, is an
// ErrInvalidArgument.
func ParseFilters(raw map[string]any) (Filters, error) {
	var f Filters
	for _, k := range sortedFilterKeys(raw) {
		v := raw[k]
		if v == nil {
			continue
		}
		switch k {
		case "min_aum":
			n, ok := number(v)
			if !ok {
				return f, fmt.Errorf("filter min_aum must be a number: %w", dgerrors.ErrInvalidArgument)
			}
			f.MinAUM = &n
		case "vintage_year":
			n, ok := number(v)
			if !ok || n != math.Trunc(n) {
				return f, fmt.Errorf("filter vintage_year must be an integer: %w", dgerrors.ErrInvalidArgument)
			}
			y := int(n)
			f.VintageYear = &y
		case "country", "strategy", "firm_type":
			s, ok := v.(string)
			if !ok {
				return f, fmt.Errorf("filter %s must be a string: %w", k, dgerrors.ErrInvalidArgument)
			}
			s = strings.TrimSpace(s)
			switch k {
			case "country":
				f.Country = s
			case "strategy":
				f.Strategy = s
			default:
				f.FirmType = s
			}
		default:
			return f, fmt.Errorf("unknown filter %q: %w", k, dgerrors.ErrInvalidArgument)
		}
	}
	return f, nil
}

// Match applies the filters to a doc's metadata. A filter on an absent
// field excludes the doc.
func (f Filters) Match(meta map[string]any) bool {
	if f.MinAUM != nil {
		n, ok := number(meta["aum_usd"])
		if !ok || n < *f.MinAUM {
			return false
		}
	}
	if f.VintageYear != nil {
		n, ok := number(meta["vintage_year"])
		if !ok || int(n) != *f.VintageYear {
			return false
		}
	}
	if f.Country != "" && !containsFold(meta["country"], f.Country) {
		return false
	}
	if f.Strategy != "" && !containsFold(meta["strategy"], f.Strategy) {
		return false
	}
	if f.FirmType != "" {
		s, _ := meta["firm_type"].(string)
		if s != f.FirmType {
			return false
		}
	}
	return true
}

// VectorFilter pushes the exact-match and range filters down to the vector
// index; substring filters are applied afterwards by Match.
func (f Filters) VectorFilter() map[string]any {
	out := map[string]any{}
	if f.MinAUM != nil {
		out["aum_usd"] = map[string]any{"$gte": *f.MinAUM}
	}
	if f.VintageYear != nil {
		out["vintage_year"] = *f.VintageYear
	}
	if f.FirmType != "" {
		out["firm_type"] = f.FirmType
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Predicates pushes the exact-match filters down to the doc query. Substring
// and range filters stay with Match.
func (f Filters) Predicates() []db.Predicate {
	var out []db.Predicate
	if f.FirmType != "" {
		out = append(out, db.Expr(datatypes.JSONQuery("metadata").Equals(f.FirmType, "firm_type")))
	}
	if f.VintageYear != nil {
		out = append(out, db.Expr(datatypes.JSONQuery("metadata").Equals(*f.VintageYear, "vintage_year")))
	}
	return out
}

func containsFold(v any, want string) bool {
	s, ok := v.(string)
	return ok && strings.Contains(strings.ToLower(s), strings.ToLower(want))
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	return 0, false
}

func sortedFilterKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
