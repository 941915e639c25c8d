package search

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/modules/search/steps"
	"github.com/yungbote/dealgraph-backend/internal/platform/embeddings"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/qdrant"
	"github.com/yungbote/dealgraph-backend/internal/platform/rediscache"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Doc     repos.EntityDocRepo
	Firm    repos.FirmRepo
	Fund    repos.FundRepo
	Company repos.CompanyRepo
	Deal    repos.DealRepo
	Person  repos.PersonRepo

	Embedder embeddings.Client
	Vectors  qdrant.VectorStore
	Cache    rediscache.Cache

	LexicalWeight  float64
	SemanticWeight float64
	SemanticFloor  float64
}

// Usecases owns one capability memo, so the vector index is checked once per
// Usecases value.
type Usecases struct {
	deps UsecasesDeps
	caps *steps.Capabilities
}

func New(deps UsecasesDeps) Usecases {
	return Usecases{deps: deps, caps: &steps.Capabilities{}}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	DocsInput        = steps.DocsInput
	DocsOutput       = steps.DocsOutput
	EmbeddingsInput  = steps.EmbeddingsInput
	EmbeddingsOutput = steps.EmbeddingsOutput
	SearchInput      = steps.SearchInput
	SearchResult     = steps.SearchResult
	SearchHit        = steps.SearchHit
)

func (u Usecases) GenerateDocs(ctx context.Context, in DocsInput) (DocsOutput, error) {
	return steps.GenerateDocs(ctx, steps.DocsDeps{
		DB:      u.deps.DB,
		Log:     u.deps.Log,
		Doc:     u.deps.Doc,
		Firm:    u.deps.Firm,
		Fund:    u.deps.Fund,
		Company: u.deps.Company,
		Deal:    u.deps.Deal,
		Person:  u.deps.Person,
		Cache:   u.deps.Cache,
	}, in)
}

func (u Usecases) GenerateEmbeddings(ctx context.Context, in EmbeddingsInput) (EmbeddingsOutput, error) {
	return steps.GenerateEmbeddings(ctx, steps.EmbeddingsDeps{
		DB:       u.deps.DB,
		Log:      u.deps.Log,
		Doc:      u.deps.Doc,
		Embedder: u.deps.Embedder,
		Vectors:  u.deps.Vectors,
		Cache:    u.deps.Cache,
	}, in)
}

func (u Usecases) Search(ctx context.Context, in SearchInput) (SearchResult, error) {
	return steps.Search(ctx, steps.SearchDeps{
		Log:            u.deps.Log,
		Doc:            u.deps.Doc,
		Embedder:       u.deps.Embedder,
		Vectors:        u.deps.Vectors,
		Cache:          u.deps.Cache,
		Caps:           u.caps,
		LexicalWeight:  u.deps.LexicalWeight,
		SemanticWeight: u.deps.SemanticWeight,
		SemanticFloor:  u.deps.SemanticFloor,
	}, in)
}
