package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

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
	DefaultEmbedBatch       = 100
	DefaultEmbedConcurrency = 4
	MaxEmbedChars           = 8000
)

// DefaultEmbedKinds are embedded when no kinds are requested.
var DefaultEmbedKinds = []string{types.KindFirm, types.KindFund, types.KindCompany}

type EmbeddingsDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Doc      repos.EntityDocRepo
	Embedder embeddings.Client
	// Vectors is optional; without it vectors live only on the doc rows.
	Vectors qdrant.VectorStore
	Cache   rediscache.Cache

	BatchSize   int
	Concurrency int
}

type EmbeddingsInput struct {
	Kinds []string `json:"kinds,omitempty"`
	// Limit caps the docs embedded per kind; 0 means all pending.
	Limit int `json:"limit,omitempty"`
}

type EmbeddingsOutput struct {
	Counts map[string]int `json:"counts"`
	Model  string         `json:"model,omitempty"`
}

// GenerateEmbeddings embeds every doc that has no vector yet. Batches of one
// kind run concurrently; the first failing batch cancels the rest of that kind.
func GenerateEmbeddings(ctx context.Context, deps EmbeddingsDeps, in EmbeddingsInput) (EmbeddingsOutput, error) {
	out := EmbeddingsOutput{Counts: map[string]int{}}
	if deps.DB == nil || deps.Doc == nil || deps.Embedder == nil {
		return out, fmt.Errorf("generate embeddings: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultEmbedBatch
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultEmbedConcurrency
	}
	kinds, err := resolveKinds(in.Kinds, DefaultEmbedKinds)
	if err != nil {
		return out, err
	}
	out.Model = deps.Embedder.Model()

	ctx, span := observability.StartStage(ctx, "generate_embeddings")
	defer func() { observability.EndStage(span, err) }()

	for _, kind := range kinds {
		n, kerr := embedKind(ctx, deps, kind, in.Limit)
		out.Counts[kind] = n
		if kerr != nil {
			err = fmt.Errorf("generate embeddings %s: %w", kind, kerr)
			return out, err
		}
		deps.Log.Info("embeddings generated", "entity_type", kind, "count", n, "model", out.Model)
	}
	if deps.Cache != nil {
		if cerr := deps.Cache.Invalidate(ctx, CacheNamespace); cerr != nil {
			deps.Log.Warn("search cache invalidation failed", "error", cerr)
		}
	}
	return out, nil
}

func embedKind(ctx context.Context, deps EmbeddingsDeps, kind string, limit int) (int, error) {
	pending, err := pendingDocs(ctx, deps.Doc, kind, deps.BatchSize, limit)
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deps.Concurrency)
	for start := 0; start < len(pending); start += deps.BatchSize {
		end := start + deps.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		g.Go(func() error {
			n, err := embedBatch(gctx, deps, kind, batch)
			done.Add(int64(n))
			return err
		})
	}
	err = g.Wait()
	return int(done.Load()), err
}

func pendingDocs(ctx context.Context, docs repos.EntityDocRepo, kind string, page, limit int) ([]*types.EntityDoc, error) {
	var out []*types.EntityDoc
	after := uuid.Nil
	for limit <= 0 || len(out) < limit {
		n := page
		if limit > 0 && limit-len(out) < n {
			n = limit - len(out)
		}
		rows, err := docs.PageWithoutEmbedding(dbctx.Context{Ctx: ctx}, kind, after, n)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		out = append(out, rows...)
		after = rows[len(rows)-1].ID
	}
	return out, nil
}

func embedBatch(ctx context.Context, deps EmbeddingsDeps, kind string, batch []*types.EntityDoc) (int, error) {
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = truncateRunes(d.DocText, MaxEmbedChars)
	}
	vecs, err := deps.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(batch) {
		return 0, fmt.Errorf("embedding count mismatch (got %d want %d)", len(vecs), len(batch))
	}

	if deps.Vectors != nil {
		points := make([]qdrant.Vector, len(batch))
		for i, d := range batch {
			points[i] = qdrant.Vector{ID: d.EntityID.String(), Values: vecs[i], Metadata: payload(d)}
		}
		if err := deps.Vectors.Upsert(ctx, kind, points); err != nil {
			return 0, fmt.Errorf("vector upsert: %w", err)
		}
	}

	model := deps.Embedder.Model()
	err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for i, d := range batch {
			raw, err := json.Marshal(vecs[i])
			if err != nil {
				return err
			}
			if err := deps.Doc.SetEmbedding(dbc, d.ID, datatypes.JSON(raw), model); err != nil {
				return fmt.Errorf("set embedding %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// payload carries the doc metadata so vector queries can pre-filter.
func payload(d *types.EntityDoc) map[string]any {
	out := map[string]any{}
	if len(d.Metadata) > 0 {
		_ = json.Unmarshal(d.Metadata, &out)
	}
	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}
	out["entity_type"] = d.EntityType
	out["title"] = d.Title
	return out
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
