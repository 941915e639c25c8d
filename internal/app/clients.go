package app

import (
	"context"
	"fmt"

	"github.com/yungbote/dealgraph-backend/internal/platform/embeddings"
	"github.com/yungbote/dealgraph-backend/internal/platform/envutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/dealgraph-backend/internal/platform/qdrant"
	"github.com/yungbote/dealgraph-backend/internal/platform/rediscache"
)

// Clients holds the optional external services. Every field may be nil (or
// a no-op cache) when its environment is not configured.
type Clients struct {
	Cache          rediscache.Cache
	Neo4j          *neo4jdb.Client
	Vectors        qdrant.VectorStore
	VectorProvider VectorProvider
	Embedder       embeddings.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	cache, err := rediscache.New(log, rediscache.ResolveConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("init redis cache: %w", err)
	}

	graph, err := neo4jdb.New(log, neo4jdb.ResolveConfigFromEnv())
	if err != nil {
		_ = cache.Close()
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}

	vectors, provider, err := resolveVectorStore(log, cfg)
	if err != nil {
		_ = cache.Close()
		_ = graph.Close(context.Background())
		return Clients{}, err
	}

	var embedder embeddings.Client
	if envutil.String("OPENAI_API_KEY", "") != "" {
		embedder, err = embeddings.NewClient(log, embeddings.ResolveConfigFromEnv())
		if err != nil {
			_ = cache.Close()
			_ = graph.Close(context.Background())
			return Clients{}, fmt.Errorf("init embeddings client: %w", err)
		}
	} else {
		log.Info("OPENAI_API_KEY not set; embeddings disabled")
	}

	return Clients{
		Cache:          cache,
		Neo4j:          graph,
		Vectors:        vectors,
		VectorProvider: provider,
		Embedder:       embedder,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(context.Background())
	}
}
