package app

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strings"

	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/qdrant"
)

var (
	newQdrantVectorStore   = qdrant.NewVectorStore
	resolveQdrantConfigEnv = qdrant.ResolveConfigFromEnv
)

type VectorProvider string

const (
	VectorProviderQdrant VectorProvider = "qdrant"
	VectorProviderMemory VectorProvider = "memory"
	VectorProviderNone   VectorProvider = "none"
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider     VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantVector VectorProviderBootstrapErrorCode = "missing_qdrant_vector_dim"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorQdrantConfigFailed  VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed       VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// selectVectorProvider resolves an empty choice: qdrant when QDRANT_URL is
// set, none otherwise.
func selectVectorProvider(configured string) VectorProvider {
	p := strings.TrimSpace(strings.ToLower(configured))
	if p != "" {
		return VectorProvider(p)
	}
	if strings.TrimSpace(os.Getenv("QDRANT_URL")) != "" {
		return VectorProviderQdrant
	}
	return VectorProviderNone
}

// resolveVectorStore returns nil with no error when semantic search is off.
func resolveVectorStore(log *logger.Logger, cfg Config) (qdrant.VectorStore, VectorProvider, error) {
	provider := selectVectorProvider(cfg.VectorProvider)
	switch provider {
	case VectorProviderNone:
		log.Info("Vector store disabled; search runs lexical only")
		return nil, provider, nil

	case VectorProviderMemory:
		log.Info("Selecting vector store provider", "provider", provider)
		return instrumentVectorStore(string(provider), qdrant.NewMemoryStore()), provider, nil

	case VectorProviderQdrant:
		qcfg, err := resolveQdrantConfigEnv()
		if err != nil {
			classified := classifyVectorProviderBootstrapError(string(provider), err)
			log.Error("Vector store provider bootstrap failed",
				"provider", provider,
				"error_code", vectorProviderBootstrapErrorCode(classified),
				"error", classified,
			)
			return nil, provider, classified
		}
		log.Info(
			"Selecting vector store provider",
			"provider", provider,
			"qdrant_url", qcfg.URL,
			"qdrant_collection", qcfg.Collection,
			"qdrant_namespace_prefix", qcfg.NamespacePrefix,
			"qdrant_vector_dim", qcfg.VectorDim,
		)
		vs, err := newQdrantVectorStore(log, qcfg)
		if err != nil {
			classified := classifyVectorProviderBootstrapError(string(provider), err)
			log.Error("Vector store provider bootstrap failed",
				"provider", provider,
				"error_code", vectorProviderBootstrapErrorCode(classified),
				"error", classified,
			)
			return nil, provider, classified
		}
		return instrumentVectorStore(string(provider), vs), provider, nil

	default:
		err := &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: string(provider),
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
		log.Error("Vector store provider selection failed", "provider", provider, "error", err)
		return nil, provider, err
	}
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingVectorDim:
			return wrap(VectorProviderBootstrapErrorMissingQdrantVector)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		default:
			return wrap(VectorProviderBootstrapErrorQdrantConfigFailed)
		}
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorConnectFailed
}
