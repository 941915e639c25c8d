package qdrant

import (
	"errors"
	"testing"
)

func TestResolveConfigFromEnvValid(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")
	t.Setenv("QDRANT_CREATE_COLLECTION", "true")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Collection != "dealgraph_entities" || cfg.NamespacePrefix != "dg" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.VectorDim != 1536 || !cfg.CreateCollection {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestResolveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name string
		url  string
		dim  string
		want ConfigErrorCode
	}{
		{"missing url", "", "1536", ConfigErrorMissingURL},
		{"relative url", "qdrant:6333", "1536", ConfigErrorInvalidURL},
		{"missing dim", "http://qdrant:6333", "", ConfigErrorMissingVectorDim},
		{"bad dim", "http://qdrant:6333", "abc", ConfigErrorInvalidVectorDim},
		{"zero dim", "http://qdrant:6333", "0", ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QDRANT_URL", tc.url)
			t.Setenv("QDRANT_VECTOR_DIM", tc.dim)
			_, err := ResolveConfigFromEnv()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Code != tc.want {
				t.Fatalf("code: want=%s got=%s", tc.want, cfgErr.Code)
			}
		})
	}
}
