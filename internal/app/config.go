package app

import (
	"strings"
	"time"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	"github.com/yungbote/dealgraph-backend/internal/platform/envutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type Config struct {
	LogMode string
	DB      db.Config

	IngestPath             string
	IngestChunkSize        int
	IngestSheetConcurrency int
	ExtractBatchSize       int
	SynonymsFile           string

	ResolutionFirmThreshold float64
	ResolutionFundThreshold float64
	ResolutionMaxBlockSize  int
	ResolutionUSamplePairs  int
	ResolutionSeed          int64

	CoinvestMaxInvestorsPerDeal int

	SearchLexicalWeight  float64
	SearchSemanticWeight float64
	SearchSemanticFloor  float64

	// VectorProvider is qdrant, memory or none. Empty selects qdrant when
	// QDRANT_URL is set and none otherwise.
	VectorProvider string

	QuarantinePageSize int

	ScheduleCron string
	MetricsAddr  string
	Environment  string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode: envutil.String("LOG_MODE", "development"),
		DB: db.Config{
			Driver:       strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
			DSN:          envutil.String("DATABASE_DSN", ""),
			Host:         envutil.String("POSTGRES_HOST", "localhost"),
			Port:         envutil.String("POSTGRES_PORT", "5432"),
			User:         envutil.String("POSTGRES_USER", "postgres"),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", "dealgraph"),
			SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:   envutil.String("SQLITE_PATH", "dealgraph.db"),
			MaxOpenConns: envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envutil.Int("POSTGRES_MAX_IDLE_CONNS", 10),
			SlowQuery:    envutil.Duration("POSTGRES_SLOW_QUERY", 2*time.Second),
		},

		IngestPath:             envutil.String("INGEST_PATH", ""),
		IngestChunkSize:        envutil.Int("INGEST_CHUNK_SIZE", 10000),
		IngestSheetConcurrency: envutil.Int("INGEST_SHEET_CONCURRENCY", 4),
		ExtractBatchSize:       envutil.Int("EXTRACT_BATCH_SIZE", 1000),
		SynonymsFile:           envutil.String("NORMALIZATION_SYNONYMS_FILE", ""),

		ResolutionFirmThreshold: envutil.Float("RESOLUTION_FIRM_THRESHOLD", 0.80),
		ResolutionFundThreshold: envutil.Float("RESOLUTION_FUND_THRESHOLD", 0.85),
		ResolutionMaxBlockSize:  envutil.Int("RESOLUTION_MAX_BLOCK_SIZE", 2000),
		ResolutionUSamplePairs:  envutil.Int("RESOLUTION_U_SAMPLE_PAIRS", 1000000),
		ResolutionSeed:          int64(envutil.Int("RESOLUTION_SEED", 42)),

		CoinvestMaxInvestorsPerDeal: envutil.Int("COINVEST_MAX_INVESTORS_PER_DEAL", 50),

		SearchLexicalWeight:  envutil.Float("SEARCH_LEXICAL_WEIGHT", 0.3),
		SearchSemanticWeight: envutil.Float("SEARCH_SEMANTIC_WEIGHT", 0.7),
		SearchSemanticFloor:  envutil.Float("SEARCH_SEMANTIC_FLOOR", 0.6),

		VectorProvider: strings.ToLower(envutil.String("VECTOR_PROVIDER", "")),

		QuarantinePageSize: envutil.Int("QUARANTINE_PAGE_SIZE", 1000),

		ScheduleCron: envutil.String("SCHEDULE_CRON", "0 2 * * *"),
		MetricsAddr:  envutil.String("METRICS_ADDR", ""),
		Environment:  envutil.String("APP_ENV", "development"),
	}
	if log != nil {
		log.Info("config loaded",
			"db_driver", cfg.DB.Driver,
			"ingest_chunk_size", cfg.IngestChunkSize,
			"ingest_sheet_concurrency", cfg.IngestSheetConcurrency,
			"vector_provider", cfg.VectorProvider,
		)
	}
	return cfg
}
