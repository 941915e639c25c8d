package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/extract"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/generate_docs"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/generate_embeddings"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/ingest"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/link"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/quarantine_replay"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/quarantine_sweep"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/rebuild_edges"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/resolve"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/transform"
	"github.com/yungbote/dealgraph-backend/internal/jobs/runner"
	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/catalog"
	"github.com/yungbote/dealgraph-backend/internal/modules/coinvest"
	"github.com/yungbote/dealgraph-backend/internal/modules/extraction"
	"github.com/yungbote/dealgraph-backend/internal/modules/ingestion"
	"github.com/yungbote/dealgraph-backend/internal/modules/quarantine"
	"github.com/yungbote/dealgraph-backend/internal/modules/resolution"
	"github.com/yungbote/dealgraph-backend/internal/modules/search"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type Services struct {
	Ingestion  ingestion.Usecases
	Extraction extraction.Usecases
	Resolution resolution.Usecases
	Quarantine quarantine.Usecases
	Coinvest   coinvest.Usecases
	Search     search.Usecases
	Catalog    catalog.Usecases

	JobRegistry *jobrt.Registry
	Runner      *runner.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r *repos.Set, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	fields, err := normalization.LoadFieldMapper(cfg.SynonymsFile)
	if err != nil {
		return Services{}, fmt.Errorf("load field synonyms: %w", err)
	}

	ingestionUC := ingestion.New(ingestion.UsecasesDeps{
		DB:               db,
		Log:              log.With("module", "ingestion"),
		Raw:              r.Raw,
		Checkpoint:       r.Checkpoint,
		ChunkSize:        cfg.IngestChunkSize,
		SheetConcurrency: cfg.IngestSheetConcurrency,
	})

	quarantineUC := quarantine.New(quarantine.UsecasesDeps{
		Log:        log.With("module", "quarantine"),
		Quarantine: r.Quarantine,
		Link:       r.Link,
		Firm:       r.Firm,
		Fund:       r.Fund,
		Person:     r.Person,
		Alias:      r.Alias,
		PageSize:   cfg.QuarantinePageSize,
	})

	extractionUC := extraction.New(extraction.UsecasesDeps{
		DB:         db,
		Log:        log.With("module", "extraction"),
		Raw:        r.Raw,
		Normalized: r.Normalized,
		Firm:       r.Firm,
		Fund:       r.Fund,
		Person:     r.Person,
		Company:    r.Company,
		Deal:       r.Deal,
		Link:       r.Link,
		Alias:      r.Alias,
		Fields:     fields,
		BatchSize:  cfg.ExtractBatchSize,
		Sweeper:    quarantineUC,
	})

	resolutionUC := resolution.New(resolution.UsecasesDeps{
		DB:            db,
		Log:           log.With("module", "resolution"),
		Firm:          r.Firm,
		Fund:          r.Fund,
		Alias:         r.Alias,
		FirmThreshold: cfg.ResolutionFirmThreshold,
		FundThreshold: cfg.ResolutionFundThreshold,
		MaxBlockSize:  cfg.ResolutionMaxBlockSize,
		USamplePairs:  cfg.ResolutionUSamplePairs,
		Seed:          cfg.ResolutionSeed,
	})

	coinvestUC := coinvest.New(coinvest.UsecasesDeps{
		DB:                  db,
		Log:                 log.With("module", "coinvest"),
		Link:                r.Link,
		Edge:                r.Edge,
		Firm:                r.Firm,
		Deal:                r.Deal,
		Company:             r.Company,
		Cache:               clients.Cache,
		Neo4j:               clients.Neo4j,
		MaxInvestorsPerDeal: cfg.CoinvestMaxInvestorsPerDeal,
	})

	searchUC := search.New(search.UsecasesDeps{
		DB:             db,
		Log:            log.With("module", "search"),
		Doc:            r.Doc,
		Firm:           r.Firm,
		Fund:           r.Fund,
		Company:        r.Company,
		Deal:           r.Deal,
		Person:         r.Person,
		Embedder:       clients.Embedder,
		Vectors:        clients.Vectors,
		Cache:          clients.Cache,
		LexicalWeight:  cfg.SearchLexicalWeight,
		SemanticWeight: cfg.SearchSemanticWeight,
		SemanticFloor:  cfg.SearchSemanticFloor,
	})

	catalogUC := catalog.New(catalog.UsecasesDeps{
		Log:        log.With("module", "catalog"),
		Firm:       r.Firm,
		Fund:       r.Fund,
		Person:     r.Person,
		Company:    r.Company,
		Deal:       r.Deal,
		Link:       r.Link,
		Alias:      r.Alias,
		Edge:       r.Edge,
		Quarantine: r.Quarantine,
		Doc:        r.Doc,
	})

	jobRegistry := jobrt.NewRegistry()
	handlers := []jobrt.Handler{
		ingest.New(log, ingestionUC),
		transform.New(log, extractionUC),
		extract.New(log, extractionUC),
		link.New(log, extractionUC),
		resolve.New(log, resolutionUC),
		quarantine_sweep.New(log, quarantineUC),
		quarantine_replay.New(log, quarantineUC),
		rebuild_edges.New(log, coinvestUC),
		generate_docs.New(log, searchUC),
		generate_embeddings.New(log, searchUC),
	}
	for _, h := range handlers {
		if err := jobRegistry.Register(h); err != nil {
			return Services{}, err
		}
	}

	return Services{
		Ingestion:   ingestionUC,
		Extraction:  extractionUC,
		Resolution:  resolutionUC,
		Quarantine:  quarantineUC,
		Coinvest:    coinvestUC,
		Search:      searchUC,
		Catalog:     catalogUC,
		JobRegistry: jobRegistry,
		Runner:      runner.New(db, log, r.JobRun, jobRegistry),
	}, nil
}
