package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/platform/envutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const serviceName = "dealgraph"

// Version is stamped at build time.
var Version = "dev"

type Options struct {
	// Migrate runs AutoMigrate and index creation before wiring.
	Migrate bool
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    *repos.Set
	Clients  Clients
	Services Services

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context, opts Options) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	theDB, err := openDB(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if opts.Migrate || cfg.DB.Driver == "sqlite" {
		if err := migrate(theDB); err != nil {
			log.Sync()
			return nil, err
		}
	}

	metrics := observability.Init(log)
	runCtx, cancel := context.WithCancel(context.Background())
	metrics.StartServer(runCtx, log, cfg.MetricsAddr)
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Version:     Version,
	})

	clients, err := wireClients(log, cfg)
	if err != nil {
		cancel()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		cancel()
		clients.Close()
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		otelShutdown: shutdown,
		cancel:       cancel,
	}, nil
}

func openDB(log *logger.Logger, cfg db.Config) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		theDB, err := db.OpenSQLite(cfg.SQLitePath, false)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		log.Info("sqlite opened", "path", cfg.SQLitePath)
		return theDB, nil
	case "postgres", "":
		pg, err := db.NewPostgresService(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return pg.DB(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func migrate(theDB *gorm.DB) error {
	if err := db.AutoMigrateAll(theDB); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := db.EnsureIndexes(theDB); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
