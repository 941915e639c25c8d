package testutil

import (
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

var (
	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

// tables are wiped between tests when running against a shared PostgreSQL.
var tables = []string{
	"raw_record", "ingestion_checkpoint",
	"normalized_firm", "normalized_fund", "normalized_contact", "normalized_deal",
	"firm", "fund", "person", "company", "deal",
	"firm_manages_fund", "person_employment", "deal_investor_firm", "deal_investor_fund", "deal_target_company",
	"firm_alias", "fund_alias",
	"quarantine_record", "co_investment_edge", "entity_doc", "job_run",
}

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database private to the test: a fresh in-memory SQLite
// database, or the TEST_POSTGRES_DSN database emptied before use.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		return postgresDB(tb, dsn)
	}

	sq, err := db.OpenSQLite(db.MemoryDSN, true)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrateAll(sq); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := sq.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return sq
}

func postgresDB(tb testing.TB, dsn string) *gorm.DB {
	tb.Helper()
	pgOnce.Do(func() {
		pgDB, pgErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if pgErr != nil {
			return
		}
		if pgErr = db.AutoMigrateAll(pgDB); pgErr != nil {
			return
		}
		pgErr = db.EnsureIndexes(pgDB)
	})
	if pgErr != nil {
		tb.Fatalf("failed to init test db: %v", pgErr)
	}
	for _, t := range tables {
		if err := pgDB.Exec("DELETE FROM " + t).Error; err != nil {
			tb.Fatalf("reset %s: %v", t, err)
		}
	}
	return pgDB
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
