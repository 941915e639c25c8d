package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// MemoryDSN opens a private in-memory SQLite database. Each call to OpenSQLite
// with it yields an isolated database.
const MemoryDSN = ":memory:"

// OpenSQLite opens a SQLite database at path. With MemoryDSN the pool is pinned
// to one connection so every query sees the same in-memory database.
func OpenSQLite(path string, quiet bool) (*gorm.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = MemoryDSN
	}
	lg := newGormLogger(0)
	if quiet {
		lg = gormLogger.Default.LogMode(gormLogger.Silent)
	}
	dsn := path
	if path != MemoryDSN && !strings.Contains(path, "?") {
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   lg,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == MemoryDSN {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// IsSQLite reports whether db talks to SQLite.
func IsSQLite(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite"
}
