package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
	pgSerialization   = "40001"
	pgDeadlock        = "40P01"
)

// IsUniqueViolation reports whether err is a unique-constraint failure on
// either PostgreSQL or SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// IsRetryable reports whether a transaction failed for a reason a plain retry can fix.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerialization || pgErr.Code == pgDeadlock
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "database is locked")
}

// IsUndefinedTable reports a missing relation, typically an unmigrated database.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such table")
}
