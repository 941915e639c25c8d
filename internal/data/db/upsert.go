package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertBatchSize is the number of rows written per INSERT ... ON CONFLICT statement.
const UpsertBatchSize = 1000

// BatchSize returns the rows-per-statement for tx. SQLite caps bound parameters
// well below PostgreSQL, so wide tables are written in half batches there.
func BatchSize(tx *gorm.DB) int {
	if IsSQLite(tx) {
		return UpsertBatchSize / 2
	}
	return UpsertBatchSize
}

// CoalesceAssignments builds "col = COALESCE(excluded.col, table.col)" for each
// column so an upsert only overwrites with non-null incoming values.
func CoalesceAssignments(table string, cols []string) clause.Set {
	set := make(clause.Set, 0, len(cols))
	for _, c := range cols {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: c},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(excluded.%s, %s.%s)", c, table, c)),
		})
	}
	return set
}

// NonEmptyAssignments is CoalesceAssignments for NOT NULL text columns, where
// an empty incoming string counts as absent.
func NonEmptyAssignments(table string, cols []string) clause.Set {
	set := make(clause.Set, 0, len(cols))
	for _, c := range cols {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: c},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(NULLIF(excluded.%s, ''), %s.%s)", c, table, c)),
		})
	}
	return set
}

// Greatest returns the dialect's two-argument maximum function name.
func Greatest(tx *gorm.DB) string {
	if IsSQLite(tx) {
		return "MAX"
	}
	return "GREATEST"
}

// Columns turns names into conflict target columns.
func Columns(names ...string) []clause.Column {
	out := make([]clause.Column, 0, len(names))
	for _, n := range names {
		out = append(out, clause.Column{Name: n})
	}
	return out
}
