package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Predicate is one parameterized WHERE fragment. SQL must be a constant chosen
// from an allow-list; only Args carry caller input. Expr, when set, is used
// instead of SQL for dialect-specific expressions such as JSON lookups.
type Predicate struct {
	SQL  string
	Args []interface{}
	Expr clause.Expression
}

func Where(sql string, args ...interface{}) Predicate {
	return Predicate{SQL: sql, Args: args}
}

func Expr(e clause.Expression) Predicate {
	return Predicate{Expr: e}
}

// ListQuery is a paginated, filtered list request against one table.
type ListQuery struct {
	Where  []Predicate
	Order  string
	Offset int
	Limit  int
}

// Apply adds every predicate to q.
func Apply(q *gorm.DB, preds []Predicate) *gorm.DB {
	for _, p := range preds {
		if p.Expr != nil {
			q = q.Where(p.Expr)
			continue
		}
		q = q.Where(p.SQL, p.Args...)
	}
	return q
}
