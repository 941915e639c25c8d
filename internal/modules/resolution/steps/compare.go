package steps

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// record is the slice of an entity the comparisons and blocking rules read.
// Empty strings and nil vintage mean unknown.
type record struct {
	Idx            int
	ID             uuid.UUID
	Name           string
	NameNormalized string

	Country         string
	InstitutionType string
	City            string

	Vintage  *int
	Strategy string
	Manager  string
}

// nullLevel marks a comparison where either side is unknown. It carries no
// evidence either way.
const nullLevel = -1

// Comparison scores one field of a pair on an ordinal scale: 0 is "else",
// higher levels are stronger agreement.
type Comparison struct {
	Field  string
	Labels []string
	level  func(a, b *record) int
}

// Levels counts the non-null levels, "else" included.
func (c Comparison) Levels() int { return len(c.Labels) }

// jaroWinklerLevels grades two strings: exact, then each threshold in
// descending order, then else.
func jaroWinklerLevels(field string, get func(*record) string, thresholds ...float64) Comparison {
	labels := []string{"else"}
	for i := len(thresholds) - 1; i >= 0; i-- {
		labels = append(labels, fmt.Sprintf("jw>=%.2f", thresholds[i]))
	}
	labels = append(labels, "exact")
	return Comparison{
		Field:  field,
		Labels: labels,
		level: func(a, b *record) int {
			x, y := get(a), get(b)
			if x == "" || y == "" {
				return nullLevel
			}
			if x == y {
				return len(thresholds) + 1
			}
			s := JaroWinkler(x, y)
			for i, th := range thresholds {
				if s >= th {
					return len(thresholds) - i
				}
			}
			return 0
		},
	}
}

func exactLevels(field string, get func(*record) string) Comparison {
	return Comparison{
		Field:  field,
		Labels: []string{"else", "exact"},
		level: func(a, b *record) int {
			x, y := get(a), get(b)
			if x == "" || y == "" {
				return nullLevel
			}
			if strings.EqualFold(x, y) {
				return 1
			}
			return 0
		},
	}
}

func vintageLevels() Comparison {
	return Comparison{
		Field:  "vintage_year",
		Labels: []string{"else", "exact"},
		level: func(a, b *record) int {
			if a.Vintage == nil || b.Vintage == nil {
				return nullLevel
			}
			if *a.Vintage == *b.Vintage {
				return 1
			}
			return 0
		},
	}
}

// FirmComparisons and FundComparisons are the per-kind field models.
var (
	FirmComparisons = []Comparison{
		jaroWinklerLevels("name_normalized", func(r *record) string { return r.NameNormalized }, 0.95, 0.88, 0.80),
		exactLevels("headquarters_country", func(r *record) string { return r.Country }),
		exactLevels("institution_type", func(r *record) string { return r.InstitutionType }),
		jaroWinklerLevels("headquarters_city", func(r *record) string { return r.City }, 0.90, 0.80),
	}
	FundComparisons = []Comparison{
		jaroWinklerLevels("name_normalized", func(r *record) string { return r.NameNormalized }, 0.95, 0.88, 0.80),
		vintageLevels(),
		exactLevels("strategy", func(r *record) string { return r.Strategy }),
		jaroWinklerLevels("manager_name", func(r *record) string { return r.Manager }, 0.95, 0.88),
	}
)

// vector is the comparison level of each field for one pair.
type vector []int8

func compare(cmps []Comparison, a, b *record) vector {
	v := make(vector, len(cmps))
	for i, c := range cmps {
		v[i] = int8(c.level(a, b))
	}
	return v
}
