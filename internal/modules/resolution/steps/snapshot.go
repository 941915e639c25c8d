package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

// snapshotRow is the scratch table the blocking joins run against. It lives
// in a private in-memory SQLite database for the length of one resolve.
type snapshotRow struct {
	Idx            int    `gorm:"column:idx;primaryKey;autoIncrement:false"`
	NameNormalized string `gorm:"column:name_normalized"`
	Prefix         string `gorm:"column:prefix;index"`

	Country         *string `gorm:"column:country;index"`
	InstitutionType *string `gorm:"column:institution_type"`
	City            *string `gorm:"column:city"`

	Vintage  *int    `gorm:"column:vintage;index"`
	Strategy *string `gorm:"column:strategy"`
	Manager  *string `gorm:"column:manager;index"`
}

func (snapshotRow) TableName() string { return "resolution_snapshot" }

// BlockingRule names a snapshot column; two records are candidates when they
// agree on it. Holds lists the comparison fields that rule's pairs say
// nothing about.
type BlockingRule struct {
	Name   string
	Column string
	Holds  []string
}

var (
	FirmBlockingRules = []BlockingRule{
		{Name: "name_prefix", Column: "prefix", Holds: []string{"name_normalized"}},
		{Name: "country", Column: "country", Holds: []string{"headquarters_country"}},
	}
	FundBlockingRules = []BlockingRule{
		{Name: "vintage_year", Column: "vintage", Holds: []string{"vintage_year"}},
		{Name: "name_prefix", Column: "prefix", Holds: []string{"name_normalized"}},
		{Name: "manager_name", Column: "manager", Holds: []string{"manager_name"}},
	}
)

// SkippedBlock is a block left out of pair generation for being too large.
type SkippedBlock struct {
	Rule string `json:"rule"`
	Key  string `json:"key"`
	Size int    `json:"size"`
}

// pair is one candidate pair; rules has bit r set when rule r produced it.
type pair struct {
	a, b  int
	rules uint32
}

type snapshot struct {
	db      *gorm.DB
	records []*record
}

func namePrefix(s string) string {
	r := []rune(s)
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

func optString(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// loadRecords pages every entity of kind into memory, ordered by id.
func loadRecords(ctx context.Context, kind string, pageSize int, firms repos.FirmRepo, funds repos.FundRepo) ([]*record, error) {
	dbc := dbctx.Context{Ctx: ctx}
	var out []*record
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := 0
		switch kind {
		case types.KindFirm:
			rows, err := firms.Page(dbc, after, pageSize)
			if err != nil {
				return nil, err
			}
			for _, f := range rows {
				out = append(out, &record{
					ID:              f.ID,
					Name:            f.Name,
					NameNormalized:  f.NameNormalized,
					Country:         strings.ToLower(optString(f.HeadquartersCountry)),
					InstitutionType: strings.ToLower(optString(f.InstitutionType)),
					City:            strings.ToLower(optString(f.HeadquartersCity)),
				})
				after = f.ID
			}
			n = len(rows)
		case types.KindFund:
			rows, err := funds.Page(dbc, after, pageSize)
			if err != nil {
				return nil, err
			}
			for _, f := range rows {
				out = append(out, &record{
					ID:             f.ID,
					Name:           f.Name,
					NameNormalized: f.NameNormalized,
					Vintage:        f.VintageYear,
					Strategy:       strings.ToLower(optString(f.Strategy)),
					Manager:        normalization.Name(optString(f.ManagerFirmName)),
				})
				after = f.ID
			}
			n = len(rows)
		default:
			return nil, fmt.Errorf("unknown kind %q", kind)
		}
		if n < pageSize {
			break
		}
	}
	for i, r := range out {
		r.Idx = i
	}
	return out, nil
}

func openSnapshot(ctx context.Context, records []*record) (*snapshot, error) {
	sq, err := db.OpenSQLite(db.MemoryDSN, true)
	if err != nil {
		return nil, err
	}
	sq = sq.WithContext(ctx)
	if err := sq.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("snapshot migrate: %w", err)
	}
	rows := make([]*snapshotRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, &snapshotRow{
			Idx:             r.Idx,
			NameNormalized:  r.NameNormalized,
			Prefix:          namePrefix(r.NameNormalized),
			Country:         nilIfEmpty(r.Country),
			InstitutionType: nilIfEmpty(r.InstitutionType),
			City:            nilIfEmpty(r.City),
			Vintage:         r.Vintage,
			Strategy:        nilIfEmpty(r.Strategy),
			Manager:         nilIfEmpty(r.Manager),
		})
	}
	if len(rows) > 0 {
		if err := sq.CreateInBatches(rows, 500).Error; err != nil {
			return nil, fmt.Errorf("snapshot load: %w", err)
		}
	}
	return &snapshot{db: sq, records: records}, nil
}

func (s *snapshot) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

type blockSize struct {
	BlockKey string `gorm:"column:block_key"`
	Size     int    `gorm:"column:size"`
}

// candidatePairs unions the pairs every rule produces. Empty keys never block
// and blocks larger than maxBlock are skipped and reported.
func (s *snapshot) candidatePairs(rules []BlockingRule, maxBlock int) ([]pair, []SkippedBlock, error) {
	seen := map[[2]int]uint32{}
	var skipped []SkippedBlock
	for r, rule := range rules {
		col := rule.Column
		var sizes []blockSize
		err := s.db.Table("resolution_snapshot").
			Select(fmt.Sprintf("CAST(%s AS TEXT) AS block_key, COUNT(*) AS size", col)).
			Where(fmt.Sprintf("%s IS NOT NULL AND CAST(%s AS TEXT) <> ''", col, col)).
			Group(col).
			Having("COUNT(*) > 1").
			Scan(&sizes).Error
		if err != nil {
			return nil, nil, fmt.Errorf("block sizes %s: %w", rule.Name, err)
		}
		var excluded []string
		for _, b := range sizes {
			if b.Size > maxBlock {
				excluded = append(excluded, b.BlockKey)
				skipped = append(skipped, SkippedBlock{Rule: rule.Name, Key: b.BlockKey, Size: b.Size})
			}
		}

		q := s.db.Table("resolution_snapshot AS a").
			Select("a.idx AS a, b.idx AS b").
			Joins(fmt.Sprintf("JOIN resolution_snapshot AS b ON a.%s = b.%s AND a.idx < b.idx", col, col)).
			Where(fmt.Sprintf("a.%s IS NOT NULL AND CAST(a.%s AS TEXT) <> ''", col, col))
		if len(excluded) > 0 {
			q = q.Where(fmt.Sprintf("CAST(a.%s AS TEXT) NOT IN ?", col), excluded)
		}
		rows, err := q.Rows()
		if err != nil {
			return nil, nil, fmt.Errorf("block pairs %s: %w", rule.Name, err)
		}
		for rows.Next() {
			var a, b int
			if err := rows.Scan(&a, &b); err != nil {
				rows.Close()
				return nil, nil, err
			}
			seen[[2]int{a, b}] |= 1 << uint(r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, nil, err
		}
	}
	out := make([]pair, 0, len(seen))
	for k, mask := range seen {
		out = append(out, pair{a: k[0], b: k[1], rules: mask})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].a != out[j].a {
			return out[i].a < out[j].a
		}
		return out[i].b < out[j].b
	})
	return out, skipped, nil
}
