package steps

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/dealgraph-backend/internal/normalization"
)

// Row is one data row of a sheet, keyed by header. Empty cells are absent.
type Row struct {
	Number int
	Values map[string]string
}

// Chunk is a run of consecutive data rows from one sheet.
type Chunk struct {
	Headers  []string
	Rows     []Row
	StartRow int
}

// LastRow is the sheet row number of the final row in the chunk.
func (c Chunk) LastRow() int {
	if len(c.Rows) == 0 {
		return c.StartRow - 1
	}
	return c.Rows[len(c.Rows)-1].Number
}

// RowProvider streams the rows of one source file, one sheet at a time.
type RowProvider interface {
	SourceFile() string
	Sheets() []string
	// Read calls fn with chunks of at most size rows, skipping every row
	// numbered <= skipThrough. Row 1 is the header row.
	Read(ctx context.Context, sheet string, skipThrough, size int, fn func(Chunk) error) error
	Close() error
}

// OpenRowProvider picks the reader by file extension.
func OpenRowProvider(path string) (RowProvider, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return openXLSX(path)
	case ".csv", ".txt":
		return openCSV(path)
	default:
		return nil, fmt.Errorf("unsupported source file type %q", filepath.Ext(path))
	}
}

type xlsxProvider struct {
	path string
	f    *excelize.File
}

func openXLSX(path string) (*xlsxProvider, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &xlsxProvider{path: path, f: f}, nil
}

func (p *xlsxProvider) SourceFile() string { return filepath.Base(p.path) }

func (p *xlsxProvider) Sheets() []string { return p.f.GetSheetList() }

func (p *xlsxProvider) Close() error { return p.f.Close() }

func (p *xlsxProvider) Read(ctx context.Context, sheet string, skipThrough, size int, fn func(Chunk) error) error {
	rows, err := p.f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("open sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	next := func() ([]string, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Error()
		}
		cols, err := rows.Columns()
		return cols, true, err
	}
	return streamRows(ctx, next, skipThrough, size, fn)
}

type csvProvider struct {
	path  string
	file  *os.File
	sheet string
}

func openCSV(path string) (*csvProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &csvProvider{path: path, file: f, sheet: stem}, nil
}

func (p *csvProvider) SourceFile() string { return filepath.Base(p.path) }

func (p *csvProvider) Sheets() []string { return []string{p.sheet} }

func (p *csvProvider) Close() error { return p.file.Close() }

func (p *csvProvider) Read(ctx context.Context, sheet string, skipThrough, size int, fn func(Chunk) error) error {
	if sheet != p.sheet {
		return fmt.Errorf("sheet %q not found in %s", sheet, p.SourceFile())
	}
	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := csv.NewReader(bufio.NewReader(p.file))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	first := true
	next := func() ([]string, bool, error) {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if first && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}
		first = false
		return rec, true, nil
	}
	return streamRows(ctx, next, skipThrough, size, fn)
}

// streamRows turns a cell-row iterator into header-keyed chunks.
func streamRows(ctx context.Context, next func() ([]string, bool, error), skipThrough, size int, fn func(Chunk) error) error {
	if size <= 0 {
		size = DefaultChunkSize
	}
	cells, ok, err := next()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	headers := Headers(cells)

	chunk := Chunk{Headers: headers}
	rowNumber := 1
	for {
		cells, ok, err := next()
		if err != nil {
			return fmt.Errorf("read row %d: %w", rowNumber+1, err)
		}
		if !ok {
			break
		}
		rowNumber++
		if rowNumber <= skipThrough {
			continue
		}
		values := RowValues(headers, cells)
		if len(values) == 0 {
			continue
		}
		if len(chunk.Rows) == 0 {
			chunk.StartRow = rowNumber
		}
		chunk.Rows = append(chunk.Rows, Row{Number: rowNumber, Values: values})
		if len(chunk.Rows) >= size {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(chunk); err != nil {
				return err
			}
			chunk = Chunk{Headers: headers}
		}
	}
	if len(chunk.Rows) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(chunk)
	}
	return nil
}

// Headers trims the header cells. Blank headers become column_{i} (1-based)
// and repeated headers get a numeric suffix so no cell is dropped.
func Headers(cells []string) []string {
	out := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, c := range cells {
		h := strings.TrimSpace(c)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		out[i] = h
	}
	return out
}

// RowValues keys cells by header. Blank cells and cells past the last header
// are omitted; date-looking values are rewritten to ISO-8601.
func RowValues(headers []string, cells []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, c := range cells {
		if i >= len(headers) {
			break
		}
		v := strings.TrimSpace(c)
		if v == "" {
			continue
		}
		out[headers[i]] = isoDateOrSelf(v)
	}
	return out
}

var (
	dateLike = regexp.MustCompile(`^\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}$`)
	timeLike = regexp.MustCompile(`^(\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4})[ T](\d{1,2}:\d{2}(:\d{2})?)(\.\d+)?(Z|[+-]\d{2}:?\d{2})?$`)
)

// Layouts excelize renders for the built-in date formats, tried before the
// general parser.
var excelDateLayouts = []string{"01-02-06", "1-2-06", "1/2/06", "01/02/06"}

func isoDateOrSelf(v string) string {
	if m := timeLike.FindStringSubmatch(v); m != nil {
		d, ok := parseDatePart(m[1])
		if !ok {
			return v
		}
		clock := m[2]
		if strings.Count(clock, ":") == 1 {
			clock += ":00"
		}
		t, err := time.Parse("15:04:05", zeroPadClock(clock))
		if err != nil {
			return v
		}
		zone, ok := parseZone(m[5])
		if !ok {
			return v
		}
		out := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone)
		return out.UTC().Format(time.RFC3339)
	}
	if dateLike.MatchString(v) {
		if d, ok := parseDatePart(v); ok {
			return d.Format("2006-01-02")
		}
	}
	return v
}

// parseZone reads a "Z", "+05:00" or "-0130" suffix. No suffix means UTC.
func parseZone(z string) (*time.Location, bool) {
	if z == "" || z == "Z" {
		return time.UTC, true
	}
	digits := strings.ReplaceAll(z[1:], ":", "")
	if len(digits) != 4 {
		return nil, false
	}
	h, err1 := strconv.Atoi(digits[:2])
	mm, err2 := strconv.Atoi(digits[2:])
	if err1 != nil || err2 != nil || h > 14 || mm > 59 {
		return nil, false
	}
	offset := h*3600 + mm*60
	if z[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(z, offset), true
}

func parseDatePart(s string) (time.Time, bool) {
	if len(s) <= 8 {
		for _, l := range excelDateLayouts {
			if t, err := time.Parse(l, s); err == nil {
				return t, true
			}
		}
	}
	return normalization.ParseDate(s)
}

func zeroPadClock(clock string) string {
	parts := strings.Split(clock, ":")
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}
