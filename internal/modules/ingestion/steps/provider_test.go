package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestHeadersFillBlanksAndDeduplicate(t *testing.T) {
	got := Headers([]string{" Firm ID ", "", "Name", "Name"})
	want := []string{"Firm ID", "column_2", "Name", "Name_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRowValuesOmitBlanksAndRewriteDates(t *testing.T) {
	headers := []string{"Deal ID", "Deal Date", "Closed At", "Value", "Note"}
	got := RowValues(headers, []string{"D1", "01-15-20", "2021-03-04 9:30", " 12.5 ", "   ", "overflow"})

	if _, ok := got["Note"]; ok {
		t.Fatalf("blank cell must be omitted: %v", got)
	}
	if len(got) != 4 {
		t.Fatalf("unexpected keys: %v", got)
	}
	if got["Deal Date"] != "2020-01-15" {
		t.Fatalf("expected ISO date, got %q", got["Deal Date"])
	}
	if got["Closed At"] != "2021-03-04T09:30:00Z" {
		t.Fatalf("expected RFC3339 timestamp, got %q", got["Closed At"])
	}
	if got["Value"] != "12.5" {
		t.Fatalf("expected trimmed value, got %q", got["Value"])
	}
}

func TestRowValuesApplyZoneOffsets(t *testing.T) {
	cases := map[string]string{
		"2020-01-01T10:00:00+05:00":  "2020-01-01T05:00:00Z",
		"2020-01-01 23:30-0130":      "2020-01-02T01:00:00Z",
		"2020-01-01T10:00:00Z":       "2020-01-01T10:00:00Z",
		"2020-01-01T10:00:00.5+0000": "2020-01-01T10:00:00Z",
		"2020-01-01T10:00:00+25:00":  "2020-01-01T10:00:00+25:00",
	}
	for in, want := range cases {
		got := RowValues([]string{"At"}, []string{in})
		if got["At"] != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got["At"])
		}
	}
}

func TestCSVProviderStreamsChunksWithRowNumbers(t *testing.T) {
	path := writeFile(t, "deals.csv", "\ufeffDeal ID,Company\nD1,Acme\n,\nD2,Beta\nD3,Gamma\n")
	p, err := OpenRowProvider(path)
	if err != nil {
		t.Fatalf("OpenRowProvider: %v", err)
	}
	defer p.Close()

	if sheets := p.Sheets(); len(sheets) != 1 || sheets[0] != "deals" {
		t.Fatalf("expected the file stem as the only sheet, got %v", sheets)
	}

	var chunks []Chunk
	err = p.Read(context.Background(), "deals", 0, 2, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Headers[0] != "Deal ID" {
		t.Fatalf("BOM not stripped from header: %q", chunks[0].Headers[0])
	}
	// Row 3 is blank and is skipped without shifting later row numbers.
	if chunks[0].Rows[0].Number != 2 || chunks[0].Rows[1].Number != 4 || chunks[1].StartRow != 5 {
		t.Fatalf("unexpected row numbering: %+v", chunks)
	}

	var resumed []Row
	err = p.Read(context.Background(), "deals", 4, 10, func(c Chunk) error {
		resumed = append(resumed, c.Rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("Read resumed: %v", err)
	}
	if len(resumed) != 1 || resumed[0].Values["Deal ID"] != "D3" {
		t.Fatalf("expected only row 5 after skipping through 4, got %+v", resumed)
	}
}

func TestXLSXProviderReadsEverySheet(t *testing.T) {
	path := writeWorkbook(t, "gp.xlsx", map[string][][]interface{}{
		"Firms": {
			{"Firm ID", "", "Firm Name"},
			{"F1", "x", "Acme Capital"},
		},
		"Contacts": {
			{"Contact ID", "Full Name"},
			{"C1", "Jane Roe"},
			{"C2", "John Doe"},
		},
	})
	p, err := OpenRowProvider(path)
	if err != nil {
		t.Fatalf("OpenRowProvider: %v", err)
	}
	defer p.Close()

	counts := map[string]int{}
	for _, sheet := range p.Sheets() {
		err := p.Read(context.Background(), sheet, 0, 100, func(c Chunk) error {
			counts[sheet] += len(c.Rows)
			if sheet == "Firms" && c.Rows[0].Values["column_2"] != "x" {
				t.Fatalf("blank header not renamed: %+v", c.Rows[0].Values)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Read %s: %v", sheet, err)
		}
	}
	if counts["Firms"] != 1 || counts["Contacts"] != 2 {
		t.Fatalf("unexpected row counts: %v", counts)
	}
}

func TestOpenRowProviderRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "notes.pdf", "x")
	if _, err := OpenRowProvider(path); err == nil {
		t.Fatalf("expected an error for .pdf")
	}
}

func writeFile(tb testing.TB, name, content string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", name, err)
	}
	return path
}

// writeWorkbook builds an xlsx with one sheet per map entry. The default
// "Sheet1" is removed so only the requested sheets remain.
func writeWorkbook(tb testing.TB, name string, sheets map[string][][]interface{}) string {
	tb.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for sheet, rows := range sheets {
		if _, err := f.NewSheet(sheet); err != nil {
			tb.Fatalf("new sheet: %v", err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				tb.Fatalf("cell name: %v", err)
			}
			r := row
			if err := f.SetSheetRow(sheet, cell, &r); err != nil {
				tb.Fatalf("set row: %v", err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		tb.Fatalf("delete default sheet: %v", err)
	}
	path := filepath.Join(tb.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		tb.Fatalf("save workbook: %v", err)
	}
	return path
}
