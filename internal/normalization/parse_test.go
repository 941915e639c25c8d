package normalization

import (
	"math"
	"testing"
	"time"
)

func TestParseCurrency(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"$1.5B", 1.5e9, true},
		{"1,500 mn", 1.5e9, true},
		{"250k", 250e3, true},
		{"2 billion", 2e9, true},
		{"€ 3.2m", 3.2e6, true},
		{"USD 100", 100, true},
		{42.5, 42.5, true},
		{"n/a", 0, false},
		{"Undisclosed", 0, false},
		{"—", 0, false},
		{"about ten", 0, false},
		{"", 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseCurrency(tc.in)
		if ok != tc.ok || (ok && math.Abs(got-tc.want) > 1e-6) {
			t.Fatalf("ParseCurrency(%v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"2021-03-04", "2021-03-04", true},
		{"31/12/2020", "2020-12-31", true},
		{"12/31/2020", "2020-12-31", true},
		{"03/04/2020", "2020-04-03", true},
		{"5 Jan 2019", "2019-01-05", true},
		{"January 15, 2018", "2018-01-15", true},
		{"2019-07-01T10:00:00Z", "2019-07-01", true},
		{"2019-07-01 garbage", "2019-07-01", true},
		{time.Date(2017, 2, 3, 0, 0, 0, 0, time.UTC), "2017-02-03", true},
		{"-", "", false},
		{"sometime", "", false},
		{12, "", false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		if ok != tc.ok || (ok && got.Format("2006-01-02") != tc.want) {
			t.Fatalf("ParseDate(%v) = %v,%v want %s,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseYear(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{2015, 2015, true},
		{2015.0, 2015, true},
		{"Vintage 2019", 2019, true},
		{"FY1999/2000", 2000, true},
		{1850, 0, false},
		{"n/a", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseYear(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseYear(%v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePercentage(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"15%", 0.15, true},
		{"0.5%", 0.005, true},
		{"150%", 1.5, true},
		{0.12, 0.12, true},
		{-0.3, -0.3, true},
		{15.0, 0.15, true},
		{"22.5", 0.225, true},
		{250.0, 250, true},
		{"n/a", 0, false},
		{"abc%", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParsePercentage(tc.in)
		if ok != tc.ok || (ok && math.Abs(got-tc.want) > 1e-9) {
			t.Fatalf("ParsePercentage(%v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

// Every parser must answer for arbitrary input without panicking.
func TestParsersAreTotal(t *testing.T) {
	inputs := []any{
		nil, "", " ", "%", "$", "k", "bn", "-", "1e400", "NaN", "Inf", "--5", "٣", "\x00",
		math.NaN(), math.Inf(1), -0.0, int64(math.MaxInt64), []byte("12"), true, struct{}{},
		map[string]any{"a": 1}, []int{1}, time.Time{},
	}
	for _, in := range inputs {
		ParseCurrency(in)
		ParseDate(in)
		ParseYear(in)
		ParsePercentage(in)
		ParseInt(in)
		ParseFloat(in)
		ParseBool(in)
		CleanString(in)
	}
	if _, ok := ParseCurrency(math.NaN()); ok {
		t.Fatalf("NaN must be absent")
	}
	if _, ok := ParseDate(time.Time{}); ok {
		t.Fatalf("zero time must be absent")
	}
}

func TestParseIntAndBool(t *testing.T) {
	if v, ok := ParseInt("1,200"); !ok || v != 1200 {
		t.Fatalf("ParseInt: %v %v", v, ok)
	}
	if _, ok := ParseInt("1.5"); ok {
		t.Fatalf("ParseInt should reject fractions")
	}
	if v, ok := ParseBool("Yes"); !ok || !v {
		t.Fatalf("ParseBool yes: %v %v", v, ok)
	}
	if _, ok := ParseBool("maybe"); ok {
		t.Fatalf("ParseBool should reject unknown tokens")
	}
	if v, ok := ParseFloat("2.1x"); !ok || v != 2.1 {
		t.Fatalf("ParseFloat multiple: %v %v", v, ok)
	}
}
