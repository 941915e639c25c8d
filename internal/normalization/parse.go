package normalization

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholders = map[string]bool{
	"":            true,
	"n/a":         true,
	"na":          true,
	"-":           true,
	"—":           true,
	"–":           true,
	"undisclosed": true,
	"unknown":     true,
	"none":        true,
	"null":        true,
}

// IsPlaceholder reports whether s is one of the "no value" markers used in exports.
func IsPlaceholder(s string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(s))]
}

// CleanString trims v and returns it unless it is empty or a placeholder.
func CleanString(v any) (string, bool) {
	s, ok := text(v)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if IsPlaceholder(s) {
		return "", false
	}
	return s, true
}

var (
	currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "", " ", "", "\u00a0", "")
	currencyCode    = regexp.MustCompile(`^(usd|eur|gbp|jpy|chf|cad|aud)`)
	amountPattern   = regexp.MustCompile(`^(-?\d+(?:\.\d+)?|-?\.\d+)(k|thousand|mm|mn|m|million|bn|b|billion)?$`)
)

var magnitudes = map[string]float64{
	"":         1,
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mm":       1e6,
	"mn":       1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}

// ParseCurrency parses amounts such as "$1.5B", "1,500 mn" or "250k".
func ParseCurrency(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	s, ok := CleanString(v)
	if !ok {
		return 0, false
	}
	s = strings.ToLower(currencySymbols.Replace(s))
	s = currencyCode.ReplaceAllString(s, "")
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	base, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(base) || math.IsInf(base, 0) {
		return 0, false
	}
	return base * magnitudes[m[2]], true
}

// Day-first layouts are tried before month-first ones, so 03/04/2020 is 3 April.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2006/1/2",
	"2-1-2006",
	"1-2-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var isoPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ParseDate parses a calendar date. Values with a time component keep it; pure
// dates are returned at midnight UTC.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	s, ok := CleanString(v)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if p := isoPrefix.FindString(s); p != "" {
		if t, err := time.Parse("2006-01-02", p); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// ParseYear extracts a year in [1900, 2100].
func ParseYear(v any) (int, bool) {
	if f, ok := number(v); ok {
		y := int(f)
		if y >= 1900 && y <= 2100 {
			return y, true
		}
		return 0, false
	}
	s, ok := CleanString(v)
	if !ok {
		return 0, false
	}
	m := yearPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// ParsePercentage returns a fraction. An explicit % sign always means points.
// Bare values in [-1, 1] are already fractions, bare values up to 100 in
// magnitude are points, and anything larger is passed through unchanged.
func ParsePercentage(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return scalePercent(f), true
	}
	s, ok := CleanString(v)
	if !ok {
		return 0, false
	}
	explicit := strings.Contains(s, "%")
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "%", ""), ",", ""))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if explicit {
		return f / 100, true
	}
	return scalePercent(f), true
}

func scalePercent(f float64) float64 {
	switch a := math.Abs(f); {
	case a <= 1:
		return f
	case a <= 100:
		return f / 100
	default:
		return f
	}
}

// ParseInt parses whole numbers, tolerating thousands separators and ".0" tails.
func ParseInt(v any) (int, bool) {
	if f, ok := number(v); ok {
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	}
	s, ok := CleanString(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// ParseFloat parses a plain number.
func ParseFloat(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	s, ok := CleanString(v)
	if !ok {
		return 0, false
	}
	s = strings.TrimSuffix(strings.ToLower(strings.ReplaceAll(s, ",", "")), "x")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseBool accepts yes/no style flags.
func ParseBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if f, ok := number(v); ok {
		return f != 0, true
	}
	s, ok := CleanString(v)
	if !ok {
		return false, false
	}
	switch strings.ToLower(s) {
	case "y", "yes", "true", "t", "1", "listed", "public":
		return true, true
	case "n", "no", "false", "f", "0", "unlisted", "private":
		return false, true
	default:
		return false, false
	}
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func text(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	case []byte:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	default:
		if f, ok := number(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	}
}
