package steps

import (
	"math"
	"testing"
)

func TestJaroWinklerKnownValues(t *testing.T) {
	cases := []struct {
		a, b string
		jaro float64
		jw   float64
	}{
		{"martha", "marhta", 0.944444, 0.961111},
		{"dwayne", "duane", 0.822222, 0.840000},
		{"dixon", "dicksonx", 0.766667, 0.813333},
		{"acme", "acme", 1, 1},
		{"", "acme", 0, 0},
		{"abc", "xyz", 0, 0},
	}
	for _, tc := range cases {
		if got := Jaro(tc.a, tc.b); math.Abs(got-tc.jaro) > 1e-5 {
			t.Fatalf("Jaro(%q,%q) = %f, want %f", tc.a, tc.b, got, tc.jaro)
		}
		if got := JaroWinkler(tc.a, tc.b); math.Abs(got-tc.jw) > 1e-5 {
			t.Fatalf("JaroWinkler(%q,%q) = %f, want %f", tc.a, tc.b, got, tc.jw)
		}
	}
}

func TestJaroWinklerIsSymmetric(t *testing.T) {
	pairs := [][2]string{{"blackstone", "blackstone group"}, {"kkr", "kohlberg kravis roberts"}, {"sequoia", "sequioa"}}
	for _, p := range pairs {
		if a, b := JaroWinkler(p[0], p[1]), JaroWinkler(p[1], p[0]); math.Abs(a-b) > 1e-12 {
			t.Fatalf("asymmetric for %v: %f vs %f", p, a, b)
		}
	}
}
