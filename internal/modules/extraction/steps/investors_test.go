package steps

import (
	"reflect"
	"testing"
)

func TestSplitInvestorNames(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"Acme Capital", []string{"Acme Capital"}},
		{"Acme; Beta |Gamma", []string{"Acme", "Beta", "Gamma"}},
		{"Acme\r\nBeta\rGamma\nDelta", []string{"Acme", "Beta", "Gamma", "Delta"}},
		// Commas stay inside names.
		{"Smith, Jones & Co; Beta", []string{"Smith, Jones & Co", "Beta"}},
		{"Acme; LLC; Inc.; n/a; ; Acme", []string{"Acme"}},
		{"The; Partners; Real Partners", []string{"Real Partners"}},
	}
	for _, tc := range cases {
		if got := SplitInvestorNames(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("SplitInvestorNames(%q) = %#v, want %#v", tc.raw, got, tc.want)
		}
	}
}
