package normalization

import (
	"regexp"
	"strings"
)

var (
	namePunct   = regexp.MustCompile(`[,.'"\-]`)
	legalSuffix = regexp.MustCompile(`(?i)\s+(llc|lp|inc|corp|corporation|ltd|limited|plc|llp|pllc|company|partners|gmbh|sarl|trust|fund|capital|management|holdings|group)$`)
	leadArticle = regexp.MustCompile(`(?i)^(the|a|an)\s+`)
)

// Name is the matching key for organisation and person names: punctuation
// dropped, whitespace collapsed, one trailing legal suffix and one leading
// article removed, lowercased.
func Name(raw string) string {
	s := namePunct.ReplaceAllString(raw, "")
	s = strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
	s = legalSuffix.ReplaceAllString(s, "")
	s = leadArticle.ReplaceAllString(s, "")
	return strings.ToLower(strings.TrimSpace(s))
}

// Tokens that appear alone when an investor list is split badly.
var noiseTokens = map[string]bool{
	"inc": true, "inc.": true, "llc": true, "l.l.c.": true, "ltd": true, "ltd.": true,
	"limited": true, "corp": true, "corp.": true, "co": true, "co.": true, "plc": true,
	"gmbh": true, "s.a.": true, "sarl": true, "bv": true, "ag": true, "kk": true,
	"pte": true, "pty": true, "lp": true, "l.p.": true, "llp": true, "pllc": true,
	"partners": true, "the": true, "a": true, "an": true,
}

// IsNoiseToken reports whether a split list entry is only a legal suffix, an
// article or a placeholder.
func IsNoiseToken(tok string) bool {
	t := strings.ToLower(strings.TrimSpace(tok))
	return noiseTokens[t] || IsPlaceholder(t)
}
