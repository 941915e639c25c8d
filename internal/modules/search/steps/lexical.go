package steps

import (
	"strings"
	"unicode"
)

const (
	coverageWeight = 0.5
	tfWeight       = 0.2
	titleWeight    = 0.3
)

// Tokenize lowercases q and splits it on anything that is not a letter or
// digit. Single-character tokens and repeats are dropped.
func Tokenize(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// LexicalScore rates a doc against the query tokens in [0,1]. Coverage is
// the share of tokens found anywhere; the term-frequency part saturates as
// tf/(tf+1); the title part is the share of tokens found in the title. An
// exact title match scores 1.
func LexicalScore(query string, tokens []string, title, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lt := strings.ToLower(title)
	if strings.TrimSpace(lt) == strings.ToLower(strings.TrimSpace(query)) {
		return 1
	}
	lx := strings.ToLower(text)
	var covered, inTitle int
	var tf float64
	for _, tok := range tokens {
		n := strings.Count(lx, tok)
		t := strings.Contains(lt, tok)
		if t && n == 0 {
			n = 1
		}
		if n == 0 {
			continue
		}
		covered++
		tf += float64(n) / float64(n+1)
		if t {
			inTitle++
		}
	}
	if covered == 0 {
		return 0
	}
	k := float64(len(tokens))
	score := coverageWeight*float64(covered)/k + tfWeight*tf/k + titleWeight*float64(inTitle)/k
	if score > 1 {
		score = 1
	}
	return score
}
