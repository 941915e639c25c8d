package unionfind

import (
	"math/rand"
	"testing"
)

func less(a, b string) bool { return a < b }

func TestTransitiveMerge(t *testing.T) {
	s := New[string]()
	s.Union("a", "b")
	s.Union("b", "c")
	s.Add("d")

	if !s.Connected("a", "c") {
		t.Fatalf("a and c should be connected through b")
	}
	if s.Connected("a", "d") {
		t.Fatalf("d should be alone")
	}
	if s.Union("c", "a") {
		t.Fatalf("union of connected keys should report false")
	}
	groups := s.Groups()
	if len(groups) != 1 {
		t.Fatalf("expected one multi-member group, got %v", groups)
	}
	for _, members := range groups {
		if len(members) != 3 {
			t.Fatalf("unexpected group %v", members)
		}
	}
}

func TestCanonicalIsOrderInvariant(t *testing.T) {
	pairs := [][2]string{{"m", "k"}, {"k", "z"}, {"b", "q"}, {"q", "a"}, {"x", "y"}}
	want := map[string]string{
		"m": "k", "k": "k", "z": "k",
		"b": "a", "q": "a", "a": "a",
		"x": "x", "y": "x",
	}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
		s := New[string]()
		for _, p := range pairs {
			if r.Intn(2) == 0 {
				s.Union(p[0], p[1])
			} else {
				s.Union(p[1], p[0])
			}
		}
		got := s.Canonical(less)
		if len(got) != len(want) {
			t.Fatalf("unexpected mapping size: %v", got)
		}
		for k, v := range want {
			if got[k] != v {
				t.Fatalf("order %v: %s -> %s, want %s", pairs, k, got[k], v)
			}
		}
	}
}

func TestFindCompressesPaths(t *testing.T) {
	s := New[int]()
	for i := 1; i < 100; i++ {
		s.Union(i-1, i)
	}
	root := s.Find(99)
	for i := 0; i < 100; i++ {
		if s.parent[i] != root && s.Find(i) != root {
			t.Fatalf("%d not under root", i)
		}
	}
	for i := 0; i < 100; i++ {
		s.Find(i)
		if s.parent[i] != root {
			t.Fatalf("path not compressed for %d", i)
		}
	}
	if s.Len() != 100 {
		t.Fatalf("unexpected len %d", s.Len())
	}
}
