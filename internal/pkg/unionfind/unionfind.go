package unionfind

// Set is a disjoint-set forest with path compression and union by rank.
// Keys are added on first use. The zero value is not usable; call New.
type Set[K comparable] struct {
	parent map[K]K
	rank   map[K]int
}

func New[K comparable]() *Set[K] {
	return &Set[K]{parent: map[K]K{}, rank: map[K]int{}}
}

// Add registers k as a singleton if it is not already known.
func (s *Set[K]) Add(k K) {
	if _, ok := s.parent[k]; !ok {
		s.parent[k] = k
	}
}

// Find returns the root of k's set, compressing the path on the way.
func (s *Set[K]) Find(k K) K {
	s.Add(k)
	root := k
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for k != root {
		next := s.parent[k]
		s.parent[k] = root
		k = next
	}
	return root
}

// Union merges the sets of a and b. It reports false when they were already
// in the same set.
func (s *Set[K]) Union(a, b K) bool {
	ra, rb := s.Find(a), s.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case s.rank[ra] < s.rank[rb]:
		s.parent[ra] = rb
	case s.rank[ra] > s.rank[rb]:
		s.parent[rb] = ra
	default:
		s.parent[rb] = ra
		s.rank[ra]++
	}
	return true
}

func (s *Set[K]) Connected(a, b K) bool { return s.Find(a) == s.Find(b) }

func (s *Set[K]) Len() int { return len(s.parent) }

// Groups returns every set with more than one member, keyed by root.
func (s *Set[K]) Groups() map[K][]K {
	all := map[K][]K{}
	for k := range s.parent {
		r := s.Find(k)
		all[r] = append(all[r], k)
	}
	for r, members := range all {
		if len(members) < 2 {
			delete(all, r)
		}
	}
	return all
}

// Canonical maps every member of a multi-member set to the least member of
// that set under less. Roots depend on union order; the least member does
// not, so the mapping is the same for any order of unions.
func (s *Set[K]) Canonical(less func(a, b K) bool) map[K]K {
	out := map[K]K{}
	for _, members := range s.Groups() {
		rep := members[0]
		for _, m := range members[1:] {
			if less(m, rep) {
				rep = m
			}
		}
		for _, m := range members {
			out[m] = rep
		}
	}
	return out
}
