package steps

import (
	"math"
	"math/rand"
)

const (
	DefaultUSamplePairs  = 1_000_000
	DefaultMaxIterations = 25
	convergenceTolerance = 1e-4

	minLambda        = 0.001
	maxLambda        = 0.5
	minTrainingPairs = 10
	priorPairs       = 1.0
)

// FieldWeight is the fitted evidence of one comparison level.
type FieldWeight struct {
	Field  string  `json:"field"`
	Level  string  `json:"level"`
	M      float64 `json:"m"`
	U      float64 `json:"u"`
	Weight float64 `json:"weight"`
}

// model holds per-field, per-level m and u probabilities and the prior match
// rate lambda. Index 0 of each level slice is "else".
type model struct {
	cmps   []Comparison
	m      [][]float64
	u      [][]float64
	lambda float64
}

func newModel(cmps []Comparison) *model {
	md := &model{cmps: cmps, m: make([][]float64, len(cmps)), u: make([][]float64, len(cmps))}
	for i, c := range cmps {
		md.m[i] = make([]float64, c.Levels())
		md.u[i] = make([]float64, c.Levels())
		// Start m biased towards agreement: weight doubles with each level.
		total := 0.0
		for l := range md.m[i] {
			md.m[i][l] = math.Pow(2, float64(l))
			total += md.m[i][l]
		}
		for l := range md.m[i] {
			md.m[i][l] /= total
		}
	}
	return md
}

// estimateU fits u from random record pairs, which are overwhelmingly
// non-matches. With fewer possible pairs than the sample size every pair is
// used. Counts are Laplace smoothed so no level has zero probability.
func (md *model) estimateU(records []*record, samples int, seed int64) {
	n := len(records)
	counts := make([][]float64, len(md.cmps))
	for i, c := range md.cmps {
		counts[i] = make([]float64, c.Levels())
	}
	add := func(a, b *record) {
		v := compare(md.cmps, a, b)
		for i, l := range v {
			if l != nullLevel {
				counts[i][l]++
			}
		}
	}
	total := n * (n - 1) / 2
	if total <= samples {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				add(records[i], records[j])
			}
		}
	} else {
		r := rand.New(rand.NewSource(seed))
		for k := 0; k < samples; k++ {
			i := r.Intn(n)
			j := r.Intn(n - 1)
			if j >= i {
				j++
			}
			add(records[i], records[j])
		}
	}
	for i := range counts {
		sum := 0.0
		for _, c := range counts[i] {
			sum += c + 1
		}
		for l, c := range counts[i] {
			md.u[i][l] = (c + 1) / sum
		}
	}
}

// matchWeight is the log2 Bayes factor of v given the current m and u.
func (md *model) matchWeight(v vector) float64 {
	w := 0.0
	for i, l := range v {
		if l == nullLevel {
			continue
		}
		w += math.Log2(md.m[i][l] / md.u[i][l])
	}
	return w
}

func (md *model) priorWeight() float64 {
	return math.Log2(md.lambda / (1 - md.lambda))
}

// probability turns the posterior log2 odds into a match probability.
func (md *model) probability(v vector) float64 {
	w := md.priorWeight() + md.matchWeight(v)
	return 1 / (1 + math.Exp2(-w))
}

// priorLambda is the share of blocked pairs whose normalized names are equal,
// clamped away from the extremes. It stays fixed while m is trained.
func priorLambda(vectors []vector) float64 {
	if len(vectors) == 0 {
		return minLambda
	}
	exact := 0
	for _, v := range vectors {
		// The name comparison is always first and its top level is exact.
		if int(v[0]) == 4 {
			exact++
		}
	}
	lambda := float64(exact) / float64(len(vectors))
	return math.Min(maxLambda, math.Max(minLambda, lambda))
}

// clamp keeps field i's m from arguing against the comparison: disagreement
// ("else") may not be likelier among matches than among non-matches, and the
// top agreement level may not be less likely. Mass moved off a level is
// spread over the others in proportion.
func (md *model) clamp(i int) {
	m, u := md.m[i], md.u[i]
	last := len(m) - 1
	if last < 1 {
		return
	}
	if m[0] > u[0] {
		rest := 1 - m[0]
		m[0] = u[0]
		for l := 1; l <= last; l++ {
			if rest <= 0 {
				m[l] = (1 - u[0]) / float64(last)
			} else {
				m[l] *= (1 - u[0]) / rest
			}
		}
	}
	if m[last] < u[last] {
		rest := 1 - m[last]
		for l := 0; l < last; l++ {
			m[l] *= (1 - u[last]) / rest
		}
		m[last] = u[last]
	}
}

// TrainedRule reports one blocking rule's m training session.
type TrainedRule struct {
	Rule       string `json:"rule"`
	Pairs      int    `json:"pairs"`
	Iterations int    `json:"iterations"`
	Converged  bool   `json:"converged"`
}

// train fits m by expectation maximisation once per blocking rule, over the
// pairs that rule produced. Fields the rule blocks on agree by construction,
// so they are held out of that session and keep their m from the others.
// Lambda and u stay fixed. Each M-step adds priorPairs pseudo-pairs drawn
// from the starting m. Rules with fewer than minTrainingPairs pairs are not
// trained; a field no session trains keeps its starting m.
func (md *model) train(vectors []vector, masks []uint32, rules []BlockingRule, maxIter int) []TrainedRule {
	md.lambda = priorLambda(vectors)
	for i := range md.cmps {
		md.clamp(i)
	}
	start := md.copyM()

	acc := make([][]float64, len(md.cmps))
	for i, c := range md.cmps {
		acc[i] = make([]float64, c.Levels())
	}
	trainedBy := make([]int, len(md.cmps))

	var sessions []TrainedRule
	for r, rule := range rules {
		var sv []vector
		for k, v := range vectors {
			if masks[k]&(1<<uint(r)) != 0 {
				sv = append(sv, v)
			}
		}
		if len(sv) < minTrainingPairs {
			continue
		}
		held := make([]bool, len(md.cmps))
		for i, c := range md.cmps {
			for _, f := range rule.Holds {
				if c.Field == f {
					held[i] = true
				}
			}
		}
		sess := &model{cmps: md.cmps, m: copyLevels(start), u: md.u, lambda: md.lambda}
		it, ok := sess.fitSession(sv, held, start, maxIter)
		sessions = append(sessions, TrainedRule{Rule: rule.Name, Pairs: len(sv), Iterations: it, Converged: ok})
		for i := range md.cmps {
			if held[i] {
				continue
			}
			trainedBy[i]++
			for l, v := range sess.m[i] {
				acc[i][l] += v
			}
		}
	}

	for i := range md.cmps {
		if trainedBy[i] == 0 {
			continue
		}
		for l := range md.m[i] {
			md.m[i][l] = acc[i][l] / float64(trainedBy[i])
		}
	}
	return sessions
}

func (md *model) fitSession(vectors []vector, held []bool, start [][]float64, maxIter int) (int, bool) {
	for it := 1; it <= maxIter; it++ {
		sums := make([][]float64, len(md.cmps))
		for i, c := range md.cmps {
			sums[i] = make([]float64, c.Levels())
		}
		for _, v := range vectors {
			p := md.posterior(v, held)
			for i, l := range v {
				if l != nullLevel {
					sums[i][l] += p
				}
			}
		}

		delta := 0.0
		for i := range sums {
			if held[i] {
				continue
			}
			total := 0.0
			for _, s := range sums[i] {
				total += s
			}
			prev := append([]float64(nil), md.m[i]...)
			for l, s := range sums[i] {
				md.m[i][l] = (s + priorPairs*start[i][l]) / (total + priorPairs)
			}
			md.clamp(i)
			for l := range prev {
				delta = math.Max(delta, math.Abs(md.m[i][l]-prev[l]))
			}
		}
		if delta < convergenceTolerance {
			return it, true
		}
	}
	return maxIter, false
}

// posterior is probability with the held fields left out.
func (md *model) posterior(v vector, held []bool) float64 {
	w := md.priorWeight()
	for i, l := range v {
		if l == nullLevel || held[i] {
			continue
		}
		w += math.Log2(md.m[i][l] / md.u[i][l])
	}
	return 1 / (1 + math.Exp2(-w))
}

func (md *model) copyM() [][]float64 { return copyLevels(md.m) }

func copyLevels(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for i := range in {
		out[i] = append([]float64(nil), in[i]...)
	}
	return out
}

func (md *model) weights() []FieldWeight {
	var out []FieldWeight
	for i, c := range md.cmps {
		for l, label := range c.Labels {
			out = append(out, FieldWeight{
				Field:  c.Field,
				Level:  label,
				M:      md.m[i][l],
				U:      md.u[i][l],
				Weight: math.Log2(md.m[i][l] / md.u[i][l]),
			})
		}
	}
	return out
}
