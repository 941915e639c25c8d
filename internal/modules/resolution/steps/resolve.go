package steps

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/pkg/unionfind"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const (
	DefaultFirmThreshold = 0.80
	DefaultFundThreshold = 0.85
	DefaultMaxBlockSize  = 2000
	DefaultSeed          = 42

	defaultPageSize  = 1000
	aliasWriteBatch  = 500
	skippedLogSample = 10
)

type ResolveDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Firm  repos.FirmRepo
	Fund  repos.FundRepo
	Alias repos.AliasRepo

	FirmThreshold float64
	FundThreshold float64
	MaxBlockSize  int
	USamplePairs  int
	MaxIterations int
	Seed          int64
	PageSize      int
}

type ResolveInput struct {
	Kind string `json:"kind"`
	// Threshold overrides the kind's default match probability cut-off.
	Threshold *float64 `json:"threshold,omitempty"`
}

type ResolveOutput struct {
	Kind              string         `json:"kind"`
	EntitiesProcessed int            `json:"entities_processed"`
	CandidatePairs    int            `json:"candidate_pairs"`
	MatchesFound      int            `json:"matches_found"`
	CanonicalGroups   int            `json:"canonical_groups"`
	AliasesWritten    int64          `json:"aliases_written"`
	Threshold         float64        `json:"threshold"`
	Iterations        int            `json:"iterations"`
	Converged         bool           `json:"converged"`
	Lambda            float64        `json:"lambda"`
	Trained           []TrainedRule  `json:"trained,omitempty"`
	SkippedBlocks     []SkippedBlock `json:"skipped_blocks,omitempty"`
	Weights           []FieldWeight  `json:"weights,omitempty"`
}

// Match is one scored candidate pair at or above the threshold.
type Match struct {
	A, B        uuid.UUID
	Probability float64
}

// Resolve finds likely duplicates among firms or funds and records every
// non-representative member of a duplicate group as an alias of the group's
// representative. Canonical rows are never merged or deleted.
func Resolve(ctx context.Context, deps ResolveDeps, in ResolveInput) (ResolveOutput, error) {
	out := ResolveOutput{Kind: in.Kind}
	if deps.DB == nil || deps.Alias == nil {
		return out, fmt.Errorf("resolve: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	applyDefaults(&deps)

	var cmps []Comparison
	var rules []BlockingRule
	switch in.Kind {
	case types.KindFirm:
		if deps.Firm == nil {
			return out, fmt.Errorf("resolve firm: missing deps: %w", dgerrors.ErrNotConfigured)
		}
		cmps, rules, out.Threshold = FirmComparisons, FirmBlockingRules, deps.FirmThreshold
	case types.KindFund:
		if deps.Fund == nil {
			return out, fmt.Errorf("resolve fund: missing deps: %w", dgerrors.ErrNotConfigured)
		}
		cmps, rules, out.Threshold = FundComparisons, FundBlockingRules, deps.FundThreshold
	default:
		return out, fmt.Errorf("resolve: unknown kind %q: %w", in.Kind, dgerrors.ErrInvalidArgument)
	}
	if in.Threshold != nil {
		if *in.Threshold <= 0 || *in.Threshold > 1 {
			return out, fmt.Errorf("resolve: threshold %v outside (0,1]: %w", *in.Threshold, dgerrors.ErrInvalidArgument)
		}
		out.Threshold = *in.Threshold
	}

	ctx, span := observability.StartStage(ctx, "resolve_"+in.Kind)
	var err error
	defer func() { observability.EndStage(span, err) }()

	records, err := loadRecords(ctx, in.Kind, deps.PageSize, deps.Firm, deps.Fund)
	if err != nil {
		err = fmt.Errorf("resolve %s: load: %w", in.Kind, err)
		return out, err
	}
	out.EntitiesProcessed = len(records)
	if len(records) < 2 {
		deps.Log.Info("resolve skipped: fewer than two entities", "kind", in.Kind, "entities", len(records))
		return out, nil
	}

	snap, err := openSnapshot(ctx, records)
	if err != nil {
		err = fmt.Errorf("resolve %s: %w", in.Kind, err)
		return out, err
	}
	defer snap.Close()

	pairs, skipped, err := snap.candidatePairs(rules, deps.MaxBlockSize)
	if err != nil {
		err = fmt.Errorf("resolve %s: %w", in.Kind, err)
		return out, err
	}
	out.CandidatePairs = len(pairs)
	out.SkippedBlocks = skipped
	reportSkipped(ctx, deps.Log, in.Kind, skipped)

	md := newModel(cmps)
	md.estimateU(records, deps.USamplePairs, deps.Seed)
	vectors := make([]vector, len(pairs))
	masks := make([]uint32, len(pairs))
	for i, p := range pairs {
		vectors[i] = compare(cmps, records[p.a], records[p.b])
		masks[i] = p.rules
	}
	out.Trained = md.train(vectors, masks, rules, deps.MaxIterations)
	out.Converged = true
	for _, tr := range out.Trained {
		out.Iterations = max(out.Iterations, tr.Iterations)
		out.Converged = out.Converged && tr.Converged
	}
	out.Lambda = md.lambda
	out.Weights = md.weights()

	var matches []Match
	for i, p := range pairs {
		prob := md.probability(vectors[i])
		if prob >= out.Threshold {
			matches = append(matches, Match{A: records[p.a].ID, B: records[p.b].ID, Probability: prob})
		}
	}
	out.MatchesFound = len(matches)

	canon, confidence := Cluster(matches)
	groups := map[uuid.UUID]struct{}{}
	for _, rep := range canon {
		groups[rep] = struct{}{}
	}
	out.CanonicalGroups = len(groups)

	byID := make(map[uuid.UUID]*record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	written, err := writeAliases(ctx, deps, in.Kind, byID, canon, confidence)
	if err != nil {
		err = fmt.Errorf("resolve %s: aliases: %w", in.Kind, err)
		return out, err
	}
	out.AliasesWritten = written

	deps.Log.Info("resolve finished",
		"kind", in.Kind,
		"entities", out.EntitiesProcessed,
		"candidate_pairs", out.CandidatePairs,
		"matches", out.MatchesFound,
		"groups", out.CanonicalGroups,
		"aliases_written", out.AliasesWritten,
		"em_sessions", len(out.Trained),
		"em_iterations", out.Iterations,
		"em_converged", out.Converged,
	)
	return out, nil
}

func applyDefaults(deps *ResolveDeps) {
	if deps.FirmThreshold <= 0 {
		deps.FirmThreshold = DefaultFirmThreshold
	}
	if deps.FundThreshold <= 0 {
		deps.FundThreshold = DefaultFundThreshold
	}
	if deps.MaxBlockSize <= 0 {
		deps.MaxBlockSize = DefaultMaxBlockSize
	}
	if deps.USamplePairs <= 0 {
		deps.USamplePairs = DefaultUSamplePairs
	}
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = DefaultMaxIterations
	}
	if deps.Seed == 0 {
		deps.Seed = DefaultSeed
	}
	if deps.PageSize <= 0 {
		deps.PageSize = defaultPageSize
	}
}

func reportSkipped(ctx context.Context, log *logger.Logger, kind string, skipped []SkippedBlock) {
	if len(skipped) == 0 {
		return
	}
	issues := make([]observability.DataQualityIssue, 0, len(skipped))
	for _, b := range skipped {
		issues = append(issues, observability.DataQualityIssue{
			Issue:   observability.IssueOversizedBlock,
			Key:     b.Rule,
			Count:   b.Size,
			Samples: []string{b.Key},
		})
	}
	sample := skipped
	if len(sample) > skippedLogSample {
		sample = sample[:skippedLogSample]
	}
	log.Warn("resolve skipped oversized blocks", "kind", kind, "blocks", len(skipped), "sample", sample)
	observability.ReportDataQuality(ctx, log, "resolve_"+kind, issues, map[string]any{"kind": kind})
}

func uuidLess(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

// Cluster groups matched ids transitively. It maps every member of a group
// to the group's least id and reports, per member, the highest match
// probability of any pair touching it.
func Cluster(matches []Match) (map[uuid.UUID]uuid.UUID, map[uuid.UUID]float64) {
	set := unionfind.New[uuid.UUID]()
	confidence := map[uuid.UUID]float64{}
	for _, m := range matches {
		set.Union(m.A, m.B)
		for _, id := range []uuid.UUID{m.A, m.B} {
			if m.Probability > confidence[id] {
				confidence[id] = m.Probability
			}
		}
	}
	return set.Canonical(uuidLess), confidence
}

func writeAliases(ctx context.Context, deps ResolveDeps, kind string, byID map[uuid.UUID]*record, canon map[uuid.UUID]uuid.UUID, confidence map[uuid.UUID]float64) (int64, error) {
	type aliasKey struct {
		rep  uuid.UUID
		norm string
	}
	type candidate struct {
		text string
		conf float64
	}
	pending := map[aliasKey]candidate{}
	for member, rep := range canon {
		if member == rep {
			continue
		}
		r := byID[member]
		if r == nil {
			continue
		}
		text := strings.TrimSpace(r.Name)
		norm := normalization.Name(text)
		if norm == "" {
			continue
		}
		k := aliasKey{rep: rep, norm: norm}
		if cur, ok := pending[k]; !ok || confidence[member] > cur.conf {
			pending[k] = candidate{text: text, conf: confidence[member]}
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}
	keys := make([]aliasKey, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].rep != keys[j].rep {
			return uuidLess(keys[i].rep, keys[j].rep)
		}
		return keys[i].norm < keys[j].norm
	})

	now := time.Now().UTC()
	var written int64
	err := deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for start := 0; start < len(keys); start += aliasWriteBatch {
			end := min(start+aliasWriteBatch, len(keys))
			var n int64
			var err error
			switch kind {
			case types.KindFirm:
				rows := make([]*types.FirmAlias, 0, end-start)
				for _, k := range keys[start:end] {
					c := pending[k]
					rows = append(rows, &types.FirmAlias{
						CanonicalFirmID:     k.rep,
						AliasText:           c.text,
						AliasTextNormalized: k.norm,
						MatchMethod:         types.ResolutionProbabilistic,
						ConfidenceScore:     c.conf,
						CreatedAt:           now,
						UpdatedAt:           now,
					})
				}
				n, err = deps.Alias.UpsertFirmAliases(dbc, rows)
			case types.KindFund:
				rows := make([]*types.FundAlias, 0, end-start)
				for _, k := range keys[start:end] {
					c := pending[k]
					rows = append(rows, &types.FundAlias{
						CanonicalFundID:     k.rep,
						AliasText:           c.text,
						AliasTextNormalized: k.norm,
						MatchMethod:         types.ResolutionProbabilistic,
						ConfidenceScore:     c.conf,
						CreatedAt:           now,
						UpdatedAt:           now,
					})
				}
				n, err = deps.Alias.UpsertFundAliases(dbc, rows)
			}
			if err != nil {
				return err
			}
			written += n
		}
		return nil
	})
	return written, err
}
