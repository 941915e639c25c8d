package extraction

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/modules/extraction/steps"
	"github.com/yungbote/dealgraph-backend/internal/modules/quarantine"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// Sweeper quarantines the references the link passes left unresolved.
type Sweeper interface {
	Sweep(ctx context.Context, in quarantine.SweepInput) (quarantine.SweepOutput, error)
}

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Raw        repos.RawRecordRepo
	Normalized repos.NormalizedRepo
	Firm       repos.FirmRepo
	Fund       repos.FundRepo
	Person     repos.PersonRepo
	Company    repos.CompanyRepo
	Deal       repos.DealRepo
	Link       repos.LinkRepo
	Alias      repos.AliasRepo

	Fields    *normalization.FieldMapper
	BatchSize int

	// Sweeper is optional; RunAll skips the sweep without it.
	Sweeper Sweeper
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	TransformInput  = steps.TransformInput
	TransformOutput = steps.TransformOutput
	ExtractInput    = steps.ExtractInput
	ExtractOutput   = steps.ExtractOutput
	LinkInput       = steps.LinkInput
	LinkOutput      = steps.LinkOutput
)

var (
	ExtractKinds = steps.ExtractKinds
	LinkKinds    = steps.LinkKinds
)

func (u Usecases) Transform(ctx context.Context, in TransformInput) (TransformOutput, error) {
	return steps.Transform(ctx, steps.TransformDeps{
		DB:         u.deps.DB,
		Log:        u.deps.Log,
		Raw:        u.deps.Raw,
		Normalized: u.deps.Normalized,
		Fields:     u.deps.Fields,
		BatchSize:  u.deps.BatchSize,
	}, in)
}

func (u Usecases) Extract(ctx context.Context, in ExtractInput) (ExtractOutput, error) {
	return steps.Extract(ctx, steps.ExtractDeps{
		DB:         u.deps.DB,
		Log:        u.deps.Log,
		Normalized: u.deps.Normalized,
		Firm:       u.deps.Firm,
		Fund:       u.deps.Fund,
		Person:     u.deps.Person,
		Company:    u.deps.Company,
		Deal:       u.deps.Deal,
		GroupPage:  u.deps.BatchSize,
	}, in)
}

func (u Usecases) Link(ctx context.Context, in LinkInput) (LinkOutput, error) {
	return steps.Link(ctx, steps.LinkDeps{
		DB:       u.deps.DB,
		Log:      u.deps.Log,
		Firm:     u.deps.Firm,
		Fund:     u.deps.Fund,
		Person:   u.deps.Person,
		Company:  u.deps.Company,
		Deal:     u.deps.Deal,
		Link:     u.deps.Link,
		Alias:    u.deps.Alias,
		PageSize: u.deps.BatchSize,
	}, in)
}

type RunAllInput struct {
	RunID string `json:"run_id,omitempty"`
}

type RunAllOutput struct {
	Transform  TransformOutput         `json:"transform"`
	Extract    []ExtractOutput         `json:"extract"`
	Link       []LinkOutput            `json:"link"`
	Quarantine *quarantine.SweepOutput `json:"quarantine,omitempty"`
	Duration   string                  `json:"duration"`
}

// RunAll transforms, extracts every kind, runs every link pass and finally
// sweeps unresolved references into quarantine. It stops at the first
// failing step; the sweep itself never fails the run.
func (u Usecases) RunAll(ctx context.Context, in RunAllInput) (RunAllOutput, error) {
	start := time.Now()
	out := RunAllOutput{}
	log := u.deps.Log
	if log == nil {
		log = logger.Nop()
	}

	t, err := u.Transform(ctx, TransformInput{RunID: in.RunID})
	out.Transform = t
	if err != nil {
		return out, err
	}
	for _, kind := range steps.ExtractKinds {
		res, err := u.Extract(ctx, ExtractInput{Kind: kind})
		out.Extract = append(out.Extract, res)
		if err != nil {
			return out, err
		}
	}
	for _, kind := range steps.LinkKinds {
		res, err := u.Link(ctx, LinkInput{Kind: kind})
		out.Link = append(out.Link, res)
		if err != nil {
			return out, err
		}
	}
	if u.deps.Sweeper != nil {
		sw, err := u.deps.Sweeper.Sweep(ctx, quarantine.SweepInput{RunID: in.RunID})
		if err != nil {
			log.Warn("quarantine sweep failed", "error", err)
		} else {
			out.Quarantine = &sw
		}
	}
	out.Duration = time.Since(start).Round(time.Millisecond).String()
	log.Info("extraction pipeline finished", "run_id", in.RunID, "duration", out.Duration)
	return out, nil
}

// ParseKind validates an extract kind given on the command line.
func ParseKind(kind string) (string, error) {
	for _, k := range steps.ExtractKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown extract kind %q", kind)
}
