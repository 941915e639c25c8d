package resolution

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/modules/resolution/steps"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Firm  repos.FirmRepo
	Fund  repos.FundRepo
	Alias repos.AliasRepo

	FirmThreshold float64
	FundThreshold float64
	MaxBlockSize  int
	USamplePairs  int
	Seed          int64
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
	ResolveInput  = steps.ResolveInput
	ResolveOutput = steps.ResolveOutput
)

func (u Usecases) Resolve(ctx context.Context, in ResolveInput) (ResolveOutput, error) {
	return steps.Resolve(ctx, steps.ResolveDeps{
		DB:            u.deps.DB,
		Log:           u.deps.Log,
		Firm:          u.deps.Firm,
		Fund:          u.deps.Fund,
		Alias:         u.deps.Alias,
		FirmThreshold: u.deps.FirmThreshold,
		FundThreshold: u.deps.FundThreshold,
		MaxBlockSize:  u.deps.MaxBlockSize,
		USamplePairs:  u.deps.USamplePairs,
		Seed:          u.deps.Seed,
	}, in)
}

// ResolveAll resolves firms then funds. A failure on firms stops before funds.
func (u Usecases) ResolveAll(ctx context.Context) ([]ResolveOutput, error) {
	var outs []ResolveOutput
	for _, kind := range []string{types.KindFirm, types.KindFund} {
		out, err := u.Resolve(ctx, ResolveInput{Kind: kind})
		outs = append(outs, out)
		if err != nil {
			return outs, err
		}
	}
	return outs, nil
}
