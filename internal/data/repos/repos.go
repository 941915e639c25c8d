package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos/canonical"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/graph"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/jobs"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/quality"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/search"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/staging"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type RawRecordRepo = staging.RawRecordRepo
type CheckpointRepo = staging.CheckpointRepo
type NormalizedRepo = staging.NormalizedRepo

type FirmRepo = canonical.FirmRepo
type FundRepo = canonical.FundRepo
type PersonRepo = canonical.PersonRepo
type CompanyRepo = canonical.CompanyRepo
type DealRepo = canonical.DealRepo
type LinkRepo = canonical.LinkRepo
type AliasRepo = canonical.AliasRepo
type AliasMatch = canonical.AliasMatch
type InvestorRow = canonical.InvestorRow

type QuarantineRepo = quality.QuarantineRepo
type CoInvestmentEdgeRepo = graph.CoInvestmentEdgeRepo
type EdgeStats = graph.EdgeStats
type EntityDocRepo = search.EntityDocRepo
type CandidateQuery = search.CandidateQuery

type JobRunRepo = jobs.JobRunRepo

func NewRawRecordRepo(db *gorm.DB, baseLog *logger.Logger) RawRecordRepo {
	return staging.NewRawRecordRepo(db, baseLog)
}
func NewCheckpointRepo(db *gorm.DB, baseLog *logger.Logger) CheckpointRepo {
	return staging.NewCheckpointRepo(db, baseLog)
}
func NewNormalizedRepo(db *gorm.DB, baseLog *logger.Logger) NormalizedRepo {
	return staging.NewNormalizedRepo(db, baseLog)
}

func NewFirmRepo(db *gorm.DB, baseLog *logger.Logger) FirmRepo { return canonical.NewFirmRepo(db, baseLog) }
func NewFundRepo(db *gorm.DB, baseLog *logger.Logger) FundRepo { return canonical.NewFundRepo(db, baseLog) }
func NewPersonRepo(db *gorm.DB, baseLog *logger.Logger) PersonRepo {
	return canonical.NewPersonRepo(db, baseLog)
}
func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return canonical.NewCompanyRepo(db, baseLog)
}
func NewDealRepo(db *gorm.DB, baseLog *logger.Logger) DealRepo { return canonical.NewDealRepo(db, baseLog) }
func NewLinkRepo(db *gorm.DB, baseLog *logger.Logger) LinkRepo { return canonical.NewLinkRepo(db, baseLog) }
func NewAliasRepo(db *gorm.DB, baseLog *logger.Logger) AliasRepo {
	return canonical.NewAliasRepo(db, baseLog)
}

func NewQuarantineRepo(db *gorm.DB, baseLog *logger.Logger) QuarantineRepo {
	return quality.NewQuarantineRepo(db, baseLog)
}
func NewCoInvestmentEdgeRepo(db *gorm.DB, baseLog *logger.Logger) CoInvestmentEdgeRepo {
	return graph.NewCoInvestmentEdgeRepo(db, baseLog)
}
func NewEntityDocRepo(db *gorm.DB, baseLog *logger.Logger) EntityDocRepo {
	return search.NewEntityDocRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

// Set bundles every repository over one database handle.
type Set struct {
	Raw        RawRecordRepo
	Checkpoint CheckpointRepo
	Normalized NormalizedRepo

	Firm    FirmRepo
	Fund    FundRepo
	Person  PersonRepo
	Company CompanyRepo
	Deal    DealRepo
	Link    LinkRepo
	Alias   AliasRepo

	Quarantine QuarantineRepo
	Edge       CoInvestmentEdgeRepo
	Doc        EntityDocRepo
	JobRun     JobRunRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		Raw:        NewRawRecordRepo(db, baseLog),
		Checkpoint: NewCheckpointRepo(db, baseLog),
		Normalized: NewNormalizedRepo(db, baseLog),
		Firm:       NewFirmRepo(db, baseLog),
		Fund:       NewFundRepo(db, baseLog),
		Person:     NewPersonRepo(db, baseLog),
		Company:    NewCompanyRepo(db, baseLog),
		Deal:       NewDealRepo(db, baseLog),
		Link:       NewLinkRepo(db, baseLog),
		Alias:      NewAliasRepo(db, baseLog),
		Quarantine: NewQuarantineRepo(db, baseLog),
		Edge:       NewCoInvestmentEdgeRepo(db, baseLog),
		Doc:        NewEntityDocRepo(db, baseLog),
		JobRun:     NewJobRunRepo(db, baseLog),
	}
}
