package domain

import (
	"github.com/yungbote/dealgraph-backend/internal/domain/canonical"
	"github.com/yungbote/dealgraph-backend/internal/domain/graph"
	"github.com/yungbote/dealgraph-backend/internal/domain/jobs"
	"github.com/yungbote/dealgraph-backend/internal/domain/quality"
	"github.com/yungbote/dealgraph-backend/internal/domain/search"
	"github.com/yungbote/dealgraph-backend/internal/domain/staging"
)

type (
	RawRecord            = staging.RawRecord
	IngestionCheckpoint  = staging.IngestionCheckpoint
	NormalizedFirm       = staging.NormalizedFirm
	NormalizedFund       = staging.NormalizedFund
	NormalizedContact    = staging.NormalizedContact
	NormalizedDeal       = staging.NormalizedDeal
	NormalizedProvenance = staging.Provenance

	Firm              = canonical.Firm
	Fund              = canonical.Fund
	Person            = canonical.Person
	Company           = canonical.Company
	Deal              = canonical.Deal
	Provenance        = canonical.Provenance
	FirmManagesFund   = canonical.FirmManagesFund
	PersonEmployment  = canonical.PersonEmployment
	DealInvestorFirm  = canonical.DealInvestorFirm
	DealInvestorFund  = canonical.DealInvestorFund
	DealTargetCompany = canonical.DealTargetCompany
	FirmAlias         = canonical.FirmAlias
	FundAlias         = canonical.FundAlias

	QuarantineRecord = quality.QuarantineRecord
	CoInvestmentEdge = graph.CoInvestmentEdge
	EntityDoc        = search.EntityDoc
	JobRun           = jobs.JobRun
)

const (
	DatasetFirm    = staging.DatasetFirm
	DatasetFund    = staging.DatasetFund
	DatasetContact = staging.DatasetContact
	DatasetDeal    = staging.DatasetDeal
	DatasetUnknown = staging.DatasetUnknown

	CheckpointInProgress = staging.CheckpointInProgress
	CheckpointCompleted  = staging.CheckpointCompleted

	KindFirm    = canonical.KindFirm
	KindFund    = canonical.KindFund
	KindPerson  = canonical.KindPerson
	KindCompany = canonical.KindCompany
	KindDeal    = canonical.KindDeal

	DefaultSourceSystem = canonical.DefaultSourceSystem

	ResolutionID            = canonical.ResolutionID
	ResolutionExact         = canonical.ResolutionExact
	ResolutionAlias         = canonical.ResolutionAlias
	ResolutionFuzzy         = canonical.ResolutionFuzzy
	ResolutionManual        = canonical.ResolutionManual
	ResolutionUnresolved    = canonical.ResolutionUnresolved
	ResolutionProbabilistic = canonical.ResolutionProbabilistic

	SourceDealInvestorFirm        = quality.SourceDealInvestorFirm
	SourceFundManagerLink         = quality.SourceFundManagerLink
	SourcePersonEmployment        = quality.SourcePersonEmployment
	ErrorUnresolvedInvestorFirm   = quality.ErrorUnresolvedInvestorFirm
	ErrorUnresolvedManagerFirm    = quality.ErrorUnresolvedManagerFirm
	ErrorUnresolvedEmploymentFirm = quality.ErrorUnresolvedEmploymentFirm

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled
)

var (
	FirmLess    = graph.FirmLess
	OrderedPair = graph.OrderedPair
)
