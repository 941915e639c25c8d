package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/staging"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const (
	DefaultChunkSize        = 10000
	DefaultSheetConcurrency = 4
)

type IngestDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Raw        repos.RawRecordRepo
	Checkpoint repos.CheckpointRepo

	ChunkSize        int
	SheetConcurrency int
	// Open overrides OpenRowProvider; tests use it to inject failing readers.
	Open func(path string) (RowProvider, error)
}

type IngestInput struct {
	Path string `json:"path"`
	// Sheets restricts ingestion to the named sheets; empty means all.
	Sheets []string `json:"sheets,omitempty"`
	RunID  string   `json:"run_id,omitempty"`
	Resume bool     `json:"resume,omitempty"`
	// Dataset forces the dataset kind instead of detecting it per sheet.
	Dataset   string `json:"dataset,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}

type SheetResult struct {
	Sheet        string `json:"sheet"`
	Dataset      string `json:"dataset"`
	RowsIngested int    `json:"rows_ingested"`
	Chunks       int    `json:"chunks"`
	LastRow      int    `json:"last_row"`
	// AlreadyCompleted is set when a resumed run had finished this sheet.
	AlreadyCompleted bool   `json:"already_completed,omitempty"`
	Error            string `json:"error,omitempty"`
}

type IngestOutput struct {
	RunID        string        `json:"run_id"`
	SourceFile   string        `json:"source_file"`
	Resumed      bool          `json:"resumed"`
	RowsIngested int           `json:"rows_ingested"`
	Sheets       []SheetResult `json:"sheets"`
}

// Failed reports whether any sheet recorded an error.
func (o IngestOutput) Failed() bool {
	for _, s := range o.Sheets {
		if s.Error != "" {
			return true
		}
	}
	return false
}

func Ingest(ctx context.Context, deps IngestDeps, in IngestInput) (IngestOutput, error) {
	out := IngestOutput{}
	if deps.DB == nil || deps.Raw == nil || deps.Checkpoint == nil {
		return out, fmt.Errorf("ingest: database: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	path := strings.TrimSpace(in.Path)
	if path == "" {
		return out, fmt.Errorf("ingest: source path: %w", dgerrors.ErrNotConfigured)
	}
	if _, err := os.Stat(path); err != nil {
		return out, fmt.Errorf("ingest: %w", err)
	}
	open := deps.Open
	if open == nil {
		open = OpenRowProvider
	}

	// Opened once up front so an unreadable file fails before any write.
	peek, err := open(path)
	if err != nil {
		return out, fmt.Errorf("ingest: %w", err)
	}
	sourceFile := peek.SourceFile()
	sheets := selectSheets(peek.Sheets(), in.Sheets)
	_ = peek.Close()
	out.SourceFile = sourceFile
	if len(sheets) == 0 {
		return out, fmt.Errorf("ingest: no matching sheets in %s: %w", sourceFile, dgerrors.ErrInvalidArgument)
	}

	dbc := dbctx.Context{Ctx: ctx}
	runID := strings.TrimSpace(in.RunID)
	if runID == "" && in.Resume {
		last, err := deps.Checkpoint.LatestInProgressRun(dbc, sourceFile)
		if err != nil {
			return out, fmt.Errorf("ingest: find resumable run: %w", err)
		}
		if last != "" {
			runID = last
			out.Resumed = true
		}
	}
	if runID == "" {
		runID = ctxutil.NewRunID(time.Now())
	}
	out.RunID = runID

	td := ctxutil.GetTraceData(ctx)
	if td == nil {
		ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{RunID: runID})
	}
	ctx, span := observability.StartStage(ctx, "ingest")
	defer func() { observability.EndStage(span, nil) }()

	log := deps.Log.With("run_id", runID, "source_file", sourceFile)
	if out.Resumed {
		log.Info("resuming ingestion run")
	}

	chunkSize := in.ChunkSize
	if chunkSize <= 0 {
		chunkSize = deps.ChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	limit := deps.SheetConcurrency
	if limit <= 0 {
		limit = DefaultSheetConcurrency
	}

	results := make([]SheetResult, len(sheets))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, sheet := range sheets {
		i, sheet := i, sheet
		g.Go(func() error {
			res := ingestSheet(gctx, deps, open, log, sheetJob{
				path:       path,
				sourceFile: sourceFile,
				sheet:      sheet,
				runID:      runID,
				dataset:    in.Dataset,
				chunkSize:  chunkSize,
			})
			mu.Lock()
			results[i] = res
			mu.Unlock()
			// Sheet failures live in the result; siblings keep going.
			return nil
		})
	}
	_ = g.Wait()

	out.Sheets = results
	for _, r := range results {
		out.RowsIngested += r.RowsIngested
	}
	log.Info("ingestion finished", "rows_ingested", out.RowsIngested, "sheets", len(results), "failed", out.Failed())
	return out, nil
}

type sheetJob struct {
	path       string
	sourceFile string
	sheet      string
	runID      string
	dataset    string
	chunkSize  int
}

func ingestSheet(ctx context.Context, deps IngestDeps, open func(string) (RowProvider, error), baseLog *logger.Logger, job sheetJob) SheetResult {
	res := SheetResult{Sheet: job.sheet, Dataset: job.dataset}
	log := baseLog.With("sheet", job.sheet)
	key := staging.CheckpointKey{RunID: job.runID, SourceFile: job.sourceFile, SourceSheet: job.sheet}
	dbc := dbctx.Context{Ctx: ctx}

	fail := func(err error) SheetResult {
		res.Error = err.Error()
		log.Error("sheet ingestion failed", "error", err, "last_row", res.LastRow)
		if ferr := deps.Checkpoint.Fail(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, key, res.Error); ferr != nil {
			log.Warn("record checkpoint failure failed", "error", ferr)
		}
		return res
	}

	cp, err := deps.Checkpoint.Get(dbc, key)
	if err != nil {
		return fail(fmt.Errorf("load checkpoint: %w", err))
	}
	skipThrough := 0
	if cp != nil {
		if cp.Status == types.CheckpointCompleted {
			res.AlreadyCompleted = true
			res.LastRow = cp.LastRow
			log.Info("sheet already completed, skipping")
			return res
		}
		skipThrough = cp.LastRow
		res.LastRow = cp.LastRow
		if skipThrough > 0 {
			log.Info("resuming sheet", "skip_through", skipThrough)
		}
	}

	p, err := open(job.path)
	if err != nil {
		return fail(err)
	}
	defer p.Close()

	err = p.Read(ctx, job.sheet, skipThrough, job.chunkSize, func(c Chunk) error {
		if res.Dataset == "" {
			res.Dataset = detectDataset(c.Headers, job.sheet, job.sourceFile)
		}
		records, err := toRawRecords(job, res.Dataset, c)
		if err != nil {
			return err
		}
		var inserted int64
		err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txc := dbctx.Context{Ctx: ctx, Tx: tx}
			n, err := deps.Raw.CreateIgnoreDuplicates(txc, records)
			if err != nil {
				return fmt.Errorf("insert rows %d-%d: %w", c.StartRow, c.LastRow(), err)
			}
			inserted = n
			return deps.Checkpoint.Advance(txc, key, c.LastRow(), int(n))
		})
		if err != nil {
			observability.Current().IncChunk("failed")
			return err
		}
		observability.Current().IncChunk("committed")
		observability.Current().AddRowsIngested(res.Dataset, int(inserted))
		res.Chunks++
		res.RowsIngested += int(inserted)
		res.LastRow = c.LastRow()
		log.Debug("chunk committed", "rows", inserted, "last_row", res.LastRow)
		return nil
	})
	if err != nil {
		return fail(err)
	}
	if err := deps.Checkpoint.Complete(dbc, key); err != nil {
		return fail(fmt.Errorf("complete checkpoint: %w", err))
	}
	if res.Dataset == "" {
		res.Dataset = types.DatasetUnknown
	}
	log.Info("sheet ingested", "rows", res.RowsIngested, "chunks", res.Chunks, "dataset", res.Dataset)
	return res
}

func detectDataset(headers []string, sheet, sourceFile string) string {
	fields := make([]string, 0, len(headers))
	for _, h := range headers {
		fields = append(fields, normalization.FieldName(h))
	}
	return normalization.DetectDataset(fields, sheet, sourceFile)
}

func toRawRecords(job sheetJob, dataset string, c Chunk) ([]*types.RawRecord, error) {
	out := make([]*types.RawRecord, 0, len(c.Rows))
	for _, r := range c.Rows {
		b, err := json.Marshal(r.Values)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", r.Number, err)
		}
		out = append(out, &types.RawRecord{
			RunID:           job.runID,
			SourceFile:      job.sourceFile,
			SourceSheet:     job.sheet,
			SourceRowNumber: r.Number,
			Dataset:         dataset,
			RawData:         datatypes.JSON(b),
		})
	}
	return out, nil
}

func selectSheets(all []string, want []string) []string {
	if len(want) == 0 {
		return all
	}
	keep := make(map[string]bool, len(want))
	for _, w := range want {
		keep[strings.TrimSpace(w)] = true
	}
	var out []string
	for _, s := range all {
		if keep[s] {
			out = append(out, s)
		}
	}
	return out
}

type CheckpointView struct {
	SourceFile   string    `json:"source_file"`
	SourceSheet  string    `json:"source_sheet"`
	LastRow      int       `json:"last_row"`
	RowsIngested int       `json:"rows_ingested"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ListCheckpoints(ctx context.Context, repo repos.CheckpointRepo, runID string) ([]CheckpointView, error) {
	if repo == nil {
		return nil, fmt.Errorf("list checkpoints: %w", dgerrors.ErrNotConfigured)
	}
	rows, err := repo.ListByRun(dbctx.Context{Ctx: ctx}, runID)
	if err != nil {
		return nil, err
	}
	out := make([]CheckpointView, 0, len(rows))
	for _, r := range rows {
		out = append(out, CheckpointView{
			SourceFile:   r.SourceFile,
			SourceSheet:  r.SourceSheet,
			LastRow:      r.LastRow,
			RowsIngested: r.RowsIngested,
			Status:       r.Status,
			Error:        r.Error,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return out, nil
}
