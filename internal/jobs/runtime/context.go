package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/ctxutil"
)

/*
Context is the execution handle for a single job run.
It wraps:
  - the request-scoped context.Context (timeouts, cancellation),
  - the DB handle pipelines pass to their usecases,
  - the job_run ledger row and its repo,
  - the decoded payload.

Pipelines never touch job_run directly. They report through Progress, Fail
and Succeed.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	payload map[string]any
	err     error
}

// NewContext decodes the job payload eagerly. A malformed payload leaves an
// empty map; handlers validate the fields they need.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo) *Context {
	c := &Context{
		Ctx:  ctxutil.Default(ctx),
		DB:   db,
		Job:  job,
		Repo: repo,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	if m == nil {
		m = map[string]any{}
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c.Job == nil {
		return
	}
	td := &ctxutil.TraceData{RunID: c.Job.RunID, JobID: c.Job.ID.String()}
	if v, ok := c.Payload()["trace_id"]; ok && v != nil {
		td.TraceID = strings.TrimSpace(fmt.Sprint(v))
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, td)
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadString returns the trimmed string under key, or "" when missing.
func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// PayloadBool accepts JSON booleans and the strings "true"/"1".
func (c *Context) PayloadBool(key string) bool {
	switch v := c.Payload()[key].(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "1"
	}
	return false
}

// PayloadInt reads a JSON number. Fractions are truncated.
func (c *Context) PayloadInt(key string) (int, bool) {
	switch v := c.Payload()[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// PayloadFloat reads a JSON number or a numeric string.
func (c *Context) PayloadFloat(key string) (float64, bool) {
	switch v := c.Payload()[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// PayloadStrings reads a list of strings, skipping blanks and non-strings.
func (c *Context) PayloadStrings(key string) []string {
	var out []string
	switch v := c.Payload()[key].(type) {
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := c.PayloadString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// RunID is the run identifier stamped on the job row.
func (c *Context) RunID() string {
	if c.Job == nil {
		return ""
	}
	return c.Job.RunID
}

// SetRunID re-stamps the job with the run id a stage settled on, such as the
// resumed ingestion run.
func (c *Context) SetRunID(runID string) {
	runID = strings.TrimSpace(runID)
	if c == nil || c.Job == nil || runID == "" || runID == c.Job.RunID {
		return
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		_, _ = c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"run_id": runID,
		})
	}
	c.Job.RunID = runID
	if td := ctxutil.GetTraceData(c.Ctx); td != nil {
		td.RunID = runID
	}
}

// Err returns the error passed to Fail, if any.
func (c *Context) Err() error { return c.err }

// Progress records a non-terminal status. A canceled job is never
// overwritten.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
}

// Fail marks the run failed at stage. Partial results already committed by
// the stage stay in place; result, when non-nil, is stored alongside the
// error.
func (c *Context) Fail(stage string, err error, result ...any) {
	if c == nil {
		return
	}
	if err == nil {
		err = fmt.Errorf("%s failed", stage)
	}
	c.err = err
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      types.JobStatusFailed,
		"stage":       stage,
		"message":     "",
		"error":       err.Error(),
		"finished_at": now,
		"updated_at":  now,
	}
	var res datatypes.JSON
	if len(result) > 0 && result[0] != nil {
		res = marshalResult(result[0])
		updates["result"] = res
	}
	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, []string{types.JobStatusCanceled}, updates)
		if !ok {
			return
		}
	}
	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = err.Error()
		c.Job.FinishedAt = &now
		c.Job.UpdatedAt = now
		if res != nil {
			c.Job.Result = res
		}
	}
}

// Succeed marks the run succeeded and stores result as JSON.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	res := marshalResult(result)
	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"status":       types.JobStatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"heartbeat_at": now,
			"finished_at":  now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}
	if c.Job != nil {
		c.Job.Status = types.JobStatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.HeartbeatAt = &now
		c.Job.FinishedAt = &now
		c.Job.UpdatedAt = now
	}
}

func marshalResult(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte("{}"))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}
