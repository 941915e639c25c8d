package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	older := &types.JobRun{
		JobType:   "extract",
		RunID:     "run_a",
		Status:    types.JobStatusSucceeded,
		Stage:     "done",
		Payload:   datatypes.JSON([]byte("{}")),
		Result:    datatypes.JSON([]byte("{}")),
		CreatedAt: now.Add(-2 * time.Hour),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	running := &types.JobRun{
		JobType:   "extract",
		RunID:     "run_b",
		Status:    types.JobStatusRunning,
		Stage:     "running",
		Payload:   datatypes.JSON([]byte("{}")),
		Result:    datatypes.JSON([]byte("{}")),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := repo.Create(dbc, []*types.JobRun{older, running}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if older.ID == uuid.Nil || running.ID == uuid.Nil {
		t.Fatalf("expected ids to be assigned")
	}

	recent, err := repo.ListRecent(dbc, "extract", 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != running.ID {
		t.Fatalf("ListRecent: expected newest first, got %d rows", len(recent))
	}

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, older.ID, []string{types.JobStatusSucceeded}, map[string]interface{}{"stage": "rerun"})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("succeeded job must not be updated")
	}

	ok, err = repo.UpdateFieldsUnlessStatus(dbc, running.ID, []string{types.JobStatusSucceeded, types.JobStatusFailed}, map[string]interface{}{
		"status":   types.JobStatusFailed,
		"error":    "boom",
		"progress": 40,
	})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsUnlessStatus running: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByID(dbc, running.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobStatusFailed || got.Error != "boom" || got.Progress != 40 {
		t.Fatalf("unexpected job after update: %+v", got)
	}

	if err := repo.Heartbeat(dbc, running.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: %v %v", missing, err)
	}
}
