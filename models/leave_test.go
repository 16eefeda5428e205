package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
)

func (f *fixture) leave(start, end int64) *models.NewLeave {
	return &models.NewLeave{
		WorkerId:   f.worker.ID,
		ApproverId: f.admin.ID,
		Reason:     models.LeaveReasonDayOff,
		Start:      start,
		End:        end,
	}
}

func TestCreateLeave_Overlaps(t *testing.T) {
	f := newFixture(t)
	actor := f.workerActor()

	if _, err := models.CreateLeave(f.ctx, f.leave(20240110, 20240112), actor); err != nil {
		t.Fatalf("CreateLeave: %v", err)
	}

	cases := []struct {
		name       string
		start, end int64
		wantErr    error
	}{
		{"inside", 20240111, 20240111, models.ErrOverlappingLeave},
		{"touching end", 20240112, 20240115, models.ErrOverlappingLeave},
		{"covering", 20240101, 20240131, models.ErrOverlappingLeave},
		{"after", 20240113, 20240115, nil},
	}
	for _, tc := range cases {
		_, err := models.CreateLeave(f.ctx, f.leave(tc.start, tc.end), actor)
		if tc.wantErr == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) || !errors.Is(err, models.ErrConflict) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestCreateLeave_OverShift(t *testing.T) {
	f := newFixture(t)

	if _, err := models.CreateShiftReport(f.ctx, f.newReport(f.worker.ID, 20240120, false, false, 1), f.workerActor()); err != nil {
		t.Fatalf("CreateShiftReport: %v", err)
	}
	_, err := models.CreateLeave(f.ctx, f.leave(20240119, 20240121), f.adminActor())
	if !errors.Is(err, models.ErrShiftConflict) {
		t.Fatalf("expected ErrShiftConflict, got %v", err)
	}
	if n := countRows(t, &models.Leave{}, "worker_id = ?", f.worker.ID); n != 0 {
		t.Fatalf("expected no leave written, got %d", n)
	}
}

func TestUpdateLeave_ExcludesItself(t *testing.T) {
	f := newFixture(t)
	actor := f.workerActor()

	leave, err := models.CreateLeave(f.ctx, f.leave(20240110, 20240112), actor)
	if err != nil {
		t.Fatalf("CreateLeave: %v", err)
	}
	other, err := models.CreateLeave(f.ctx, f.leave(20240120, 20240122), actor)
	if err != nil {
		t.Fatalf("CreateLeave: %v", err)
	}

	// shifting within its own interval only meets itself
	updated, err := models.UpdateLeave(f.ctx, leave.ID, f.leave(20240111, 20240114), actor)
	if err != nil {
		t.Fatalf("UpdateLeave: %v", err)
	}
	if updated.Start != 20240111 || updated.End != 20240114 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := models.UpdateLeave(f.ctx, leave.ID, f.leave(20240114, 20240120), actor); !errors.Is(err, models.ErrOverlappingLeave) {
		t.Fatalf("expected ErrOverlappingLeave against leave %d, got %v", other.ID, err)
	}

	if _, err := models.CreateShiftReport(f.ctx, f.newReport(f.worker.ID, 20240116, false, false, 1), actor); err != nil {
		t.Fatalf("CreateShiftReport: %v", err)
	}
	if _, err := models.UpdateLeave(f.ctx, leave.ID, f.leave(20240111, 20240116), actor); !errors.Is(err, models.ErrShiftConflict) {
		t.Fatalf("expected ErrShiftConflict, got %v", err)
	}
}

func TestLeave_WorkerActsForThemselfOnly(t *testing.T) {
	f := newFixture(t)

	input := f.leave(20240110, 20240112)
	input.WorkerId = f.newbie.ID
	if _, err := models.CreateLeave(f.ctx, input, f.workerActor()); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	bad := f.leave(20240112, 20240110)
	if _, err := models.CreateLeave(f.ctx, bad, f.workerActor()); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for reversed interval, got %v", err)
	}
}

func TestDeleteLeave_FreesInterval(t *testing.T) {
	f := newFixture(t)

	leave, err := models.CreateLeave(f.ctx, f.leave(20240101, 20240105), f.adminActor())
	if err != nil {
		t.Fatalf("CreateLeave: %v", err)
	}
	if _, err := models.DeleteLeave(f.ctx, leave.ID, f.adminActor()); err != nil {
		t.Fatalf("DeleteLeave: %v", err)
	}
	if _, err := models.DeleteLeave(f.ctx, leave.ID, f.adminActor()); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := models.CreateShiftReport(f.ctx, f.newReport(f.worker.ID, 20240103, false, false, 1), f.workerActor()); err != nil {
		t.Fatalf("CreateShiftReport after leave deleted: %v", err)
	}

	leaves, err := models.ListLeaves(f.ctx, testCompany, f.worker.ID)
	if err != nil {
		t.Fatalf("ListLeaves: %v", err)
	}
	if len(leaves) != 0 {
		t.Fatalf("expected deleted leave hidden, got %d", len(leaves))
	}
}
