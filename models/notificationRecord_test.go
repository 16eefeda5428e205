package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/shopspring/decimal"
)

func TestProjectWork_StagesChanges(t *testing.T) {
	f := newFixture(t)

	input := &models.NewProjectWork{ProjectId: f.project.ID, WorkId: f.work.ID, Quantity: decimal.NewFromInt(10)}
	if _, err := models.CreateProjectWork(f.ctx, input, f.workerActor()); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for worker, got %v", err)
	}

	pw, err := models.CreateProjectWork(f.ctx, input, f.adminActor())
	if err != nil {
		t.Fatalf("CreateProjectWork: %v", err)
	}
	signed := true
	if _, err := models.UpdateProjectWork(f.ctx, pw.ID, &models.ProjectWorkChanges{Signed: &signed}, f.adminActor()); err != nil {
		t.Fatalf("UpdateProjectWork: %v", err)
	}

	var records []models.NotificationRecord
	if err := config.GetDB().
		Where("entity_kind = ? AND entity_id = ?", models.EntityKindProjectWork, pw.ID).
		Order("id").Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 staged records, got %d", len(records))
	}
	if records[0].Action != models.ChangeActionCreate || records[0].SignedNow() {
		t.Fatalf("unexpected insert record: %+v", records[0])
	}
	if records[1].Action != models.ChangeActionUpdate || !records[1].SignedNow() {
		t.Fatalf("unexpected update record: %+v", records[1])
	}

	// signed is terminal: unsigning is refused and signing again stages no new transition
	unsigned := false
	if _, err := models.UpdateProjectWork(f.ctx, pw.ID, &models.ProjectWorkChanges{Signed: &unsigned}, f.adminActor()); !errors.Is(err, models.ErrProjectWorkSigned) || !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrProjectWorkSigned, got %v", err)
	}
	if _, err := models.UpdateProjectWork(f.ctx, pw.ID, &models.ProjectWorkChanges{Signed: &signed}, f.adminActor()); err != nil {
		t.Fatalf("UpdateProjectWork: %v", err)
	}
	if n := countRows(t, &models.NotificationRecord{}, "entity_kind = ? AND entity_id = ? AND old_signed = ? AND new_signed = ?",
		models.EntityKindProjectWork, pw.ID, false, true); n != 1 {
		t.Fatalf("expected exactly one signing transition, got %d", n)
	}

	negative := decimal.NewFromInt(-1)
	if _, err := models.UpdateProjectWork(f.ctx, pw.ID, &models.ProjectWorkChanges{Quantity: &negative}, f.adminActor()); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStageChange_KeepsCorrelationId(t *testing.T) {
	newFixture(t)

	ctx := utils.SetCorrelationIdInContext(context.Background(), "corr-1")
	if err := models.StageChange(ctx, config.GetDB(), testCompany, models.EntityKindShiftReport, 1, models.ChangeActionCreate, false, false); err != nil {
		t.Fatalf("StageChange: %v", err)
	}
	if n := countRows(t, &models.NotificationRecord{}, "correlation_id = ?", "corr-1"); n != 1 {
		t.Fatalf("expected record with correlation id, got %d", n)
	}
}

func TestReplayNotification(t *testing.T) {
	f := newFixture(t)
	db := config.GetDB()

	if err := models.StageChange(f.ctx, db, testCompany, models.EntityKindShiftReport, 1, models.ChangeActionCreate, false, false); err != nil {
		t.Fatalf("StageChange: %v", err)
	}
	var record models.NotificationRecord
	if err := db.Order("id DESC").First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}

	if _, err := models.ReplayNotification(f.ctx, record.ID); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for pending record, got %v", err)
	}

	if err := db.Model(&record).Updates(map[string]interface{}{
		"status":     models.NotificationStatusFailed,
		"last_error": "boom",
	}).Error; err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	replayed, err := models.ReplayNotification(f.ctx, record.ID)
	if err != nil {
		t.Fatalf("ReplayNotification: %v", err)
	}
	if replayed.Status != models.NotificationStatusPending || replayed.LastError != nil {
		t.Fatalf("unexpected replayed record: %+v", replayed)
	}
	if n := countRows(t, &models.NotificationRecord{}, "id = ? AND status = ?", record.ID, models.NotificationStatusPending); n != 1 {
		t.Fatalf("expected record back in queue")
	}

	if _, err := models.ReplayNotification(f.ctx, record.ID+100); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
