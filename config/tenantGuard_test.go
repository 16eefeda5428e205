package config_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"gorm.io/gorm"
)

func setupTenants(t *testing.T) {
	t.Helper()
	if err := config.ConnectSQLite(filepath.Join(t.TempDir(), "tenants.db")); err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := config.GetDB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	db := config.GetDB()
	for _, company := range []string{"acme", "acme", "other"} {
		leave := models.Leave{CompanyId: company, WorkerId: 1, ApproverId: 2, Reason: models.LeaveReasonVacation, Start: 20240101, End: 20240102}
		if err := db.Create(&leave).Error; err != nil {
			t.Fatalf("create leave: %v", err)
		}
		report := models.ShiftReport{CompanyId: company, SequenceNo: 1, WorkerId: 1, ProjectId: 1, Date: 20240110}
		if err := db.Create(&report).Error; err != nil {
			t.Fatalf("create report: %v", err)
		}
	}
}

func TestTenantGuard_ScopesReads(t *testing.T) {
	setupTenants(t)
	db := config.GetDB()
	acme := utils.SetCompanyIdInContext(context.Background(), "acme")

	cases := []struct {
		name    string
		ctx     context.Context
		leaves  int
		reports int
	}{
		{"company", acme, 2, 2},
		{"other company", utils.SetCompanyIdInContext(context.Background(), "other"), 1, 1},
		{"skip flag", utils.SetSkipTenantScopeInContext(acme, true), 3, 3},
		{"platform admin", utils.SetIsAdminInContext(acme, true), 3, 3},
		{"no company", context.Background(), 3, 3},
	}
	for _, tc := range cases {
		var leaves []models.Leave
		if err := db.WithContext(tc.ctx).Where("worker_id = ?", 1).Find(&leaves).Error; err != nil {
			t.Fatalf("%s: find leaves: %v", tc.name, err)
		}
		var reports int64
		if err := db.WithContext(tc.ctx).Model(&models.ShiftReport{}).Where("date = ?", 20240110).Count(&reports).Error; err != nil {
			t.Fatalf("%s: count reports: %v", tc.name, err)
		}
		if len(leaves) != tc.leaves || int(reports) != tc.reports {
			t.Fatalf("%s: expected %d leaves and %d reports, got %d and %d", tc.name, tc.leaves, tc.reports, len(leaves), reports)
		}
	}

	// a foreign id looks missing
	var foreign models.Leave
	if err := db.Where("company_id = ?", "other").First(&foreign).Error; err != nil {
		t.Fatalf("load foreign leave: %v", err)
	}
	var seen models.Leave
	if err := db.WithContext(acme).First(&seen, foreign.ID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestTenantGuard_ScopesWrites(t *testing.T) {
	setupTenants(t)
	db := config.GetDB()
	acme := utils.SetCompanyIdInContext(context.Background(), "acme")

	res := db.WithContext(acme).Model(&models.ShiftReport{}).Where("worker_id = ?", 1).Update("signed", true)
	if res.Error != nil || res.RowsAffected != 2 {
		t.Fatalf("update: affected %d, err %v", res.RowsAffected, res.Error)
	}
	res = db.WithContext(acme).Where("worker_id = ?", 1).Delete(&models.Leave{})
	if res.Error != nil || res.RowsAffected != 2 {
		t.Fatalf("delete: affected %d, err %v", res.RowsAffected, res.Error)
	}

	var signedOther, leavesOther int64
	db.Model(&models.ShiftReport{}).Where("company_id = ? AND signed = ?", "other", true).Count(&signedOther)
	db.Model(&models.Leave{}).Where("company_id = ?", "other").Count(&leavesOther)
	if signedOther != 0 || leavesOther != 1 {
		t.Fatalf("other company touched: signed=%d leaves=%d", signedOther, leavesOther)
	}
}

func TestTenantGuard_StampsCreates(t *testing.T) {
	setupTenants(t)
	db := config.GetDB()
	acme := utils.SetCompanyIdInContext(context.Background(), "acme")

	leave := models.Leave{WorkerId: 3, ApproverId: 2, Reason: models.LeaveReasonSickLeave, Start: 20240201, End: 20240201}
	if err := db.WithContext(acme).Create(&leave).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if leave.CompanyId != "acme" {
		t.Fatalf("expected stamped company, got %q", leave.CompanyId)
	}

	batch := []*models.ShiftReport{
		{SequenceNo: 5, WorkerId: 3, ProjectId: 1, Date: 20240203},
		{SequenceNo: 6, WorkerId: 3, ProjectId: 1, Date: 20240204},
	}
	if err := db.WithContext(acme).Create(&batch).Error; err != nil {
		t.Fatalf("create batch: %v", err)
	}
	for _, r := range batch {
		if r.CompanyId != "acme" {
			t.Fatalf("expected stamped company on report %d, got %q", r.SequenceNo, r.CompanyId)
		}
	}

	foreign := models.Leave{CompanyId: "other", WorkerId: 3, ApproverId: 2, Reason: models.LeaveReasonVacation, Start: 20240301, End: 20240301}
	if err := db.WithContext(acme).Create(&foreign).Error; !errors.Is(err, config.ErrCrossTenantWrite) {
		t.Fatalf("expected ErrCrossTenantWrite, got %v", err)
	}
	var n int64
	db.Model(&models.Leave{}).Where("worker_id = ?", 3).Count(&n)
	if n != 1 {
		t.Fatalf("expected only the stamped leave, got %d", n)
	}

	// the dispatcher writes across companies
	skip := utils.SetSkipTenantScopeInContext(acme, true)
	if err := db.WithContext(skip).Create(&models.Leave{CompanyId: "other", WorkerId: 4, ApproverId: 2, Reason: models.LeaveReasonVacation, Start: 20240301, End: 20240301}).Error; err != nil {
		t.Fatalf("create with skip flag: %v", err)
	}
}

func TestCheckTenantTables(t *testing.T) {
	setupTenants(t)
	db := config.GetDB()

	if err := config.CheckTenantTables(db, &models.Leave{}, &models.ShiftReport{}); err != nil {
		t.Fatalf("CheckTenantTables: %v", err)
	}
	if err := config.CheckTenantTables(db, &models.ShiftReportDetail{}); err == nil {
		t.Fatalf("expected an error for a table without company_id")
	}
}
