package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/shopspring/decimal"
)

const testCompany = "acme"

type fixture struct {
	ctx     context.Context
	admin   models.User
	leader  models.User
	worker  models.User // pay-category 2
	newbie  models.User // no pay-category
	object  models.ConstructionObject
	project models.Project
	work    models.WorkItem
	tier    models.PriceTier
}

func (f *fixture) adminActor() models.Actor {
	return models.NewActor(testCompany, f.admin.ID, models.UserRoleAdmin)
}

func (f *fixture) workerActor() models.Actor {
	return models.NewActor(testCompany, f.worker.ID, models.UserRoleWorker)
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

// newFixture opens a fresh SQLite database with one company: an admin, a
// project leader, a category-2 worker priced at 100.00 for one work item and a
// worker without a category. Redis stays disabled.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("MISSING_PRICE_POLICY", "")
	config.UseRedis(nil)

	path := filepath.Join(t.TempDir(), "shifts_test.db")
	if err := config.ConnectSQLite(path); err != nil {
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

	f := &fixture{ctx: context.Background()}
	db := config.GetDB()
	f.admin = models.User{CompanyId: testCompany, Username: "admin", Name: "Admin", Role: models.UserRoleAdmin, IsActive: true}
	f.leader = models.User{CompanyId: testCompany, Username: "leader", Name: "Leader", Role: models.UserRoleProjectLeader, IsActive: true}
	f.worker = models.User{CompanyId: testCompany, Username: "worker", Name: "Worker", Role: models.UserRoleWorker, PayCategory: intPtr(2), IsActive: true}
	f.newbie = models.User{CompanyId: testCompany, Username: "newbie", Name: "Newbie", Role: models.UserRoleWorker, IsActive: true}
	for _, u := range []*models.User{&f.admin, &f.leader, &f.worker, &f.newbie} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("create user %s: %v", u.Username, err)
		}
	}

	f.object = models.ConstructionObject{CompanyId: testCompany, Name: "Site", ManagerId: f.admin.ID}
	if err := db.Create(&f.object).Error; err != nil {
		t.Fatalf("create object: %v", err)
	}
	f.project = models.Project{CompanyId: testCompany, ObjectId: f.object.ID, LeaderId: f.leader.ID, Name: "Tower"}
	if err := db.Create(&f.project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	f.work = models.WorkItem{CompanyId: testCompany, Name: "Bricklaying", Unit: "m2"}
	if err := db.Create(&f.work).Error; err != nil {
		t.Fatalf("create work item: %v", err)
	}

	tier, err := models.SetPriceTier(f.ctx, &models.NewPriceTier{
		WorkId:   f.work.ID,
		Category: 2,
		Price:    decimal.RequireFromString("100.00"),
	}, f.adminActor())
	if err != nil {
		t.Fatalf("SetPriceTier: %v", err)
	}
	f.tier = *tier
	return f
}

func (f *fixture) newReport(workerId int, date int64, extreme bool, night bool, qty int64) *models.NewShiftReport {
	return &models.NewShiftReport{
		WorkerId:          workerId,
		ProjectId:         f.project.ID,
		Date:              date,
		ExtremeConditions: extreme,
		NightShift:        night,
		Details: []models.NewShiftReportDetail{
			{WorkId: f.work.ID, Quantity: decimal.NewFromInt(qty)},
		},
	}
}

func countRows(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := config.GetDB().Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
