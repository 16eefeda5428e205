package workflow_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/mmdatafocus/shifts_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const testCompany = "acme"

type sent struct {
	recipient int
	payload   workflow.PushPayload
}

type fakeSender struct {
	err  error
	sent []sent
}

func (s *fakeSender) Send(ctx context.Context, sub *models.PushSubscription, payload workflow.PushPayload) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, sent{recipient: sub.UserId, payload: payload})
	return "msg-1", nil
}

type env struct {
	ctx     context.Context
	manager models.User
	leader  models.User
	worker  models.User
	project models.Project
	work    models.WorkItem
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("MISSING_PRICE_POLICY", "")
	config.UseRedis(nil)
	if err := config.ConnectSQLite(filepath.Join(t.TempDir(), "workflow_test.db")); err != nil {
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

	e := &env{ctx: context.Background()}
	db := config.GetDB()
	category := 1
	e.manager = models.User{CompanyId: testCompany, Username: "manager", Name: "Manager", Role: models.UserRoleAdmin, IsActive: true}
	e.leader = models.User{CompanyId: testCompany, Username: "leader", Name: "Leader", Role: models.UserRoleProjectLeader, IsActive: true}
	e.worker = models.User{CompanyId: testCompany, Username: "worker", Name: "Worker", Role: models.UserRoleWorker, PayCategory: &category, IsActive: true}
	for _, u := range []*models.User{&e.manager, &e.leader, &e.worker} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	object := models.ConstructionObject{CompanyId: testCompany, Name: "Site", ManagerId: e.manager.ID}
	if err := db.Create(&object).Error; err != nil {
		t.Fatalf("create object: %v", err)
	}
	e.project = models.Project{CompanyId: testCompany, ObjectId: object.ID, LeaderId: e.leader.ID, Name: "Tower"}
	if err := db.Create(&e.project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	e.work = models.WorkItem{CompanyId: testCompany, Name: "Plastering", Unit: "m2"}
	if err := db.Create(&e.work).Error; err != nil {
		t.Fatalf("create work item: %v", err)
	}
	return e
}

func (e *env) actor(u models.User) models.Actor {
	return models.NewActor(testCompany, u.ID, u.Role)
}

func (e *env) subscribe(t *testing.T, u models.User) {
	t.Helper()
	_, err := models.SavePushSubscription(e.ctx, &models.NewPushSubscription{
		Endpoint: "https://push.example.com/" + u.Username,
		P256dh:   "key",
		Auth:     "auth",
	}, e.actor(u))
	if err != nil {
		t.Fatalf("SavePushSubscription: %v", err)
	}
}

func (e *env) dispatcher(sender workflow.PushSender) *workflow.NotificationDispatcher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return workflow.NewNotificationDispatcher(config.GetDB(), logger, workflow.NewHandlerRegistry(), sender)
}

func (e *env) createReport(t *testing.T) *models.ShiftReport {
	t.Helper()
	report, err := models.CreateShiftReport(e.ctx, &models.NewShiftReport{
		WorkerId:  e.worker.ID,
		ProjectId: e.project.ID,
		Date:      20240301,
		Details: []models.NewShiftReportDetail{
			{WorkId: e.work.ID, Quantity: decimal.NewFromInt(2)},
		},
	}, e.actor(e.worker))
	if err != nil {
		t.Fatalf("CreateShiftReport: %v", err)
	}
	return report
}

func statuses(t *testing.T) []models.NotificationRecord {
	t.Helper()
	var records []models.NotificationRecord
	if err := config.GetDB().Order("id").Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	return records
}

func TestDispatcher_ShiftReportRouting(t *testing.T) {
	e := newEnv(t)
	e.subscribe(t, e.leader)
	e.subscribe(t, e.worker)
	sender := &fakeSender{}
	d := e.dispatcher(sender)
	ctx := utils.SetSkipTenantScopeInContext(e.ctx, true)

	report := e.createReport(t)
	signed := true
	if _, err := models.UpdateShiftReport(e.ctx, report.ID, &models.ShiftReportChanges{Signed: &signed}, e.actor(e.leader)); err != nil {
		t.Fatalf("UpdateShiftReport: %v", err)
	}

	if n := d.DispatchOnce(ctx); n != 2 {
		t.Fatalf("expected 2 claimed records, got %d", n)
	}
	if n := d.DispatchOnce(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(sender.sent))
	}
	if sender.sent[0].recipient != e.leader.ID {
		t.Fatalf("insert should notify leader, got %d", sender.sent[0].recipient)
	}
	if sender.sent[1].recipient != e.worker.ID {
		t.Fatalf("signing should notify worker, got %d", sender.sent[1].recipient)
	}

	for _, r := range statuses(t) {
		if r.Status != models.NotificationStatusSent || r.Attempts != 1 {
			t.Fatalf("unexpected record: %+v", r)
		}
		if r.PubSubMessageId == nil || *r.PubSubMessageId != "msg-1" {
			t.Fatalf("expected message id stored, got %v", r.PubSubMessageId)
		}
	}
}

func TestDispatcher_ProjectWorkRouting(t *testing.T) {
	e := newEnv(t)
	e.subscribe(t, e.manager)
	e.subscribe(t, e.leader)
	sender := &fakeSender{}
	d := e.dispatcher(sender)

	pw, err := models.CreateProjectWork(e.ctx, &models.NewProjectWork{
		ProjectId: e.project.ID,
		WorkId:    e.work.ID,
		Quantity:  decimal.NewFromInt(40),
	}, e.actor(e.manager))
	if err != nil {
		t.Fatalf("CreateProjectWork: %v", err)
	}
	qty := decimal.NewFromInt(50)
	if _, err := models.UpdateProjectWork(e.ctx, pw.ID, &models.ProjectWorkChanges{Quantity: &qty}, e.actor(e.manager)); err != nil {
		t.Fatalf("UpdateProjectWork: %v", err)
	}
	signed := true
	if _, err := models.UpdateProjectWork(e.ctx, pw.ID, &models.ProjectWorkChanges{Signed: &signed}, e.actor(e.manager)); err != nil {
		t.Fatalf("UpdateProjectWork: %v", err)
	}

	if n := d.DispatchOnce(utils.SetSkipTenantScopeInContext(e.ctx, true)); n != 3 {
		t.Fatalf("expected 3 claimed records, got %d", n)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(sender.sent))
	}
	if sender.sent[0].recipient != e.manager.ID || sender.sent[1].recipient != e.leader.ID {
		t.Fatalf("unexpected recipients: %+v", sender.sent)
	}

	records := statuses(t)
	want := []string{models.NotificationStatusSent, models.NotificationStatusDropped, models.NotificationStatusSent}
	for i, r := range records {
		if r.Status != want[i] {
			t.Fatalf("record %d: expected %s, got %s", i, want[i], r.Status)
		}
	}
}

func TestDispatcher_ProjectWorkSignedOnce(t *testing.T) {
	e := newEnv(t)
	e.subscribe(t, e.leader)
	sender := &fakeSender{}
	d := e.dispatcher(sender)

	pw, err := models.CreateProjectWork(e.ctx, &models.NewProjectWork{
		ProjectId: e.project.ID,
		WorkId:    e.work.ID,
		Quantity:  decimal.NewFromInt(10),
	}, e.actor(e.manager))
	if err != nil {
		t.Fatalf("CreateProjectWork: %v", err)
	}
	signed, unsigned := true, false
	if _, err := models.UpdateProjectWork(e.ctx, pw.ID, &models.ProjectWorkChanges{Signed: &signed}, e.actor(e.manager)); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := models.UpdateProjectWork(e.ctx, pw.ID, &models.ProjectWorkChanges{Signed: &unsigned}, e.actor(e.manager)); !errors.Is(err, models.ErrProjectWorkSigned) {
		t.Fatalf("expected unsign to be refused, got %v", err)
	}
	if _, err := models.UpdateProjectWork(e.ctx, pw.ID, &models.ProjectWorkChanges{Signed: &signed}, e.actor(e.manager)); err != nil {
		t.Fatalf("sign again: %v", err)
	}

	d.DispatchOnce(utils.SetSkipTenantScopeInContext(e.ctx, true))

	leaderPushes := 0
	for _, s := range sender.sent {
		if s.recipient == e.leader.ID {
			leaderPushes++
		}
	}
	if leaderPushes != 1 {
		t.Fatalf("expected leader notified once, got %d", leaderPushes)
	}
}

func TestDispatcher_DropsWithoutSubscription(t *testing.T) {
	e := newEnv(t)
	sender := &fakeSender{}
	d := e.dispatcher(sender)

	e.createReport(t)
	d.DispatchOnce(utils.SetSkipTenantScopeInContext(e.ctx, true))

	if len(sender.sent) != 0 {
		t.Fatalf("expected nothing sent, got %d", len(sender.sent))
	}
	records := statuses(t)
	if len(records) != 1 || records[0].Status != models.NotificationStatusDropped {
		t.Fatalf("expected one DROPPED record, got %+v", records)
	}
	if records[0].RecipientId == nil || *records[0].RecipientId != e.leader.ID {
		t.Fatalf("expected leader recorded as recipient, got %v", records[0].RecipientId)
	}
}

func TestDispatcher_FailureLeavesWriteAndReplays(t *testing.T) {
	e := newEnv(t)
	e.subscribe(t, e.leader)
	sender := &fakeSender{err: errors.New("gateway down")}
	d := e.dispatcher(sender)
	ctx := utils.SetSkipTenantScopeInContext(e.ctx, true)

	report := e.createReport(t)
	d.DispatchOnce(ctx)

	records := statuses(t)
	if len(records) != 1 || records[0].Status != models.NotificationStatusFailed {
		t.Fatalf("expected one FAILED record, got %+v", records)
	}
	if records[0].LastError == nil || *records[0].LastError != "gateway down" {
		t.Fatalf("expected last error stored, got %v", records[0].LastError)
	}
	// the business write stays committed
	if _, err := models.GetShiftReport(e.ctx, testCompany, report.ID); err != nil {
		t.Fatalf("report lost after failed delivery: %v", err)
	}
	// failures are not retried on their own
	if n := d.DispatchOnce(ctx); n != 0 {
		t.Fatalf("expected FAILED record to stay parked, claimed %d", n)
	}

	if _, err := models.ReplayNotification(e.ctx, records[0].ID); err != nil {
		t.Fatalf("ReplayNotification: %v", err)
	}
	sender.err = nil
	if n := d.DispatchOnce(ctx); n != 1 {
		t.Fatalf("expected replayed record claimed, got %d", n)
	}
	records = statuses(t)
	if records[0].Status != models.NotificationStatusSent || records[0].Attempts != 2 {
		t.Fatalf("expected SENT after replay with 2 attempts, got %+v", records[0])
	}
}

func TestHandlerRegistry_IgnoresUnknown(t *testing.T) {
	e := newEnv(t)
	registry := workflow.NewHandlerRegistry()

	cases := []models.NotificationRecord{
		{CompanyId: testCompany, EntityKind: models.EntityKind("leave"), EntityId: 1, Action: models.ChangeActionCreate},
		{CompanyId: testCompany, EntityKind: models.EntityKindShiftReport, EntityId: 999, Action: models.ChangeActionCreate},
		{CompanyId: testCompany, EntityKind: models.EntityKindShiftReport, EntityId: 1, Action: models.ChangeActionUpdate},
	}
	for i, rec := range cases {
		note, err := registry.Resolve(e.ctx, config.GetDB(), rec)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if note != nil {
			t.Fatalf("case %d: expected no notification, got %+v", i, note)
		}
	}
}
