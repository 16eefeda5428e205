package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"gorm.io/gorm"
)

// Notification is a routing decision: who gets which payload.
type Notification struct {
	RecipientId int
	Payload     PushPayload
}

// ChangeHandler decides whom a committed change concerns. A nil Notification means nobody.
type ChangeHandler interface {
	OnInsert(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*Notification, error)
	OnUpdate(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*Notification, error)
}

// HandlerRegistry maps watched entity kinds to their handler. Built once in main.
type HandlerRegistry map[models.EntityKind]ChangeHandler

func NewHandlerRegistry() HandlerRegistry {
	return HandlerRegistry{
		models.EntityKindProjectWork: ProjectWorkHandler{},
		models.EntityKindShiftReport: ShiftReportHandler{},
	}
}

// Resolve routes a record to its handler. Unknown kinds and actions are ignored.
func (r HandlerRegistry) Resolve(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*Notification, error) {
	h, ok := r[rec.EntityKind]
	if !ok {
		return nil, nil
	}
	switch rec.Action {
	case models.ChangeActionCreate:
		return h.OnInsert(ctx, db, rec)
	case models.ChangeActionUpdate:
		return h.OnUpdate(ctx, db, rec)
	}
	return nil, nil
}

func entityUrl(path string, id int) string {
	return fmt.Sprintf("%s/%s/%d", config.AppBaseURL(), path, id)
}

// loadActive fetches a tenant row; deleted or missing rows yield nil.
func loadActive[T any](ctx context.Context, db *gorm.DB, companyId string, id int, deleted func(*T) bool) (*T, error) {
	row, err := utils.FetchModelTx[T](ctx, db, companyId, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if deleted != nil && deleted(row) {
		return nil, nil
	}
	return row, nil
}

// ProjectWorkHandler: insert notifies the site manager, signing notifies the project leader.
type ProjectWorkHandler struct{}

func (ProjectWorkHandler) load(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*models.ProjectWork, *models.Project, error) {
	pw, err := loadActive(ctx, db, rec.CompanyId, rec.EntityId, func(p *models.ProjectWork) bool { return p.Deleted })
	if err != nil || pw == nil {
		return nil, nil, err
	}
	project, err := loadActive[models.Project](ctx, db, rec.CompanyId, pw.ProjectId, nil)
	if err != nil || project == nil {
		return nil, nil, err
	}
	return pw, project, nil
}

func (h ProjectWorkHandler) OnInsert(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*Notification, error) {
	pw, project, err := h.load(ctx, db, rec)
	if err != nil || pw == nil {
		return nil, err
	}
	object, err := loadActive[models.ConstructionObject](ctx, db, rec.CompanyId, project.ObjectId, nil)
	if err != nil || object == nil || object.ManagerId == 0 {
		return nil, err
	}
	return &Notification{
		RecipientId: object.ManagerId,
		Payload: PushPayload{
			Title: "New project work",
			Body:  fmt.Sprintf("%s: %s of work #%d scheduled", project.Name, pw.Quantity.String(), pw.WorkId),
			Url:   entityUrl("project-works", pw.ID),
		},
	}, nil
}

func (h ProjectWorkHandler) OnUpdate(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*Notification, error) {
	if !rec.SignedNow() {
		return nil, nil
	}
	pw, project, err := h.load(ctx, db, rec)
	if err != nil || pw == nil || project.LeaderId == 0 {
		return nil, err
	}
	return &Notification{
		RecipientId: project.LeaderId,
		Payload: PushPayload{
			Title: "Project work signed",
			Body:  fmt.Sprintf("%s: work #%d was signed", project.Name, pw.WorkId),
			Url:   entityUrl("project-works", pw.ID),
		},
	}, nil
}

// ShiftReportHandler: insert notifies the project leader, signing notifies the worker.
type ShiftReportHandler struct{}

func (ShiftReportHandler) load(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*models.ShiftReport, error) {
	return loadActive(ctx, db, rec.CompanyId, rec.EntityId, func(r *models.ShiftReport) bool { return r.Deleted })
}

func (h ShiftReportHandler) OnInsert(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*Notification, error) {
	report, err := h.load(ctx, db, rec)
	if err != nil || report == nil {
		return nil, err
	}
	project, err := loadActive[models.Project](ctx, db, rec.CompanyId, report.ProjectId, nil)
	if err != nil || project == nil || project.LeaderId == 0 {
		return nil, err
	}
	return &Notification{
		RecipientId: project.LeaderId,
		Payload: PushPayload{
			Title: "New shift report",
			Body:  fmt.Sprintf("%s: shift report #%d for %d", project.Name, report.SequenceNo, report.Date),
			Url:   entityUrl("shift-reports", report.ID),
		},
	}, nil
}

func (h ShiftReportHandler) OnUpdate(ctx context.Context, db *gorm.DB, rec models.NotificationRecord) (*Notification, error) {
	if !rec.SignedNow() {
		return nil, nil
	}
	report, err := h.load(ctx, db, rec)
	if err != nil || report == nil {
		return nil, err
	}
	return &Notification{
		RecipientId: report.WorkerId,
		Payload: PushPayload{
			Title: "Shift report signed",
			Body:  fmt.Sprintf("Your shift report #%d for %d was signed", report.SequenceNo, report.Date),
			Url:   entityUrl("shift-reports", report.ID),
		},
	}, nil
}
