package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationDispatcher polls committed notification records and delivers
// them. Delivery is best effort: a failure marks the record FAILED and is never
// retried automatically.
type NotificationDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Registry     HandlerRegistry
	Sender       PushSender

	BatchSize    int
	PollInterval time.Duration
	LockTimeout  time.Duration
}

func NewNotificationDispatcher(db *gorm.DB, logger *logrus.Logger, registry HandlerRegistry, sender PushSender) *NotificationDispatcher {
	return &NotificationDispatcher{
		DB:           db,
		Logger:       logger,
		DispatcherID: uuid.NewString(),
		Registry:     registry,
		Sender:       sender,
		BatchSize:    50,
		PollInterval: 500 * time.Millisecond,
		LockTimeout:  30 * time.Second,
	}
}

func (d *NotificationDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	// the dispatcher works across tenants
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch and delivers it. It returns the number of claimed records.
func (d *NotificationDispatcher) DispatchOnce(ctx context.Context) int {
	db := d.DB
	if db == nil {
		return 0
	}
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.NotificationRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// PENDING, or PROCESSING with a stale lock (dispatcher died mid-batch)
		q := tx.
			Where("status = ? OR (status = ? AND locked_at IS NOT NULL AND locked_at <= ?)",
				models.NotificationStatusPending, models.NotificationStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		ids := make([]int, 0, len(claimed))
		for i := range claimed {
			ids = append(ids, claimed[i].ID)
		}
		return tx.Model(&models.NotificationRecord{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":     models.NotificationStatusProcessing,
			"locked_at":  &now,
			"locked_by":  d.DispatcherID,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": nil,
		}).Error
	})
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithField("field", "NotificationDispatcher").Error("claim notifications: " + err.Error())
		}
		return 0
	}

	for _, rec := range claimed {
		d.deliver(ctx, rec)
	}
	return len(claimed)
}

// deliver never lets a failure escape; the business write is long committed.
func (d *NotificationDispatcher) deliver(ctx context.Context, rec models.NotificationRecord) {
	defer func() {
		if r := recover(); r != nil {
			d.markFailed(ctx, rec, nil, fmt.Errorf("panic: %v", r))
		}
	}()
	if rec.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, rec.CorrelationId)
	}

	note, err := d.Registry.Resolve(ctx, d.DB, rec)
	if err != nil {
		d.markFailed(ctx, rec, nil, err)
		return
	}
	if note == nil {
		d.markDone(ctx, rec, models.NotificationStatusDropped, nil, nil)
		return
	}

	sub, err := models.FindPushSubscription(ctx, d.DB, rec.CompanyId, note.RecipientId)
	if err != nil {
		d.markFailed(ctx, rec, &note.RecipientId, err)
		return
	}
	// no subscription, nobody to tell
	if sub == nil {
		d.markDone(ctx, rec, models.NotificationStatusDropped, &note.RecipientId, nil)
		return
	}

	msgId, err := d.Sender.Send(ctx, sub, note.Payload)
	if err != nil {
		d.markFailed(ctx, rec, &note.RecipientId, err)
		return
	}
	var msgIdPtr *string
	if msgId != "" {
		msgIdPtr = &msgId
	}
	d.markDone(ctx, rec, models.NotificationStatusSent, &note.RecipientId, msgIdPtr)
}

func (d *NotificationDispatcher) markDone(ctx context.Context, rec models.NotificationRecord, status string, recipientId *int, msgId *string) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.NotificationRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":             status,
			"recipient_id":       recipientId,
			"pub_sub_message_id": msgId,
			"processed_at":       &now,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
	if err != nil && d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":     "NotificationDispatcher",
			"record_id": rec.ID,
		}).Error("mark notification " + status + ": " + err.Error())
	}
}

func (d *NotificationDispatcher) markFailed(ctx context.Context, rec models.NotificationRecord, recipientId *int, cause error) {
	now := time.Now().UTC()
	msg := cause.Error()
	_ = d.DB.WithContext(ctx).Model(&models.NotificationRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":       models.NotificationStatusFailed,
			"recipient_id": recipientId,
			"last_error":   &msg,
			"processed_at": &now,
			"locked_at":    nil,
			"locked_by":    nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":          "NotificationDispatcher",
			"company_id":     rec.CompanyId,
			"record_id":      rec.ID,
			"entity_kind":    rec.EntityKind,
			"entity_id":      rec.EntityId,
			"correlation_id": rec.CorrelationId,
		}).Error("notification delivery failed: " + msg)
	}
}
