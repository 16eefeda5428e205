package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"gorm.io/gorm"
)

// NotificationRecord is a change staged in the same transaction as the write
// that caused it. The dispatcher delivers it after commit.
type NotificationRecord struct {
	ID              int          `gorm:"primary_key;index:idx_notification_dispatch,priority:2" json:"id"`
	CompanyId       string       `gorm:"size:64;not null;index" json:"company_id"`
	EntityKind      EntityKind   `gorm:"size:32;not null;index:idx_notification_entity,priority:1" json:"entity_kind"`
	EntityId        int          `gorm:"not null;index:idx_notification_entity,priority:2" json:"entity_id"`
	Action          ChangeAction `gorm:"size:1;not null" json:"action"`
	OldSigned       bool         `gorm:"not null;default:false" json:"old_signed"`
	NewSigned       bool         `gorm:"not null;default:false" json:"new_signed"`
	Status          string       `gorm:"size:20;not null;default:'PENDING';index:idx_notification_dispatch,priority:1" json:"status"` // PENDING|PROCESSING|SENT|DROPPED|FAILED
	Attempts        int          `gorm:"not null;default:0" json:"attempts"`
	RecipientId     *int         `json:"recipient_id"`
	PubSubMessageId *string      `gorm:"size:255" json:"pubsub_message_id"`
	LockedAt        *time.Time   `gorm:"index" json:"locked_at"`
	LockedBy        *string      `gorm:"size:100" json:"locked_by"`
	LastError       *string      `gorm:"type:text" json:"last_error"`
	ProcessedAt     *time.Time   `json:"processed_at"`
	CorrelationId   string       `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// SignedNow reports a false to true transition of the signed flag.
func (r NotificationRecord) SignedNow() bool {
	return !r.OldSigned && r.NewSigned
}

// StageChange writes a pending notification through tx. It commits or rolls
// back with the business write.
func StageChange(ctx context.Context, tx *gorm.DB, companyId string, kind EntityKind, entityId int, action ChangeAction, oldSigned bool, newSigned bool) error {
	record := NotificationRecord{
		CompanyId:     companyId,
		EntityKind:    kind,
		EntityId:      entityId,
		Action:        action,
		OldSigned:     oldSigned,
		NewSigned:     newSigned,
		Status:        NotificationStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ReplayNotification puts a FAILED record back in the queue.
func ReplayNotification(ctx context.Context, id int) (*NotificationRecord, error) {
	db := config.GetDB()
	var record NotificationRecord
	if err := db.WithContext(ctx).First(&record, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if record.Status != NotificationStatusFailed {
		return nil, validationError("only FAILED notifications can be replayed")
	}

	res := db.WithContext(ctx).Model(&NotificationRecord{}).
		Where("id = ? AND status = ?", id, NotificationStatusFailed).
		Updates(map[string]interface{}{
			"status":     NotificationStatusPending,
			"last_error": nil,
			"locked_at":  nil,
			"locked_by":  nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}
	record.Status = NotificationStatusPending
	record.LastError = nil
	return &record, nil
}
