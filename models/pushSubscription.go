package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"gorm.io/gorm"
)

// PushSubscription holds the web-push endpoint and keys of one user.
type PushSubscription struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"size:64;index;not null" json:"company_id"`
	UserId    int       `gorm:"uniqueIndex;not null" json:"user_id"`
	Endpoint  string    `gorm:"type:text;not null" json:"endpoint"`
	P256dh    string    `gorm:"size:255;not null" json:"p256dh"`
	Auth      string    `gorm:"size:255;not null" json:"auth"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPushSubscription struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

func pushSubscriptionCacheKey(companyId string, userId int) string {
	return fmt.Sprintf("%s:%d", companyId, userId)
}

// SavePushSubscription stores the caller's subscription, replacing any previous one.
func SavePushSubscription(ctx context.Context, input *NewPushSubscription, actor Actor) (*PushSubscription, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var sub PushSubscription
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", actor.UserId).First(&sub).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		sub.CompanyId = actor.CompanyId
		sub.UserId = actor.UserId
		sub.Endpoint = input.Endpoint
		sub.P256dh = input.P256dh
		sub.Auth = input.Auth
		return tx.Save(&sub).Error
	})
	if err != nil {
		// two first-time subscribes of the same user raced on the unique index
		if utils.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w, subscription is being saved", ErrConflict)
		}
		return nil, err
	}

	if err := utils.RemoveRedisItem[PushSubscription](pushSubscriptionCacheKey(actor.CompanyId, actor.UserId)); err != nil {
		config.LogError(config.GetLogger(), "PushSubscription", "SavePushSubscription", "clear cache", sub.UserId, err)
	}
	return &sub, nil
}

// FindPushSubscription returns nil without error when the user never subscribed.
func FindPushSubscription(ctx context.Context, db *gorm.DB, companyId string, userId int) (*PushSubscription, error) {
	key := pushSubscriptionCacheKey(companyId, userId)
	if cached, err := utils.RetrieveRedis[PushSubscription](key); err == nil && cached != nil {
		return cached, nil
	}

	var subs []PushSubscription
	if err := db.WithContext(ctx).
		Where("company_id = ? AND user_id = ?", companyId, userId).
		Limit(1).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	if err := utils.StoreRedis(&subs[0], key); err != nil {
		config.LogError(config.GetLogger(), "PushSubscription", "FindPushSubscription", "store cache", userId, err)
	}
	return &subs[0], nil
}
