package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/shifts_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User is any account of a company; workers carry a pay-category.
type User struct {
	ID          int       `gorm:"primary_key" json:"id"`
	CompanyId   string    `gorm:"size:64;index;not null" json:"company_id"`
	Username    string    `gorm:"size:100;not null" json:"username"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Role        UserRole  `gorm:"size:1;not null" json:"role"`
	PayCategory *int      `json:"pay_category"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// lockWorker takes a row lock on the worker for the rest of tx.
// Concurrent check-then-write sequences for the same worker queue up behind it.
func lockWorker(ctx context.Context, tx *gorm.DB, companyId string, workerId int) (*User, error) {
	var worker User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ?", companyId).
		First(&worker, workerId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &worker, nil
}

// acquireWorker takes the cross-instance lock for a worker's check-then-write sequence.
func acquireWorker(ctx context.Context, companyId string, workerId int) (func(), error) {
	release, err := utils.WorkerLock(ctx, companyId, workerId)
	if errors.Is(err, utils.ErrWorkerBusy) {
		return release, ErrWorkerBusy
	}
	return release, err
}
