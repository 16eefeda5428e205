package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const MaxPayCategory = 4

// PriceTier is the unit price of a work item for one pay-category.
// At most one non-deleted tier exists per (work, category).
type PriceTier struct {
	ID        int             `gorm:"primary_key" json:"id"`
	CompanyId string          `gorm:"size:64;index;not null" json:"company_id"`
	WorkId    int             `gorm:"index:idx_price_tier_lookup,priority:1;not null" json:"work_id"`
	Category  int             `gorm:"index:idx_price_tier_lookup,priority:2;not null" json:"category"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Deleted   bool            `gorm:"not null;default:false" json:"deleted"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPriceTier struct {
	WorkId   int             `json:"work_id" binding:"required"`
	Category int             `json:"category" binding:"min=0,max=4"`
	Price    decimal.Decimal `json:"price"`
}

// PriceLookupQuery finds the active tier for a work item and pay-category.
type PriceLookupQuery struct {
	CompanyId string
	WorkId    int
	Category  int
}

// Find returns nil without error when no tier exists.
func (q PriceLookupQuery) Find(ctx context.Context, tx *gorm.DB) (*PriceTier, error) {
	var tiers []PriceTier
	err := tx.WithContext(ctx).
		Where("company_id = ? AND work_id = ? AND category = ? AND deleted = ?", q.CompanyId, q.WorkId, q.Category, false).
		Order("id DESC").
		Limit(1).
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return nil, nil
	}
	return &tiers[0], nil
}

func (input *NewPriceTier) validate(ctx context.Context, tx *gorm.DB, companyId string) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return validationError("price must not be negative")
	}
	if err := utils.ValidateResourceIdTx[WorkItem](ctx, tx, companyId, input.WorkId); err != nil {
		return validationError("work item not found")
	}
	return nil
}

// SetPriceTier replaces the active price of (work, category).
// The previous tier is soft-deleted in the same transaction.
func SetPriceTier(ctx context.Context, input *NewPriceTier, actor Actor) (*PriceTier, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if !actor.Elevated {
		return nil, ErrForbidden
	}
	db := config.GetDB()
	if err := input.validate(ctx, db, actor.CompanyId); err != nil {
		return nil, err
	}

	tier := PriceTier{
		CompanyId: actor.CompanyId,
		WorkId:    input.WorkId,
		Category:  input.Category,
		Price:     input.Price,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PriceTier{}).
			Where("company_id = ? AND work_id = ? AND category = ? AND deleted = ?", actor.CompanyId, input.WorkId, input.Category, false).
			Update("deleted", true).Error; err != nil {
			return err
		}
		return tx.Create(&tier).Error
	})
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
