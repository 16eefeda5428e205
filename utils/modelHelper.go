package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/shifts_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (company_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, companyId string, id int, associations ...string) (*T, error) {
	return FetchModelTx[T](ctx, config.GetDB(), companyId, id, associations...)
}

// FetchModelTx is FetchModel inside an open transaction.
func FetchModelTx[T any](ctx context.Context, tx *gorm.DB, companyId string, id int, associations ...string) (*T, error) {
	dbCtx := tx.WithContext(ctx).Where("company_id = ?", companyId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch all models of a company, filtered by an optional condition
func FetchAllModels[T any](ctx context.Context, companyId string, condition string, values ...interface{}) ([]*T, error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("company_id = ?", companyId)
	if condition != "" {
		dbCtx = dbCtx.Where(condition, values...)
	}
	var results []*T
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
