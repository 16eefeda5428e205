package utils

import (
	"context"
	"reflect"

	"github.com/mmdatafocus/shifts_backend/config"
	"gorm.io/gorm"
)

// check if id exists for the company, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, companyId string, id interface{}) error {
	return ValidateResourceIdTx[T](ctx, config.GetDB(), companyId, id)
}

// ValidateResourceIdTx checks existence through tx. Soft-deleted rows don't count
// when the model has a deleted column.
func ValidateResourceIdTx[T any](ctx context.Context, tx *gorm.DB, companyId string, id interface{}) error {
	cond := "id = ?"
	if hasDeletedFlag[T]() {
		cond = "id = ? AND deleted = false"
	}
	count, err := ResourceCountWhereTx[T](ctx, tx, companyId, cond, id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// check if ALL ids exist, return RecordNotFound Error
func ValidateResourcesId[M any, ID comparable](ctx context.Context, tx *gorm.DB, companyId string, ids []ID) error {
	unqIds := UniqueSlice(ids)
	if len(unqIds) == 0 {
		return nil
	}
	cond := "id IN ?"
	if hasDeletedFlag[M]() {
		cond = "id IN ? AND deleted = false"
	}
	count, err := ResourceCountWhereTx[M](ctx, tx, companyId, cond, unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}
	return nil
}

func ResourceCountWhereTx[T any](ctx context.Context, tx *gorm.DB, companyId string, condition string, value ...interface{}) (int64, error) {
	var model T
	dbCtx := tx.WithContext(ctx).Model(&model)
	if companyId != "" {
		dbCtx = dbCtx.Where("company_id = ?", companyId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

func hasDeletedFlag[T any]() bool {
	var v T
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	f, ok := t.FieldByName("Deleted")
	return ok && f.Type.Kind() == reflect.Bool
}
