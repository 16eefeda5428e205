package utils

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceCounter holds the last number handed out per company and sequence.
// It only moves forward, so numbers of hard-deleted rows are never reused.
type SequenceCounter struct {
	ID        int    `gorm:"primary_key"`
	CompanyId string `gorm:"size:64;not null;uniqueIndex:idx_sequence_counter"`
	Name      string `gorm:"size:64;not null;uniqueIndex:idx_sequence_counter"`
	Value     int64  `gorm:"not null;default:0"`
}

// GetSequence returns the next sequence_no of T for the company. The counter
// row is locked for the rest of tx; a rollback gives the number back.
// Rows written without the counter are caught up with through max(sequence_no).
func GetSequence[T any](ctx context.Context, tx *gorm.DB, companyId string) (int64, error) {
	name := strings.ToLower(GetTypeName[T]())

	counter, err := lockSequenceCounter(ctx, tx, companyId, name)
	if err != nil {
		return 0, err
	}
	if counter == nil {
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&SequenceCounter{CompanyId: companyId, Name: name}).Error; err != nil {
			return 0, err
		}
		if counter, err = lockSequenceCounter(ctx, tx, companyId, name); err != nil {
			return 0, err
		}
		if counter == nil {
			return 0, errors.New("sequence counter missing after insert")
		}
	}

	dbSeq, err := maxSequence[T](ctx, tx, companyId)
	if err != nil {
		return 0, err
	}
	next := max(counter.Value, dbSeq) + 1

	if err := tx.WithContext(ctx).Model(&SequenceCounter{}).
		Where("id = ? AND company_id = ?", counter.ID, companyId).
		Update("value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func lockSequenceCounter(ctx context.Context, tx *gorm.DB, companyId string, name string) (*SequenceCounter, error) {
	var counters []SequenceCounter
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND name = ?", companyId, name).
		Limit(1).
		Find(&counters).Error; err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, nil
	}
	return &counters[0], nil
}

func maxSequence[T any](ctx context.Context, tx *gorm.DB, companyId string) (int64, error) {
	var model T
	var dbSeq *int64
	if err := tx.WithContext(ctx).Model(&model).Select("max(sequence_no)").
		Where("company_id = ?", companyId).
		Scan(&dbSeq).Error; err != nil {
		return 0, err
	}
	// no records yet
	if dbSeq == nil {
		return 0, nil
	}
	return *dbSeq, nil
}
