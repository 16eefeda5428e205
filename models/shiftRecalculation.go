package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShiftReportDetailChanges struct {
	WorkId        *int             `json:"work_id"`
	Quantity      *decimal.Decimal `json:"quantity"`
	ProjectWorkId *int             `json:"project_work_id"`
}

// RecalculateShiftReport re-prices every line of a report with cond, inside tx.
// Work and quantity of the lines are left untouched.
func RecalculateShiftReport(ctx context.Context, tx *gorm.DB, companyId string, shiftReportId int, cond ShiftConditions, workerId int) error {
	var details []ShiftReportDetail
	if err := tx.WithContext(ctx).
		Where("shift_report_id = ?", shiftReportId).
		Order("id").
		Find(&details).Error; err != nil {
		return err
	}

	policy := config.GetMissingPricePolicy()
	for i := range details {
		line, err := ResolveLineAmount(ctx, tx, companyId, details[i].WorkId, workerId, details[i].Quantity, cond)
		if err != nil {
			return err
		}
		if _, err := applyMissingPricePolicy(policy, line, details[i].WorkId); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Model(&details[i]).Updates(map[string]interface{}{
			"Summ":   line.Summ,
			"Priced": line.Priced,
		}).Error; err != nil {
			return err
		}
	}

	_, err := refreshNeedsReview(ctx, tx, shiftReportId, policy)
	return err
}

// withWorkerLocked runs fn in a transaction holding the worker's lock.
func withWorkerLocked(ctx context.Context, companyId string, workerId int, fn func(tx *gorm.DB) error) error {
	release, err := acquireWorker(ctx, companyId, workerId)
	if err != nil {
		return err
	}
	defer release()

	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockWorker(ctx, tx, companyId, workerId); err != nil {
			return err
		}
		return fn(tx)
	})
}

// RecalculateShift runs the cascade in its own transaction; all lines change or none.
func RecalculateShift(ctx context.Context, companyId string, shiftReportId int, extremeConditions bool, nightShift bool, workerId int) error {
	cond := ShiftConditions{ExtremeConditions: extremeConditions, NightShift: nightShift}
	return withWorkerLocked(ctx, companyId, workerId, func(tx *gorm.DB) error {
		return RecalculateShiftReport(ctx, tx, companyId, shiftReportId, cond, workerId)
	})
}

// RepriceShiftReport re-prices a report with its stored flags, e.g. after a price change.
func RepriceShiftReport(ctx context.Context, id int, actor Actor) (*ShiftReport, error) {
	current, err := GetShiftReport(ctx, actor.CompanyId, id)
	if err != nil {
		return nil, err
	}
	if err := current.checkSignedLock(actor); err != nil {
		return nil, err
	}
	err = withWorkerLocked(ctx, actor.CompanyId, current.WorkerId, func(tx *gorm.DB) error {
		report, err := utils.FetchModelTx[ShiftReport](ctx, tx, actor.CompanyId, id)
		if err != nil {
			return err
		}
		if report.Deleted {
			return utils.ErrorRecordNotFound
		}
		if err := report.checkSignedLock(actor); err != nil {
			return err
		}
		return RecalculateShiftReport(ctx, tx, actor.CompanyId, report.ID, report.Conditions(), report.WorkerId)
	})
	if err != nil {
		return nil, err
	}
	return GetShiftReport(ctx, actor.CompanyId, id)
}

// UpdateShiftReportDetail changes one line and re-prices it against its report's flags.
func UpdateShiftReportDetail(ctx context.Context, detailId int, input *ShiftReportDetailChanges, actor Actor) (*ShiftReportDetail, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	db := config.GetDB()

	var detail ShiftReportDetail
	if err := db.WithContext(ctx).First(&detail, detailId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	// the report carries the tenant; a detail of another company is simply not found
	report, err := utils.FetchModel[ShiftReport](ctx, actor.CompanyId, detail.ShiftReportId)
	if err != nil {
		return nil, err
	}
	if report.Deleted {
		return nil, utils.ErrorRecordNotFound
	}
	if err := report.checkSignedLock(actor); err != nil {
		return nil, err
	}

	if input.WorkId != nil {
		if err := utils.ValidateResourceId[WorkItem](ctx, actor.CompanyId, *input.WorkId); err != nil {
			return nil, validationError("work item not found")
		}
		detail.WorkId = *input.WorkId
	}
	if input.Quantity != nil {
		if input.Quantity.IsNegative() {
			return nil, validationError("quantity must not be negative")
		}
		detail.Quantity = *input.Quantity
	}
	if input.ProjectWorkId != nil {
		if err := utils.ValidateResourceId[ProjectWork](ctx, actor.CompanyId, *input.ProjectWorkId); err != nil {
			return nil, validationError("project work not found")
		}
		detail.ProjectWorkId = input.ProjectWorkId
	}

	release, err := acquireWorker(ctx, actor.CompanyId, report.WorkerId)
	if err != nil {
		return nil, err
	}
	defer release()

	policy := config.GetMissingPricePolicy()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockWorker(ctx, tx, actor.CompanyId, report.WorkerId); err != nil {
			return err
		}
		locked, err := utils.FetchModelTx[ShiftReport](ctx, tx, actor.CompanyId, report.ID)
		if err != nil {
			return err
		}
		if err := locked.checkSignedLock(actor); err != nil {
			return err
		}

		line, err := ResolveLineAmount(ctx, tx, actor.CompanyId, detail.WorkId, locked.WorkerId, detail.Quantity, locked.Conditions())
		if err != nil {
			return err
		}
		if _, err := applyMissingPricePolicy(policy, line, detail.WorkId); err != nil {
			return err
		}
		detail.Summ = line.Summ
		detail.Priced = line.Priced

		if err := tx.Model(&ShiftReportDetail{ID: detail.ID}).Updates(map[string]interface{}{
			"WorkId":        detail.WorkId,
			"Quantity":      detail.Quantity,
			"ProjectWorkId": detail.ProjectWorkId,
			"Summ":          detail.Summ,
			"Priced":        detail.Priced,
		}).Error; err != nil {
			return err
		}
		_, err = refreshNeedsReview(ctx, tx, locked.ID, policy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}
