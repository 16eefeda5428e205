package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"gorm.io/gorm"
)

// Leave is an approved absence, inclusive of both ends.
type Leave struct {
	ID         int         `gorm:"primary_key" json:"id"`
	CompanyId  string      `gorm:"size:64;index;not null" json:"company_id"`
	WorkerId   int         `gorm:"index;not null" json:"worker_id"`
	ApproverId int         `gorm:"not null" json:"approver_id"`
	Reason     LeaveReason `gorm:"size:20;not null" json:"reason"`
	Start      int64       `gorm:"column:start_date;not null" json:"start"`
	End        int64       `gorm:"column:end_date;not null" json:"end"`
	Deleted    bool        `gorm:"not null;default:false" json:"deleted"`
	CreatedBy  int         `json:"created_by"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLeave struct {
	WorkerId   int         `json:"worker_id" binding:"required"`
	ApproverId int         `json:"approver_id" binding:"required"`
	Reason     LeaveReason `json:"reason" binding:"required"`
	Start      int64       `json:"start" binding:"required"`
	End        int64       `json:"end" binding:"required,gtefield=Start"`
}

func (l Leave) Interval() Interval {
	return Interval{Start: l.Start, End: l.End}
}

// validate input for both create & update. (id = 0 for create)
func (input *NewLeave) validate(ctx context.Context, actor Actor) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if !input.Reason.IsValid() {
		return validationError("invalid leave reason")
	}
	if !actor.Elevated && input.WorkerId != actor.UserId {
		return ErrForbidden
	}
	if err := utils.ValidateResourceId[User](ctx, actor.CompanyId, input.WorkerId); err != nil {
		return validationError("worker not found")
	}
	if err := utils.ValidateResourceId[User](ctx, actor.CompanyId, input.ApproverId); err != nil {
		return validationError("approver not found")
	}
	return nil
}

// checkLeaveSlot rejects an interval that meets another leave or any shift of the worker.
func checkLeaveSlot(ctx context.Context, tx *gorm.DB, companyId string, workerId int, interval Interval, excludeLeaveId int) error {
	overlap, err := HasOverlappingLeave(ctx, tx, companyId, workerId, interval, excludeLeaveId)
	if err != nil {
		return err
	}
	if overlap {
		return ErrOverlappingLeave
	}
	conflict, err := HasShiftConflict(ctx, tx, companyId, workerId, interval, 0)
	if err != nil {
		return err
	}
	if conflict {
		return ErrShiftConflict
	}
	return nil
}

func CreateLeave(ctx context.Context, input *NewLeave, actor Actor) (*Leave, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if err := input.validate(ctx, actor); err != nil {
		return nil, err
	}

	release, err := acquireWorker(ctx, actor.CompanyId, input.WorkerId)
	if err != nil {
		return nil, err
	}
	defer release()

	leave := Leave{
		CompanyId:  actor.CompanyId,
		WorkerId:   input.WorkerId,
		ApproverId: input.ApproverId,
		Reason:     input.Reason,
		Start:      input.Start,
		End:        input.End,
		CreatedBy:  actor.UserId,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if _, err := lockWorker(ctx, tx, actor.CompanyId, input.WorkerId); err != nil {
		return nil, err
	}
	if err := checkLeaveSlot(ctx, tx, actor.CompanyId, input.WorkerId, leave.Interval(), 0); err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&leave).Error; err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &leave, nil
}

func UpdateLeave(ctx context.Context, id int, input *NewLeave, actor Actor) (*Leave, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if err := input.validate(ctx, actor); err != nil {
		return nil, err
	}

	leave, err := utils.FetchModel[Leave](ctx, actor.CompanyId, id)
	if err != nil {
		return nil, err
	}
	if leave.Deleted {
		return nil, utils.ErrorRecordNotFound
	}
	if !actor.Elevated && leave.WorkerId != actor.UserId {
		return nil, ErrForbidden
	}

	release, err := acquireWorker(ctx, actor.CompanyId, input.WorkerId)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if _, err := lockWorker(ctx, tx, actor.CompanyId, input.WorkerId); err != nil {
		return nil, err
	}
	interval := Interval{Start: input.Start, End: input.End}
	if err := checkLeaveSlot(ctx, tx, actor.CompanyId, input.WorkerId, interval, leave.ID); err != nil {
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&Leave{ID: leave.ID}).Updates(map[string]interface{}{
		"WorkerId":   input.WorkerId,
		"ApproverId": input.ApproverId,
		"Reason":     input.Reason,
		"Start":      input.Start,
		"End":        input.End,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	leave.WorkerId = input.WorkerId
	leave.ApproverId = input.ApproverId
	leave.Reason = input.Reason
	leave.Start = input.Start
	leave.End = input.End
	return leave, nil
}

// DeleteLeave soft-deletes a leave, freeing its interval.
func DeleteLeave(ctx context.Context, id int, actor Actor) (*Leave, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	leave, err := utils.FetchModel[Leave](ctx, actor.CompanyId, id)
	if err != nil {
		return nil, err
	}
	if leave.Deleted {
		return nil, utils.ErrorRecordNotFound
	}
	if !actor.Elevated && leave.WorkerId != actor.UserId {
		return nil, ErrForbidden
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Leave{ID: leave.ID}).Update("Deleted", true).Error; err != nil {
		return nil, err
	}
	leave.Deleted = true
	return leave, nil
}

// ListLeaves returns the active leaves of a company, optionally of one worker, oldest first.
func ListLeaves(ctx context.Context, companyId string, workerId int) ([]*Leave, error) {
	if companyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if workerId > 0 {
		return utils.FetchAllModels[Leave](ctx, companyId, "worker_id = ? AND deleted = ?", workerId, false)
	}
	return utils.FetchAllModels[Leave](ctx, companyId, "deleted = ?", false)
}
