package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShiftReport struct {
	ID                int                 `gorm:"primary_key" json:"id"`
	CompanyId         string              `gorm:"size:64;index;not null" json:"company_id"`
	SequenceNo        int64               `gorm:"index;not null" json:"sequence_no"`
	WorkerId          int                 `gorm:"index;not null" json:"worker_id"`
	ProjectId         int                 `gorm:"index;not null" json:"project_id"`
	Date              int64               `gorm:"index;not null" json:"date"`
	DateStart         *int64              `json:"date_start"`
	DateEnd           *int64              `json:"date_end"`
	NightShift        bool                `gorm:"not null;default:false" json:"night_shift"`
	ExtremeConditions bool                `gorm:"not null;default:false" json:"extreme_conditions"`
	Signed            bool                `gorm:"not null;default:false" json:"signed"`
	NeedsReview       bool                `gorm:"not null;default:false" json:"needs_review"`
	Deleted           bool                `gorm:"not null;default:false" json:"deleted"`
	CreatedBy         int                 `json:"created_by"`
	Details           []ShiftReportDetail `gorm:"foreignKey:ShiftReportId" json:"details"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// ShiftReportDetail is one line of a report. Summ is always computed server side.
type ShiftReportDetail struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ShiftReportId int             `gorm:"index;not null" json:"shift_report_id"`
	WorkId        int             `gorm:"index;not null" json:"work_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Summ          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"summ"`
	Priced        bool            `gorm:"not null;default:false" json:"priced"`
	ProjectWorkId *int            `gorm:"index" json:"project_work_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShiftReportDetail struct {
	WorkId        int             `json:"work_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	ProjectWorkId *int            `json:"project_work_id"`
}

type NewShiftReport struct {
	WorkerId          int                    `json:"worker_id" binding:"required"`
	ProjectId         int                    `json:"project_id" binding:"required"`
	Date              int64                  `json:"date" binding:"required"`
	DateStart         *int64                 `json:"date_start"`
	DateEnd           *int64                 `json:"date_end"`
	Signed            bool                   `json:"signed"`
	NightShift        bool                   `json:"night_shift"`
	ExtremeConditions bool                   `json:"extreme_conditions"`
	Details           []NewShiftReportDetail `json:"details" binding:"dive"`
}

// ShiftReportChanges is a partial edit; nil fields are left as they are.
type ShiftReportChanges struct {
	ProjectId         *int   `json:"project_id"`
	Date              *int64 `json:"date"`
	DateStart         *int64 `json:"date_start"`
	DateEnd           *int64 `json:"date_end"`
	Signed            *bool  `json:"signed"`
	NightShift        *bool  `json:"night_shift"`
	ExtremeConditions *bool  `json:"extreme_conditions"`
}

func (r ShiftReport) Conditions() ShiftConditions {
	return ShiftConditions{ExtremeConditions: r.ExtremeConditions, NightShift: r.NightShift}
}

func (r ShiftReport) Interval() Interval {
	return EffectiveInterval(r.Date, r.DateStart, r.DateEnd)
}

func checkRange(start *int64, end *int64) error {
	if start != nil && end != nil && *end < *start {
		return errInvalidShiftInterval
	}
	return nil
}

func (input *NewShiftReport) validate(ctx context.Context, actor Actor) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if err := checkRange(input.DateStart, input.DateEnd); err != nil {
		return err
	}
	if !actor.Elevated && input.WorkerId != actor.UserId {
		return ErrForbidden
	}
	if err := utils.ValidateResourceId[User](ctx, actor.CompanyId, input.WorkerId); err != nil {
		return validationError("worker not found")
	}
	if err := utils.ValidateResourceId[Project](ctx, actor.CompanyId, input.ProjectId); err != nil {
		return validationError("project not found")
	}

	var workIds, projectWorkIds []int
	for _, d := range input.Details {
		if d.Quantity.IsNegative() {
			return validationError("quantity must not be negative")
		}
		workIds = append(workIds, d.WorkId)
		if d.ProjectWorkId != nil {
			projectWorkIds = append(projectWorkIds, *d.ProjectWorkId)
		}
	}
	db := config.GetDB()
	if err := utils.ValidateResourcesId[WorkItem](ctx, db, actor.CompanyId, workIds); err != nil {
		return validationError("work item not found")
	}
	if err := utils.ValidateResourcesId[ProjectWork](ctx, db, actor.CompanyId, projectWorkIds); err != nil {
		return validationError("project work not found")
	}
	return nil
}

// checkSignedLock applies the owner and signed-report rules for edits and deletes.
func (r ShiftReport) checkSignedLock(actor Actor) error {
	if !actor.Elevated && r.WorkerId != actor.UserId {
		return ErrNotOwner
	}
	if r.Signed && !actor.CanMutateSigned {
		return ErrSignedReport
	}
	return nil
}

// CreateShiftReport writes a report and all of its priced lines, or nothing.
func CreateShiftReport(ctx context.Context, input *NewShiftReport, actor Actor) (*ShiftReport, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	// only elevated roles may file a report already signed
	if !actor.Elevated {
		input.Signed = false
	}
	if err := input.validate(ctx, actor); err != nil {
		return nil, err
	}

	report := ShiftReport{
		CompanyId:         actor.CompanyId,
		WorkerId:          input.WorkerId,
		ProjectId:         input.ProjectId,
		Date:              input.Date,
		DateStart:         input.DateStart,
		DateEnd:           input.DateEnd,
		Signed:            input.Signed,
		NightShift:        input.NightShift,
		ExtremeConditions: input.ExtremeConditions,
		CreatedBy:         actor.UserId,
	}

	release, err := acquireWorker(ctx, actor.CompanyId, input.WorkerId)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	// always rollback on early-return or panic so row locks are never leaked
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if _, err := lockWorker(ctx, tx, actor.CompanyId, report.WorkerId); err != nil {
		return nil, err
	}
	onLeave, err := HasOverlappingLeave(ctx, tx, actor.CompanyId, report.WorkerId, report.Interval(), 0)
	if err != nil {
		return nil, err
	}
	if onLeave {
		return nil, ErrLeaveConflict
	}

	seqNo, err := utils.GetSequence[ShiftReport](ctx, tx, actor.CompanyId)
	if err != nil {
		return nil, err
	}
	report.SequenceNo = seqNo

	if err := tx.Create(&report).Error; err != nil {
		return nil, err
	}

	policy := config.GetMissingPricePolicy()
	cond := report.Conditions()
	for _, item := range input.Details {
		line, err := ResolveLineAmount(ctx, tx, actor.CompanyId, item.WorkId, report.WorkerId, item.Quantity, cond)
		if err != nil {
			return nil, err
		}
		if _, err := applyMissingPricePolicy(policy, line, item.WorkId); err != nil {
			return nil, err
		}
		detail := ShiftReportDetail{
			ShiftReportId: report.ID,
			WorkId:        item.WorkId,
			Quantity:      item.Quantity,
			Summ:          line.Summ,
			Priced:        line.Priced,
			ProjectWorkId: item.ProjectWorkId,
		}
		if err := tx.Create(&detail).Error; err != nil {
			return nil, err
		}
		report.Details = append(report.Details, detail)
	}

	needsReview, err := refreshNeedsReview(ctx, tx, report.ID, policy)
	if err != nil {
		return nil, err
	}
	report.NeedsReview = needsReview

	if err := StageChange(ctx, tx, actor.CompanyId, EntityKindShiftReport, report.ID, ChangeActionCreate, false, report.Signed); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// UpdateShiftReport edits a report. Changing a condition flag re-prices every
// line in the same transaction.
func UpdateShiftReport(ctx context.Context, id int, input *ShiftReportChanges, actor Actor) (*ShiftReport, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	current, err := utils.FetchModel[ShiftReport](ctx, actor.CompanyId, id)
	if err != nil {
		return nil, err
	}
	if current.Deleted {
		return nil, utils.ErrorRecordNotFound
	}
	if err := current.checkSignedLock(actor); err != nil {
		return nil, err
	}
	if !actor.Elevated {
		input.Signed = nil
	}
	if input.ProjectId != nil {
		if err := utils.ValidateResourceId[Project](ctx, actor.CompanyId, *input.ProjectId); err != nil {
			return nil, validationError("project not found")
		}
	}

	release, err := acquireWorker(ctx, actor.CompanyId, current.WorkerId)
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

	if _, err := lockWorker(ctx, tx, actor.CompanyId, current.WorkerId); err != nil {
		return nil, err
	}
	// re-read under the lock; the report may have been signed meanwhile
	report, err := utils.FetchModelTx[ShiftReport](ctx, tx, actor.CompanyId, id)
	if err != nil {
		return nil, err
	}
	if report.Deleted {
		return nil, utils.ErrorRecordNotFound
	}
	if err := report.checkSignedLock(actor); err != nil {
		return nil, err
	}
	old := *report

	if input.ProjectId != nil {
		report.ProjectId = *input.ProjectId
	}
	if input.Date != nil {
		report.Date = *input.Date
	}
	if input.DateStart != nil {
		report.DateStart = input.DateStart
	}
	if input.DateEnd != nil {
		report.DateEnd = input.DateEnd
	}
	if input.Signed != nil {
		report.Signed = *input.Signed
	}
	if input.NightShift != nil {
		report.NightShift = *input.NightShift
	}
	if input.ExtremeConditions != nil {
		report.ExtremeConditions = *input.ExtremeConditions
	}
	if err := checkRange(report.DateStart, report.DateEnd); err != nil {
		return nil, err
	}

	if report.Interval() != old.Interval() {
		onLeave, err := HasOverlappingLeave(ctx, tx, actor.CompanyId, report.WorkerId, report.Interval(), 0)
		if err != nil {
			return nil, err
		}
		if onLeave {
			return nil, ErrLeaveConflict
		}
	}

	err = tx.Model(&ShiftReport{ID: report.ID}).Updates(map[string]interface{}{
		"ProjectId":         report.ProjectId,
		"Date":              report.Date,
		"DateStart":         report.DateStart,
		"DateEnd":           report.DateEnd,
		"Signed":            report.Signed,
		"NightShift":        report.NightShift,
		"ExtremeConditions": report.ExtremeConditions,
	}).Error
	if err != nil {
		return nil, err
	}

	if report.Conditions() != old.Conditions() {
		if err := RecalculateShiftReport(ctx, tx, actor.CompanyId, report.ID, report.Conditions(), report.WorkerId); err != nil {
			return nil, err
		}
	}

	if err := StageChange(ctx, tx, actor.CompanyId, EntityKindShiftReport, report.ID, ChangeActionUpdate, old.Signed, report.Signed); err != nil {
		return nil, err
	}

	if err := tx.Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(report, report.ID).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteShiftReport flags the report deleted, or removes it with its lines when hard is set.
func DeleteShiftReport(ctx context.Context, id int, hard bool, actor Actor) (*ShiftReport, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	report, err := utils.FetchModel[ShiftReport](ctx, actor.CompanyId, id)
	if err != nil {
		return nil, err
	}
	if report.Deleted && !hard {
		return nil, utils.ErrorRecordNotFound
	}
	if err := report.checkSignedLock(actor); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if !hard {
		if err := db.WithContext(ctx).Model(&ShiftReport{ID: report.ID}).Update("Deleted", true).Error; err != nil {
			return nil, err
		}
		report.Deleted = true
		return report, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shift_report_id = ?", report.ID).Delete(&ShiftReportDetail{}).Error; err != nil {
			return err
		}
		return tx.Delete(report).Error
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func GetShiftReport(ctx context.Context, companyId string, id int) (*ShiftReport, error) {
	if companyId == "" {
		return nil, ErrCompanyIdRequired
	}
	report, err := utils.FetchModel[ShiftReport](ctx, companyId, id, "Details")
	if err != nil {
		return nil, err
	}
	if report.Deleted {
		return nil, utils.ErrorRecordNotFound
	}
	return report, nil
}

// refreshNeedsReview flags a report holding unpriced lines. Only the flag policy uses it.
func refreshNeedsReview(ctx context.Context, tx *gorm.DB, shiftReportId int, policy config.MissingPricePolicy) (bool, error) {
	if policy != config.MissingPriceFlag {
		return false, nil
	}
	var unpriced int64
	if err := tx.WithContext(ctx).Model(&ShiftReportDetail{}).
		Where("shift_report_id = ? AND priced = ?", shiftReportId, false).
		Count(&unpriced).Error; err != nil {
		return false, err
	}
	needsReview := unpriced > 0
	if err := tx.WithContext(ctx).Model(&ShiftReport{}).
		Where("id = ?", shiftReportId).
		Update("NeedsReview", needsReview).Error; err != nil {
		return false, err
	}
	return needsReview, nil
}
