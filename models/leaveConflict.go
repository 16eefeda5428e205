package models

import (
	"context"

	"gorm.io/gorm"
)

// Interval is a closed range of dates. Dates are only compared, never parsed.
type Interval struct {
	Start int64
	End   int64
}

// Overlaps is the closed-interval test; touching endpoints overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start <= b.End && a.End >= b.Start
}

// EffectiveInterval falls back to the reporting date for a missing bound.
func EffectiveInterval(date int64, start *int64, end *int64) Interval {
	iv := Interval{Start: date, End: date}
	if start != nil {
		iv.Start = *start
	}
	if end != nil {
		iv.End = *end
	}
	return iv
}

// LeaveOverlapQuery matches non-deleted leaves of a worker intersecting Interval.
type LeaveOverlapQuery struct {
	CompanyId      string
	WorkerId       int
	Interval       Interval
	ExcludeLeaveId int
}

func (q LeaveOverlapQuery) Exists(ctx context.Context, tx *gorm.DB) (bool, error) {
	dbCtx := tx.WithContext(ctx).Model(&Leave{}).
		Where("company_id = ? AND worker_id = ? AND deleted = ?", q.CompanyId, q.WorkerId, false).
		Where("start_date <= ? AND end_date >= ?", q.Interval.End, q.Interval.Start)
	if q.ExcludeLeaveId > 0 {
		dbCtx = dbCtx.Where("id <> ?", q.ExcludeLeaveId)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ShiftOverlapQuery matches non-deleted shift reports of a worker intersecting
// Interval. A report without a range occupies its reporting date.
type ShiftOverlapQuery struct {
	CompanyId      string
	WorkerId       int
	Interval       Interval
	ExcludeShiftId int
}

func (q ShiftOverlapQuery) Exists(ctx context.Context, tx *gorm.DB) (bool, error) {
	dbCtx := tx.WithContext(ctx).Model(&ShiftReport{}).
		Where("company_id = ? AND worker_id = ? AND deleted = ?", q.CompanyId, q.WorkerId, false).
		Where("COALESCE(date_start, date) <= ? AND COALESCE(date_end, date) >= ?", q.Interval.End, q.Interval.Start)
	if q.ExcludeShiftId > 0 {
		dbCtx = dbCtx.Where("id <> ?", q.ExcludeShiftId)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasShiftConflict reports whether the worker already has a shift in interval.
func HasShiftConflict(ctx context.Context, tx *gorm.DB, companyId string, workerId int, interval Interval, excludeShiftId int) (bool, error) {
	return ShiftOverlapQuery{
		CompanyId:      companyId,
		WorkerId:       workerId,
		Interval:       interval,
		ExcludeShiftId: excludeShiftId,
	}.Exists(ctx, tx)
}

// HasOverlappingLeave reports whether the worker already has a leave in interval.
func HasOverlappingLeave(ctx context.Context, tx *gorm.DB, companyId string, workerId int, interval Interval, excludeLeaveId int) (bool, error) {
	return LeaveOverlapQuery{
		CompanyId:      companyId,
		WorkerId:       workerId,
		Interval:       interval,
		ExcludeLeaveId: excludeLeaveId,
	}.Exists(ctx, tx)
}
