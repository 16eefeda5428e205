package models

import (
	"context"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/shopspring/decimal"
)

// PayrollLine totals one worker's shift reports over a date range.
type PayrollLine struct {
	WorkerId      int             `json:"worker_id"`
	WorkerName    string          `json:"worker_name" gorm:"-"`
	Reports       int64           `json:"reports"`
	Total         decimal.Decimal `json:"total"`
	UnpricedLines int64           `json:"unpriced_lines"`
}

// PayrollSummary sums line amounts of non-deleted reports dated within [from, to].
func PayrollSummary(ctx context.Context, companyId string, from int64, to int64) ([]*PayrollLine, error) {
	if companyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if to < from {
		return nil, validationError("to must not be before from")
	}

	db := config.GetDB()
	var lines []*PayrollLine
	err := db.WithContext(ctx).Table("shift_reports AS sr").
		Select(`sr.worker_id AS worker_id,
			COUNT(DISTINCT sr.id) AS reports,
			COALESCE(SUM(d.summ), 0) AS total,
			COALESCE(SUM(CASE WHEN d.id IS NOT NULL AND d.priced = ? THEN 1 ELSE 0 END), 0) AS unpriced_lines`, false).
		Joins("LEFT JOIN shift_report_details AS d ON d.shift_report_id = sr.id").
		Where("sr.company_id = ? AND sr.deleted = ? AND sr.date >= ? AND sr.date <= ?", companyId, false, from, to).
		Group("sr.worker_id").
		Order("sr.worker_id").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return lines, nil
	}

	workerIds := make([]int, 0, len(lines))
	for _, l := range lines {
		workerIds = append(workerIds, l.WorkerId)
	}
	var workers []User
	if err := db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyId, workerIds).
		Find(&workers).Error; err != nil {
		return nil, err
	}
	names := make(map[int]string, len(workers))
	for _, w := range workers {
		names[w.ID] = w.Name
	}
	for _, l := range lines {
		l.WorkerName = names[l.WorkerId]
	}
	return lines, nil
}
