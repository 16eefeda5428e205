package models_test

import (
	"bytes"
	"testing"

	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestPayrollSummary(t *testing.T) {
	f := newFixture(t)

	mustCreate := func(workerId int, actor models.Actor, date int64, extreme bool, qty int64) {
		t.Helper()
		if _, err := models.CreateShiftReport(f.ctx, f.newReport(workerId, date, extreme, false, qty), actor); err != nil {
			t.Fatalf("CreateShiftReport: %v", err)
		}
	}
	newbie := models.NewActor(testCompany, f.newbie.ID, models.UserRoleWorker)
	mustCreate(f.worker.ID, f.workerActor(), 20240110, true, 3)  // 375
	mustCreate(f.worker.ID, f.workerActor(), 20240111, false, 2) // 200
	mustCreate(f.worker.ID, f.workerActor(), 20240301, false, 5) // out of range
	mustCreate(f.newbie.ID, newbie, 20240112, false, 4)          // unpriced

	lines, err := models.PayrollSummary(f.ctx, testCompany, 20240101, 20240131)
	if err != nil {
		t.Fatalf("PayrollSummary: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(lines))
	}
	byWorker := map[int]*models.PayrollLine{}
	for _, l := range lines {
		byWorker[l.WorkerId] = l
	}

	w := byWorker[f.worker.ID]
	if w == nil || w.Reports != 2 || !w.Total.Equal(decimal.NewFromInt(575)) || w.UnpricedLines != 0 {
		t.Fatalf("unexpected worker line: %+v", w)
	}
	if w.WorkerName != "Worker" {
		t.Fatalf("expected worker name, got %q", w.WorkerName)
	}
	n := byWorker[f.newbie.ID]
	if n == nil || !n.Total.IsZero() || n.UnpricedLines != 1 {
		t.Fatalf("unexpected newbie line: %+v", n)
	}

	data, err := models.PayrollXlsx(lines, 20240101, 20240131)
	if err != nil {
		t.Fatalf("PayrollXlsx: %v", err)
	}
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer book.Close()
	header, err := book.GetCellValue("Payroll", "E1")
	if err != nil || header != "Total" {
		t.Fatalf("expected Total header, got %q (%v)", header, err)
	}
	rows, err := book.GetRows("Payroll")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// header, two workers, blank, period
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
}

func TestPayrollSummary_RejectsReversedRange(t *testing.T) {
	f := newFixture(t)
	if _, err := models.PayrollSummary(f.ctx, testCompany, 20240131, 20240101); err == nil {
		t.Fatalf("expected error for reversed range")
	}
}
