package models

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const payrollSheet = "Payroll"

// PayrollWorkbook lays the payroll summary out as a single-sheet workbook.
func PayrollWorkbook(lines []*PayrollLine, from int64, to int64) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", payrollSheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	headings := []string{"WorkerId", "WorkerName", "Reports", "UnpricedLines", "Total"}
	col := 'A'
	for _, h := range headings {
		if err := f.SetCellValue(payrollSheet, string(col)+"1", h); err != nil {
			_ = f.Close()
			return nil, err
		}
		col++
	}

	rowNo := 2
	for _, l := range lines {
		total, _ := l.Total.Float64()
		values := []interface{}{l.WorkerId, l.WorkerName, l.Reports, l.UnpricedLines, total}
		col := 'A'
		for _, v := range values {
			if err := f.SetCellValue(payrollSheet, string(col)+fmt.Sprint(rowNo), v); err != nil {
				_ = f.Close()
				return nil, err
			}
			col++
		}
		rowNo++
	}

	// period in the footer row so the file is self-describing
	if err := f.SetCellValue(payrollSheet, "A"+fmt.Sprint(rowNo+1), fmt.Sprintf("Period %d - %d", from, to)); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// PayrollXlsx renders the workbook to bytes.
func PayrollXlsx(lines []*PayrollLine, from int64, to int64) ([]byte, error) {
	f, err := PayrollWorkbook(lines, from, to)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
