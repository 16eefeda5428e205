// payroll-export writes the payroll summary of one company to an XLSX file
// and optionally uploads it to GCS_BUCKET.
//
// Usage:
//
//	go run ./cmd/payroll-export -company dev-co -from 20240101 -to 20240131 [-out payroll.xlsx] [-upload]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
)

func main() {
	companyId := flag.String("company", "", "company id")
	from := flag.Int64("from", 0, "first date, yyyymmdd")
	to := flag.Int64("to", 0, "last date, yyyymmdd")
	out := flag.String("out", "", "output file (default payroll_<company>_<from>_<to>.xlsx)")
	upload := flag.Bool("upload", false, "upload the file to GCS_BUCKET")
	flag.Parse()

	if *companyId == "" || *from == 0 || *to == 0 {
		flag.Usage()
		os.Exit(2)
	}
	fileName := *out
	if fileName == "" {
		fileName = fmt.Sprintf("payroll_%s_%d_%d.xlsx", *companyId, *from, *to)
	}

	if err := config.ConnectDatabase(); err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = utils.SetCompanyIdInContext(ctx, *companyId)

	lines, err := models.PayrollSummary(ctx, *companyId, *from, *to)
	if err != nil {
		config.LogError(config.GetLogger(), "payroll-export", "main", "PayrollSummary", map[string]any{"company_id": *companyId, "from": *from, "to": *to}, err)
		os.Exit(1)
	}
	data, err := models.PayrollXlsx(lines, *from, *to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render xlsx: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(fileName, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", fileName, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d workers)\n", fileName, len(lines))

	if *upload {
		objectName := fmt.Sprintf("payroll/%s/%s", *companyId, fileName)
		uri, err := utils.UploadBytesToGCS(ctx, objectName, data, utils.XlsxContentType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Uploaded %s\n", uri)
	}
}
