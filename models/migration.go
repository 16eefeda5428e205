package models

import (
	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
)

// tenantTables are the company-owned tables. Detail lines are reached
// through their report and carry no company of their own.
var tenantTables = []any{
	&User{}, &ConstructionObject{}, &Project{}, &WorkItem{},
	&PriceTier{},
	&ShiftReport{},
	&Leave{},
	&ProjectWork{},
	&PushSubscription{}, &NotificationRecord{},
	&utils.SequenceCounter{},
}

func MigrateTable() error {
	db := config.GetDB()

	if err := config.CheckTenantTables(db, tenantTables...); err != nil {
		return err
	}
	return db.AutoMigrate(append(tenantTables, &ShiftReportDetail{})...)
}
