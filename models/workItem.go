package models

import "time"

// WorkItem is a billable unit of work. Referenced rows are only ever soft-deleted.
type WorkItem struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"size:64;index;not null" json:"company_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Category  *string   `gorm:"size:100" json:"category"`
	Unit      string    `gorm:"size:20;not null" json:"unit"`
	Deleted   bool      `gorm:"not null;default:false" json:"deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
