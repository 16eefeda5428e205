package models

import "time"

// ConstructionObject is a site. Its manager is told about new project work.
type ConstructionObject struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"size:64;index;not null" json:"company_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	ManagerId int       `gorm:"index" json:"manager_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
