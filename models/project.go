package models

import "time"

type Project struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"size:64;index;not null" json:"company_id"`
	ObjectId  int       `gorm:"index;not null" json:"object_id"`
	LeaderId  int       `gorm:"index" json:"leader_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Deleted   bool      `gorm:"not null;default:false" json:"deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
