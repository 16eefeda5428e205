package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectWork commits a quantity of a work item to a project. Signing it
// notifies the project leader; once signed it stays signed.
type ProjectWork struct {
	ID        int             `gorm:"primary_key" json:"id"`
	CompanyId string          `gorm:"size:64;index;not null" json:"company_id"`
	ProjectId int             `gorm:"index;not null" json:"project_id"`
	WorkId    int             `gorm:"index;not null" json:"work_id"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Signed    bool            `gorm:"not null;default:false" json:"signed"`
	Deleted   bool            `gorm:"not null;default:false" json:"deleted"`
	CreatedBy int             `json:"created_by"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProjectWork struct {
	ProjectId int             `json:"project_id" binding:"required"`
	WorkId    int             `json:"work_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Signed    bool            `json:"signed"`
}

type ProjectWorkChanges struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Signed   *bool            `json:"signed"`
}

func (input *NewProjectWork) validate(ctx context.Context, companyId string) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.Quantity.IsNegative() {
		return validationError("quantity must not be negative")
	}
	if err := utils.ValidateResourceId[Project](ctx, companyId, input.ProjectId); err != nil {
		return validationError("project not found")
	}
	if err := utils.ValidateResourceId[WorkItem](ctx, companyId, input.WorkId); err != nil {
		return validationError("work item not found")
	}
	return nil
}

func CreateProjectWork(ctx context.Context, input *NewProjectWork, actor Actor) (*ProjectWork, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if !actor.Elevated {
		return nil, ErrForbidden
	}
	if err := input.validate(ctx, actor.CompanyId); err != nil {
		return nil, err
	}

	projectWork := ProjectWork{
		CompanyId: actor.CompanyId,
		ProjectId: input.ProjectId,
		WorkId:    input.WorkId,
		Quantity:  input.Quantity,
		Signed:    input.Signed,
		CreatedBy: actor.UserId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&projectWork).Error; err != nil {
			return err
		}
		return StageChange(ctx, tx, actor.CompanyId, EntityKindProjectWork, projectWork.ID, ChangeActionCreate, false, projectWork.Signed)
	})
	if err != nil {
		return nil, err
	}
	return &projectWork, nil
}

func UpdateProjectWork(ctx context.Context, id int, input *ProjectWorkChanges, actor Actor) (*ProjectWork, error) {
	if actor.CompanyId == "" {
		return nil, ErrCompanyIdRequired
	}
	if !actor.Elevated {
		return nil, ErrForbidden
	}
	if input.Quantity != nil && input.Quantity.IsNegative() {
		return nil, validationError("quantity must not be negative")
	}

	var projectWork *ProjectWork
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		projectWork, err = utils.FetchModelTx[ProjectWork](ctx, tx, actor.CompanyId, id)
		if err != nil {
			return err
		}
		if projectWork.Deleted {
			return utils.ErrorRecordNotFound
		}
		oldSigned := projectWork.Signed
		if oldSigned && input.Signed != nil && !*input.Signed {
			return ErrProjectWorkSigned
		}

		updates := map[string]interface{}{}
		if input.Quantity != nil {
			updates["Quantity"] = *input.Quantity
		}
		if input.Signed != nil {
			updates["Signed"] = *input.Signed
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&ProjectWork{ID: projectWork.ID}).Updates(updates).Error; err != nil {
			return err
		}
		if input.Quantity != nil {
			projectWork.Quantity = *input.Quantity
		}
		if input.Signed != nil {
			projectWork.Signed = *input.Signed
		}
		return StageChange(ctx, tx, actor.CompanyId, EntityKindProjectWork, projectWork.ID, ChangeActionUpdate, oldSigned, projectWork.Signed)
	})
	if err != nil {
		return nil, err
	}
	return projectWork, nil
}
