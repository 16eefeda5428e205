package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/shifts_backend/utils"
)

// Actor is the caller of a write. Capabilities are derived from the role once, at the boundary.
type Actor struct {
	CompanyId       string
	UserId          int
	Role            UserRole
	Elevated        bool
	CanMutateSigned bool
}

func NewActor(companyId string, userId int, role UserRole) Actor {
	return Actor{
		CompanyId:       companyId,
		UserId:          userId,
		Role:            role,
		Elevated:        IsElevated(role),
		CanMutateSigned: CanMutateSignedReport(role),
	}
}

// ActorFromContext builds the actor from the values the auth middleware stored.
func ActorFromContext(ctx context.Context) (Actor, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return Actor{}, ErrCompanyIdRequired
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return Actor{}, errors.New("user id is required")
	}
	roleStr, _ := utils.GetUserRoleFromContext(ctx)
	role, err := ParseUserRole(roleStr)
	if err != nil {
		return Actor{}, err
	}
	return NewActor(companyId, userId, role), nil
}
