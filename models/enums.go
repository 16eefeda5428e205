package models

import (
	"encoding/json"
	"errors"
)

type UserRole string

const (
	UserRoleAdmin         UserRole = "A"
	UserRoleModerator     UserRole = "M"
	UserRoleProjectLeader UserRole = "P"
	UserRoleWorker        UserRole = "W"
)

func ParseUserRole(str string) (UserRole, error) {
	userRole := map[string]UserRole{
		"A": UserRoleAdmin,
		"M": UserRoleModerator,
		"P": UserRoleProjectLeader,
		"W": UserRoleWorker,
	}
	role, ok := userRole[str]
	if !ok {
		return "", errors.New("invalid user role")
	}
	return role, nil
}

func (p *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("user role must be string")
	}
	role, err := ParseUserRole(str)
	if err != nil {
		return err
	}
	*p = role
	return nil
}

// IsElevated reports whether the role acts on behalf of other workers.
func IsElevated(role UserRole) bool {
	switch role {
	case UserRoleAdmin, UserRoleModerator, UserRoleProjectLeader:
		return true
	}
	return false
}

// CanMutateSignedReport reports whether the role may edit or delete a signed shift report.
func CanMutateSignedReport(role UserRole) bool {
	return IsElevated(role)
}

type LeaveReason string

const (
	LeaveReasonVacation  LeaveReason = "vacation"
	LeaveReasonSickLeave LeaveReason = "sick_leave"
	LeaveReasonDayOff    LeaveReason = "day_off"
)

func (r LeaveReason) IsValid() bool {
	switch r {
	case LeaveReasonVacation, LeaveReasonSickLeave, LeaveReasonDayOff:
		return true
	}
	return false
}

func (r *LeaveReason) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("leave reason must be string")
	}
	reason := LeaveReason(str)
	if !reason.IsValid() {
		return errors.New("invalid leave reason")
	}
	*r = reason
	return nil
}

// EntityKind tags the watched entities in the notification outbox.
type EntityKind string

const (
	EntityKindProjectWork EntityKind = "ProjectWork"
	EntityKindShiftReport EntityKind = "ShiftReport"
)

type ChangeAction string

const (
	ChangeActionCreate ChangeAction = "C"
	ChangeActionUpdate ChangeAction = "U"
)

// Delivery statuses for NotificationRecord.Status.
const (
	NotificationStatusPending    = "PENDING"
	NotificationStatusProcessing = "PROCESSING"
	NotificationStatusSent       = "SENT"
	NotificationStatusDropped    = "DROPPED"
	NotificationStatusFailed     = "FAILED"
)
