package models

import (
	"errors"
	"fmt"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("invalid input")
	ErrMissingPrice = errors.New("missing price")
)

var (
	ErrLeaveConflict        = fmt.Errorf("%w, leave exists in requested interval", ErrConflict)
	ErrShiftConflict        = fmt.Errorf("%w, shift report exists in requested interval", ErrConflict)
	ErrOverlappingLeave     = fmt.Errorf("%w, another leave exists in requested interval", ErrConflict)
	ErrWorkerBusy           = fmt.Errorf("%w, another change for this worker is in progress", ErrConflict)
	ErrSignedReport         = fmt.Errorf("%w, shift report is signed", ErrForbidden)
	ErrProjectWorkSigned    = fmt.Errorf("%w, signed project work cannot be unsigned", ErrConflict)
	ErrNotOwner             = fmt.Errorf("%w, shift report belongs to another worker", ErrForbidden)
	ErrCompanyIdRequired    = errors.New("company id is required")
	errInvalidShiftInterval = validationError("date_end must not be before date_start")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
