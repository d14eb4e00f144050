package service

import (
	"errors"
	"fmt"

	"github.com/cutroom/floor-service/internal/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("status changed by another client")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrActiveJobExists    = errors.New("device already has a job in progress")
	ErrInvalidLayers      = errors.New("actual layers must be a positive integer")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user account is inactive")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrValidation         = errors.New("validation failed")
)

// ConflictError reports a lost optimistic update together with the status
// the mattress actually has.
type ConflictError struct {
	MattressID int64
	Expected   models.MattressStatus
	Current    models.MattressStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("mattress %d: expected %q but found %q", e.MattressID, e.Expected, e.Current)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
