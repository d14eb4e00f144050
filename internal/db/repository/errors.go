package repository

import (
	"errors"
	"fmt"

	"github.com/cutroom/floor-service/internal/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// StaleStatusError is returned when the stored status no longer matches the
// status the caller expected.
type StaleStatusError struct {
	MattressID int64
	Expected   models.MattressStatus
	Current    models.MattressStatus
}

func (e *StaleStatusError) Error() string {
	return fmt.Sprintf("mattress %d is %q, expected %q", e.MattressID, e.Current, e.Expected)
}

// DeviceBusyError is returned when a device already has an in-progress mattress
type DeviceBusyError struct {
	Device     string
	MattressID int64
	Mattress   string
}

func (e *DeviceBusyError) Error() string {
	if e.Mattress == "" {
		return fmt.Sprintf("device %s already has a mattress in progress", e.Device)
	}
	return fmt.Sprintf("device %s already has mattress %s in progress", e.Device, e.Mattress)
}
