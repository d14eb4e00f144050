package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/db/repository"
	"github.com/cutroom/floor-service/internal/models"
)

// DayFormat is the layout of the mattress day column
const DayFormat = "2006-01-02"

// StatusNotifier is told about every accepted status change
type StatusNotifier interface {
	NotifyStatusChange(m *models.Mattress, from models.MattressStatus, fromDevice string)
}

// MattressService handles mattress lifecycle business logic
type MattressService struct {
	repos    *repository.Repositories
	notifier StatusNotifier
	routes   access.Routes
	now      func() time.Time
}

// NewMattressService creates a new mattress service. notifier may be nil.
func NewMattressService(repos *repository.Repositories, notifier StatusNotifier) *MattressService {
	return &MattressService{
		repos:    repos,
		notifier: notifier,
		routes:   access.NewRoutes(nil),
		now:      time.Now,
	}
}

// SetCutterRoutes replaces the table of spreaders each cutter may claim
// from. An empty table restores the default routes.
func (s *MattressService) SetCutterRoutes(table map[string][]string) {
	s.routes = access.NewRoutes(table)
}

// ResolveDay turns "today" or an empty value into today's date and checks
// anything else is a YYYY-MM-DD date.
func (s *MattressService) ResolveDay(day string) (string, error) {
	day = strings.TrimSpace(day)
	if day == "" || strings.EqualFold(day, "today") {
		return s.now().Format(DayFormat), nil
	}
	if _, err := time.Parse(DayFormat, day); err != nil {
		return "", validationError("day must be YYYY-MM-DD or today")
	}
	return day, nil
}

// Kanban lists all mattresses planned for a day
func (s *MattressService) Kanban(ctx context.Context, day string) ([]models.Mattress, error) {
	resolved, err := s.ResolveDay(day)
	if err != nil {
		return nil, err
	}
	return s.repos.Mattress.ListByDay(ctx, resolved)
}

// CutterQueue lists the work visible to a cutter device
func (s *MattressService) CutterQueue(ctx context.Context, device string) ([]models.Mattress, error) {
	device = strings.ToUpper(strings.TrimSpace(device))
	if !strings.HasPrefix(device, models.CutterPrefix) {
		return nil, validationError("device must be a cutter (%sn)", models.CutterPrefix)
	}
	return s.repos.Mattress.CutterQueue(ctx, device)
}

// GetMattress retrieves a mattress by ID
func (s *MattressService) GetMattress(ctx context.Context, id int64) (*models.Mattress, error) {
	m, err := s.repos.Mattress.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return m, err
}

// History returns the status log of a mattress
func (s *MattressService) History(ctx context.Context, id int64) ([]models.StatusLogEntry, error) {
	if _, err := s.GetMattress(ctx, id); err != nil {
		return nil, err
	}
	return s.repos.Mattress.History(ctx, id)
}

// CreateMattress enqueues a new mattress in the initial status
func (s *MattressService) CreateMattress(ctx context.Context, req models.MattressRequest) (*models.Mattress, error) {
	if strings.TrimSpace(req.Mattress) == "" {
		return nil, validationError("mattress is required")
	}
	if strings.TrimSpace(req.Device) == "" {
		return nil, validationError("device is required")
	}
	if req.Layers < 0 {
		return nil, validationError("layers must not be negative")
	}

	shift := req.Shift
	if shift == "" {
		shift = models.Shift1
	}
	if shift != models.Shift1 && shift != models.Shift2 {
		return nil, validationError("shift must be %s or %s", models.Shift1, models.Shift2)
	}

	day, err := s.ResolveDay(req.Day)
	if err != nil {
		return nil, err
	}

	m := models.Mattress{
		Mattress:      strings.TrimSpace(req.Mattress),
		Device:        strings.ToUpper(strings.TrimSpace(req.Device)),
		Position:      req.Position,
		Shift:         shift,
		Day:           day,
		ItemType:      strings.ToUpper(strings.TrimSpace(req.ItemType)),
		Layers:        req.Layers,
		OrderCommessa: req.OrderCommessa,
		FabricCode:    req.FabricCode,
		FabricColor:   req.FabricColor,
		DyeLot:        req.DyeLot,
		Marker:        req.Marker,
		Destination:   req.Destination,
	}

	return s.repos.Mattress.Create(ctx, m)
}

// UpdateStatus moves a mattress one step forward. The expected current
// status is always enforced: when the caller omits it, the stored status at
// read time is used instead.
func (s *MattressService) UpdateStatus(ctx context.Context, id int64, req models.StatusUpdateRequest) (*models.Mattress, error) {
	return s.transition(ctx, id, req, nil)
}

// FinishSpreading writes the finishing status and the actual layer count in
// one transaction.
func (s *MattressService) FinishSpreading(ctx context.Context, id int64, req models.FinishSpreadingRequest) (*models.Mattress, error) {
	if req.LayersA <= 0 {
		return nil, ErrInvalidLayers
	}
	if req.ExpectedCurrentStatus != nil && *req.ExpectedCurrentStatus != models.StatusOnSpread {
		return nil, fmt.Errorf("%w: spreading can only be finished from %q", ErrInvalidTransition, models.StatusOnSpread)
	}

	layers := req.LayersA
	return s.transition(ctx, id, req.StatusUpdateRequest, &layers)
}

// UpdateLayersA corrects the actual layer count of a mattress
func (s *MattressService) UpdateLayersA(ctx context.Context, id int64, layers int) (*models.Mattress, error) {
	if layers <= 0 {
		return nil, ErrInvalidLayers
	}

	m, err := s.repos.Mattress.UpdateLayersA(ctx, id, layers)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return m, err
}

func (s *MattressService) transition(ctx context.Context, id int64, req models.StatusUpdateRequest, layersA *int) (*models.Mattress, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.Status)
	}

	current, err := s.GetMattress(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := current.Status
	if req.ExpectedCurrentStatus != nil {
		expected = *req.ExpectedCurrentStatus
	}

	if layersA != nil && expected != models.StatusOnSpread {
		return nil, fmt.Errorf("%w: spreading can only be finished from %q", ErrInvalidTransition, models.StatusOnSpread)
	}

	if !models.CanTransition(expected, req.Status, current.ItemType) {
		if req.ExpectedCurrentStatus != nil && current.Status != expected {
			// The client's view is stale; report the real status instead of a graph error
			return nil, &ConflictError{MattressID: id, Expected: expected, Current: current.Status}
		}
		return nil, fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, expected, req.Status)
	}

	t := repository.StatusTransition{
		MattressID: id,
		Expected:   expected,
		Next:       req.Status,
		Operator:   strings.TrimSpace(req.Operator),
		LayersA:    layersA,
	}

	device := strings.ToUpper(strings.TrimSpace(req.Device))
	switch {
	case req.Status == models.StatusOnCut:
		// A cutter that starts a mattress claims it
		if !access.IsCutterDevice(device) {
			return nil, validationError("cutting must be started from a cutter device")
		}
		if device != current.Device && !s.routes.Accepts(device, current.Device) {
			return nil, validationError("%s does not take work from %s", device, current.Device)
		}
		t.Device = device
	case req.Status == models.StatusOnSpread && device != "":
		if device != current.Device {
			return nil, validationError("mattress %s is planned for %s, not %s", current.Mattress, current.Device, device)
		}
	}

	updated, err := s.repos.Mattress.TransitionStatus(ctx, t)
	if err != nil {
		return nil, mapTransitionError(err)
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusChange(updated, expected, current.Device)
	}

	return updated, nil
}

func mapTransitionError(err error) error {
	var stale *repository.StaleStatusError
	if errors.As(err, &stale) {
		return &ConflictError{MattressID: stale.MattressID, Expected: stale.Expected, Current: stale.Current}
	}

	var busy *repository.DeviceBusyError
	if errors.As(err, &busy) {
		return fmt.Errorf("%w: %s", ErrActiveJobExists, busy.Error())
	}

	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}

	return fmt.Errorf("failed to update mattress status: %w", err)
}
