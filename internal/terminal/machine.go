package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/models"
)

var (
	ErrNoOperator     = errors.New("select an operator first")
	ErrUnknownItem    = errors.New("mattress is not in this queue")
	ErrNotStartable   = errors.New("mattress cannot be started from this device")
	ErrNotFinishable  = errors.New("mattress is not in progress on this device")
	ErrInvalidLayers  = errors.New("actual layers must be a positive whole number")
	ErrNotInitialized = errors.New("job queue has not loaded yet")
)

// ActiveJobError means the device already has a job in progress
type ActiveJobError struct {
	Device string
	Active models.Mattress
}

func (e *ActiveJobError) Error() string {
	return fmt.Sprintf("device %s is already working on %s (#%d), finish it first", e.Device, e.Active.Mattress, e.Active.ID)
}

// ConflictError means another device changed the item first
type ConflictError struct {
	ItemID   int64
	Expected models.MattressStatus
	Current  models.MattressStatus
	Message  string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("mattress #%d was changed by another device", e.ItemID)
	if e.Current != "" {
		msg += fmt.Sprintf(" (now %s)", e.Current)
	}
	return msg + ", the list has been refreshed"
}

// StatusAPI performs status writes on the server
type StatusAPI interface {
	UpdateStatus(ctx context.Context, id int64, req models.StatusUpdateRequest) (*models.Mattress, error)
	FinishSpreading(ctx context.Context, id int64, req models.FinishSpreadingRequest) (*models.Mattress, error)
}

// Queue is the local copy of the job list
type Queue interface {
	Snapshot() PollState
	Patch(id int64, fn func(*models.Mattress)) bool
	Refresh()
}

// Machine drives start and finish for one device. Guards run before any
// network call; the server has the final word through expected_current_status.
type Machine struct {
	Device   string
	Username string
	SourceID string
	Cutter   bool
	Routes   access.Routes

	api       StatusAPI
	queue     Queue
	operators *OperatorManager
	names     *OperatorCache
	channel   Channel
	log       *EventLog

	now func() time.Time
}

// MachineDeps are the collaborators of a Machine
type MachineDeps struct {
	API       StatusAPI
	Queue     Queue
	Operators *OperatorManager
	Names     *OperatorCache
	Channel   Channel
	Log       *EventLog
}

// NewMachine creates a state machine for view, logged in as username
func NewMachine(view View, username, sourceID string, routes access.Routes, deps MachineDeps) *Machine {
	return &Machine{
		Device:    view.Device,
		Username:  username,
		SourceID:  sourceID,
		Cutter:    view.Cutter,
		Routes:    routes,
		api:       deps.API,
		queue:     deps.Queue,
		operators: deps.Operators,
		names:     deps.Names,
		channel:   deps.Channel,
		log:       deps.Log,
		now:       time.Now,
	}
}

// Start begins work on item id
func (m *Machine) Start(ctx context.Context, id int64) (*models.Mattress, error) {
	operator, item, err := m.guard(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.startable(item) {
		return nil, ErrNotStartable
	}

	next, _ := models.NextStatus(item.Status, item.ItemType)
	req := models.StatusUpdateRequest{
		Status:                next,
		Operator:              operator,
		Device:                m.Device,
		ExpectedCurrentStatus: statusRef(item.Status),
	}

	updated, err := m.api.UpdateStatus(ctx, id, req)
	if err != nil {
		return nil, m.writeFailed(item, err)
	}

	m.queue.Patch(id, func(local *models.Mattress) {
		local.Status = updated.Status
		local.Device = updated.Device
	})
	m.committed(ctx, item, updated)
	return updated, nil
}

// Finish completes work on item id. layers is the actual layer count and is
// required when finishing a spreading job.
func (m *Machine) Finish(ctx context.Context, id int64, layers int) (*models.Mattress, error) {
	operator, item, err := m.guard(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.finishable(item) {
		return nil, ErrNotFinishable
	}

	next, _ := models.NextStatus(item.Status, item.ItemType)
	req := models.StatusUpdateRequest{
		Status:                next,
		Operator:              operator,
		Device:                m.Device,
		ExpectedCurrentStatus: statusRef(item.Status),
	}

	var updated *models.Mattress
	if item.Status == models.StatusOnSpread {
		if layers <= 0 {
			return nil, ErrInvalidLayers
		}
		updated, err = m.api.FinishSpreading(ctx, id, models.FinishSpreadingRequest{
			StatusUpdateRequest: req,
			LayersA:             layers,
		})
	} else {
		updated, err = m.api.UpdateStatus(ctx, id, req)
	}
	if err != nil {
		return nil, m.writeFailed(item, err)
	}

	m.queue.Patch(id, func(local *models.Mattress) {
		local.Status = updated.Status
		local.LayersA = updated.LayersA
	})
	m.committed(ctx, item, updated)
	return updated, nil
}

// OperatorName is the name sent with status writes
func (m *Machine) OperatorName(ctx context.Context) (string, bool) {
	id, ok := m.operators.Selected()
	if !ok {
		return "", false
	}
	if m.names != nil {
		if err := m.names.EnsureLoaded(ctx); err != nil && m.log != nil {
			m.log.Warnf("could not load operators: %v", err)
		}
		if op, found := m.names.Get(id); found {
			return op.Name, true
		}
	}
	return m.Username, true
}

// guard checks operator and single-active rules and finds the item
func (m *Machine) guard(ctx context.Context, id int64) (string, models.Mattress, error) {
	m.operators.Check(m.now())

	operator, ok := m.OperatorName(ctx)
	if !ok {
		return "", models.Mattress{}, ErrNoOperator
	}

	state := m.queue.Snapshot()
	if state.LastSuccess.IsZero() && len(state.Items) == 0 {
		return "", models.Mattress{}, ErrNotInitialized
	}

	item := Find(state.Items, id)
	if item == nil {
		return "", models.Mattress{}, ErrUnknownItem
	}

	if active := ActiveFor(state.Items, m.Device); active != nil && active.ID != id {
		return "", models.Mattress{}, &ActiveJobError{Device: m.Device, Active: *active}
	}
	return operator, *item, nil
}

func (m *Machine) startable(item models.Mattress) bool {
	if m.Cutter {
		return item.Status == models.StatusToCut && CutterCanSee(item, m.Device, m.Routes)
	}
	return item.Status == models.StatusToLoad && strings.EqualFold(item.Device, m.Device)
}

func (m *Machine) finishable(item models.Mattress) bool {
	if !strings.EqualFold(item.Device, m.Device) {
		return false
	}
	if m.Cutter {
		return item.Status == models.StatusOnCut
	}
	return item.Status == models.StatusOnSpread
}

// writeFailed turns a server rejection into the error shown to the operator
func (m *Machine) writeFailed(item models.Mattress, err error) error {
	if apiErr, ok := IsConflict(err); ok {
		m.queue.Refresh()
		conflict := &ConflictError{
			ItemID:   item.ID,
			Expected: item.Status,
			Current:  apiErr.CurrentStatus,
			Message:  apiErr.Message,
		}
		if m.log != nil {
			m.log.Warnf("%v", conflict)
		}
		return conflict
	}
	if m.log != nil {
		m.log.Errorf("status update for #%d failed: %v", item.ID, err)
	}
	return fmt.Errorf("failed to update mattress #%d: %w", item.ID, err)
}

// committed runs after the server accepted a change
func (m *Machine) committed(ctx context.Context, before models.Mattress, after *models.Mattress) {
	now := m.now()
	m.queue.Refresh()
	m.operators.Touch(now)

	if m.log != nil {
		m.log.Infof("%s #%d %s -> %s", after.Mattress, after.ID, before.Status, after.Status)
	}
	if m.channel == nil {
		return
	}

	change := models.StatusChange{
		ItemID:       after.ID,
		Mattress:     after.Mattress,
		Status:       after.Status,
		FromStatus:   before.Status,
		Device:       after.Device,
		SourceDevice: m.Device,
		SourceID:     m.SourceID,
		At:           now.UTC(),
	}
	if err := m.channel.Publish(ctx, change); err != nil && m.log != nil {
		m.log.Warnf("status change not broadcast: %v", err)
	}
}

func statusRef(s models.MattressStatus) *models.MattressStatus {
	return &s
}
