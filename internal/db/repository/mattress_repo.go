package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cutroom/floor-service/internal/db"
	"github.com/cutroom/floor-service/internal/models"
)

// MattressRepository handles mattress data access
type MattressRepository struct {
	db *sqlx.DB
}

// NewMattressRepository creates a new mattress repository
func NewMattressRepository(db *sqlx.DB) *MattressRepository {
	return &MattressRepository{db: db}
}

const mattressColumns = `id, mattress, status, device, position, shift, day, item_type, layers, layers_a,
	order_commessa, fabric_code, fabric_color, dye_lot, marker, destination, operator, created_at, updated_at`

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

// StatusTransition describes one guarded status write
type StatusTransition struct {
	MattressID int64
	Expected   models.MattressStatus
	Next       models.MattressStatus
	// Device reassigns the mattress when set (cutters claim work this way)
	Device   string
	Operator string
	LayersA  *int
}

// GetByID retrieves a mattress by ID
func (r *MattressRepository) GetByID(ctx context.Context, id int64) (*models.Mattress, error) {
	return getMattress(ctx, r.db, id)
}

func getMattress(ctx context.Context, q queryer, id int64) (*models.Mattress, error) {
	query := q.Rebind(`SELECT ` + mattressColumns + ` FROM mattresses WHERE id = ?`)

	var m models.Mattress
	err := sqlx.GetContext(ctx, q, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mattress: %w", err)
	}

	return &m, nil
}

// ListByDay retrieves the kanban board for a day
func (r *MattressRepository) ListByDay(ctx context.Context, day string) ([]models.Mattress, error) {
	query := r.db.Rebind(`
		SELECT ` + mattressColumns + `
		FROM mattresses
		WHERE day = ?
		ORDER BY device ASC, shift ASC, position ASC, id ASC
	`)

	mattresses := []models.Mattress{}
	err := r.db.SelectContext(ctx, &mattresses, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list mattresses: %w", err)
	}

	return mattresses, nil
}

// CutterQueue retrieves work visible to a cutter: everything waiting to be
// cut that no other cutter has claimed, plus the cutter's own claimed work.
func (r *MattressRepository) CutterQueue(ctx context.Context, device string) ([]models.Mattress, error) {
	query := r.db.Rebind(`
		SELECT ` + mattressColumns + `
		FROM mattresses
		WHERE (status = ? AND device NOT LIKE ?)
		   OR (device = ? AND status IN (?, ?))
		ORDER BY day ASC, position ASC, id ASC
	`)

	mattresses := []models.Mattress{}
	err := r.db.SelectContext(
		ctx,
		&mattresses,
		query,
		models.StatusToCut,
		models.CutterPrefix+"%",
		device,
		models.StatusToCut,
		models.StatusOnCut,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cutter queue: %w", err)
	}

	return mattresses, nil
}

func activeForDevice(ctx context.Context, q queryer, device string, excludeID int64) (*models.Mattress, error) {
	query := q.Rebind(`
		SELECT ` + mattressColumns + `
		FROM mattresses
		WHERE device = ? AND status IN (?, ?) AND id <> ?
		LIMIT 1
	`)

	var m models.Mattress
	err := sqlx.GetContext(ctx, q, &m, query, device, models.StatusOnSpread, models.StatusOnCut, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active mattress: %w", err)
	}

	return &m, nil
}

// Create creates a new mattress in the initial status
func (r *MattressRepository) Create(ctx context.Context, m models.Mattress) (*models.Mattress, error) {
	now := time.Now().UTC()
	m.Status = models.StatusToLoad
	m.CreatedAt = now
	m.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO mattresses (mattress, status, device, position, shift, day, item_type, layers,
			order_commessa, fabric_code, fabric_color, dye_lot, marker, destination, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.GetContext(
		ctx,
		&m.ID,
		query,
		m.Mattress,
		m.Status,
		m.Device,
		m.Position,
		m.Shift,
		m.Day,
		m.ItemType,
		m.Layers,
		m.OrderCommessa,
		m.FabricCode,
		m.FabricColor,
		m.DyeLot,
		m.Marker,
		m.Destination,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mattress: %w", err)
	}

	return &m, nil
}

// TransitionStatus applies a status change only if the stored status still
// equals t.Expected. The device check, the update and the log entry share
// one transaction.
func (r *MattressRepository) TransitionStatus(ctx context.Context, t StatusTransition) (*models.Mattress, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getMattress(ctx, tx, t.MattressID)
	if err != nil {
		return nil, err
	}

	if current.Status != t.Expected {
		return nil, &StaleStatusError{MattressID: current.ID, Expected: t.Expected, Current: current.Status}
	}

	updated := *current
	updated.Status = t.Next
	updated.UpdatedAt = time.Now().UTC()
	if t.Device != "" {
		updated.Device = t.Device
	}
	if t.Operator != "" {
		op := t.Operator
		updated.Operator = &op
	}
	if t.LayersA != nil {
		layers := *t.LayersA
		updated.LayersA = &layers
	}

	if t.Next.IsActive() {
		busy, err := activeForDevice(ctx, tx, updated.Device, updated.ID)
		if err == nil {
			return nil, &DeviceBusyError{Device: updated.Device, MattressID: busy.ID, Mattress: busy.Mattress}
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	result, err := tx.ExecContext(
		ctx,
		tx.Rebind(`
			UPDATE mattresses
			SET status = ?, device = ?, operator = ?, layers_a = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`),
		updated.Status,
		updated.Device,
		updated.Operator,
		updated.LayersA,
		updated.UpdatedAt,
		updated.ID,
		t.Expected,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, &DeviceBusyError{Device: updated.Device}
		}
		return nil, fmt.Errorf("failed to update mattress status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		latest, err := getMattress(ctx, tx, t.MattressID)
		if err != nil {
			return nil, err
		}
		return nil, &StaleStatusError{MattressID: latest.ID, Expected: t.Expected, Current: latest.Status}
	}

	operator := ""
	if updated.Operator != nil {
		operator = *updated.Operator
	}
	_, err = tx.ExecContext(
		ctx,
		tx.Rebind(`
			INSERT INTO mattress_status_log (mattress_id, from_status, to_status, operator, device, changed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`),
		updated.ID,
		t.Expected,
		updated.Status,
		operator,
		updated.Device,
		updated.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to write status log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &updated, nil
}

// UpdateLayersA sets the actual spread layer count
func (r *MattressRepository) UpdateLayersA(ctx context.Context, id int64, layers int) (*models.Mattress, error) {
	query := r.db.Rebind(`UPDATE mattresses SET layers_a = ?, updated_at = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, layers, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update layers: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

// History retrieves the status log of a mattress, oldest first
func (r *MattressRepository) History(ctx context.Context, id int64) ([]models.StatusLogEntry, error) {
	query := r.db.Rebind(`
		SELECT id, mattress_id, from_status, to_status, operator, device, changed_at
		FROM mattress_status_log
		WHERE mattress_id = ?
		ORDER BY changed_at ASC, id ASC
	`)

	entries := []models.StatusLogEntry{}
	err := r.db.SelectContext(ctx, &entries, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get mattress history: %w", err)
	}

	return entries, nil
}
