package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cutroom/floor-service/internal/models"
)

// OperatorRepository handles operator data access
type OperatorRepository struct {
	db *sqlx.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// GetByID retrieves an operator by ID
func (r *OperatorRepository) GetByID(ctx context.Context, id int64) (*models.Operator, error) {
	query := r.db.Rebind(`SELECT id, name, type, active, created_at FROM operators WHERE id = ?`)

	var op models.Operator
	err := r.db.GetContext(ctx, &op, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	return &op, nil
}

// ListActive lists active operators, optionally filtered by type
func (r *OperatorRepository) ListActive(ctx context.Context, opType *models.OperatorType) ([]models.Operator, error) {
	query := `SELECT id, name, type, active, created_at FROM operators WHERE active = ?`
	args := []interface{}{true}

	if opType != nil {
		query += ` AND type = ?`
		args = append(args, *opType)
	}
	query += ` ORDER BY name ASC`

	operators := []models.Operator{}
	err := r.db.SelectContext(ctx, &operators, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}

	return operators, nil
}

// Create creates a new active operator
func (r *OperatorRepository) Create(ctx context.Context, op models.Operator) (*models.Operator, error) {
	op.Active = true
	op.CreatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		INSERT INTO operators (name, type, active, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.GetContext(ctx, &op.ID, query, op.Name, op.Type, op.Active, op.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	return &op, nil
}

// Deactivate hides an operator from the active lists
func (r *OperatorRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE operators SET active = ? WHERE id = ?`), false, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate operator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
