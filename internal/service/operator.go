package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cutroom/floor-service/internal/db/repository"
	"github.com/cutroom/floor-service/internal/models"
)

// OperatorService manages the people who work the shared terminals
type OperatorService struct {
	repos *repository.Repositories
}

// NewOperatorService creates a new operator service
func NewOperatorService(repos *repository.Repositories) *OperatorService {
	return &OperatorService{repos: repos}
}

// ListActive lists active operators. An empty type lists all of them.
func (s *OperatorService) ListActive(ctx context.Context, opType string) ([]models.Operator, error) {
	if opType == "" {
		return s.repos.Operator.ListActive(ctx, nil)
	}

	t := models.OperatorType(strings.ToLower(opType))
	if !t.Valid() {
		return nil, validationError("unknown operator type %q", opType)
	}
	return s.repos.Operator.ListActive(ctx, &t)
}

// CreateOperator adds an active operator
func (s *OperatorService) CreateOperator(ctx context.Context, req models.OperatorRequest) (*models.Operator, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if !req.Type.Valid() {
		return nil, validationError("unknown operator type %q", req.Type)
	}

	return s.repos.Operator.Create(ctx, models.Operator{Name: name, Type: req.Type})
}

// DeactivateOperator hides an operator from the selection lists
func (s *OperatorService) DeactivateOperator(ctx context.Context, id int64) error {
	err := s.repos.Operator.Deactivate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
