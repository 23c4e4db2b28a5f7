package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/validation"
)

// Definition is the application service for workflow definitions. Every write
// re-validates the complete definition; a rejected definition is never
// partially stored.
type Definition struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	validator   *validation.Validator
}

// NewDefinition creates a definition service.
func NewDefinition(logger *slog.Logger, persist persistence.Persistence) *Definition {
	return &Definition{
		logger:      logger.With("module", "definition_service"),
		persistence: persist,
		validator:   validation.NewValidator(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Definition) HealthCheck(ctx context.Context) (string, bool) {
	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and stores a new definition.
func (s *Definition) Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	result := s.validator.Validate(definition)
	if !result.Valid() {
		return nil, &ValidationFailure{Violations: result.Errors}
	}

	if definition.ID == "" {
		definition.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	definition.UsageCount = 0
	definition.CreatedAt = now
	definition.UpdatedAt = now

	err := s.persistence.DefinitionRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to save definition: %w", err)
	}

	s.logger.InfoContext(ctx, "Definition created", "definition_id", definition.ID, "name", definition.Name)

	return definition, nil
}

// Update replaces a stored definition after re-validating the complete merged
// payload. Creation metadata and usage count are preserved.
func (s *Definition) Update(ctx context.Context, id string, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	existing, err := s.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	if existing == nil {
		return nil, ErrDefinitionNotFound
	}

	definition.ID = id

	result := s.validator.Validate(definition)
	if !result.Valid() {
		return nil, &ValidationFailure{Violations: result.Errors}
	}

	definition.CreatedAt = existing.CreatedAt
	definition.UsageCount = existing.UsageCount
	definition.UpdatedAt = time.Now().UTC()

	err = s.persistence.DefinitionRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to save definition: %w", err)
	}

	s.logger.InfoContext(ctx, "Definition updated", "definition_id", id)

	return definition, nil
}

// Get loads one definition.
func (s *Definition) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	definition, err := s.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	if definition == nil {
		return nil, ErrDefinitionNotFound
	}

	return definition, nil
}

// ListRequest contains options for listing definitions.
type ListRequest struct {
	Limit     int
	Offset    int
	Type      *models.WorkflowType
	Category  string
	IsActive  *bool
	Owner     string
	SortBy    string
	SortOrder string
}

// ListResponse contains the result of listing definitions.
type ListResponse struct {
	Definitions []*models.WorkflowDefinition `json:"definitions"`
	TotalCount  int64                        `json:"total_count"`
	HasNextPage bool                         `json:"has_next_page"`
}

// List retrieves definitions with filtering, sorting, and pagination.
func (s *Definition) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if req.SortOrder != "" && req.SortOrder != "asc" && req.SortOrder != "desc" {
		return nil, ErrInvalidSortOrder
	}

	result, err := s.persistence.DefinitionRepository().List(ctx, persistence.ListDefinitionsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		Type:      req.Type,
		Category:  req.Category,
		IsActive:  req.IsActive,
		Owner:     req.Owner,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	return &ListResponse{
		Definitions: result.Definitions,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// Delete removes a definition. It fails with a conflict while any execution
// referencing the definition is still ACTIVE or WAITING_APPROVAL.
func (s *Definition) Delete(ctx context.Context, id string) error {
	definition, err := s.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load definition: %w", err)
	}

	if definition == nil {
		return ErrDefinitionNotFound
	}

	for _, status := range []models.ExecutionStatus{models.ExecutionStatusActive, models.ExecutionStatusWaitingApproval} {
		executions, err := s.persistence.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
			DefinitionID: id,
			Status:       &status,
			Limit:        1,
		})
		if err != nil {
			return fmt.Errorf("failed to check executions: %w", err)
		}

		if len(executions) > 0 {
			return fmt.Errorf("definition %s has %s executions: %w", id, status, ErrDefinitionInUse)
		}
	}

	err = s.persistence.DefinitionRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}

	s.logger.InfoContext(ctx, "Definition deleted", "definition_id", id)

	return nil
}
