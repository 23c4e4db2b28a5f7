// Package persistence provides the data storage abstraction for workflow
// definitions and executions.
package persistence

import (
	"context"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
)

// ListDefinitionsOptions filters and paginates definition listings.
type ListDefinitionsOptions struct {
	Limit  int
	Offset int

	Type     *models.WorkflowType
	Category string
	IsActive *bool
	Owner    string

	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// DefinitionListResult is a page of definitions plus paging metadata.
type DefinitionListResult struct {
	Definitions []*models.WorkflowDefinition `json:"definitions"`
	TotalCount  int64                        `json:"total_count"`
	HasNextPage bool                         `json:"has_next_page"`
}

// ListExecutionsOptions filters execution listings.
type ListExecutionsOptions struct {
	DefinitionID string
	Status       *models.ExecutionStatus

	// StartedAfter filters to executions whose StartTime is not before it.
	// The zero value means no lower bound.
	StartedAfter time.Time

	Limit  int
	Offset int
}

// DefinitionRepository stores workflow definitions.
type DefinitionRepository interface {
	Save(ctx context.Context, def *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListDefinitionsOptions) (*DefinitionListResult, error)
}

// ExecutionRepository stores workflow executions. Save enforces optimistic
// locking: a save whose Version does not match the stored record must fail
// with ErrVersionConflict.
type ExecutionRepository interface {
	Save(ctx context.Context, exec *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListExecutionsOptions) ([]*models.WorkflowExecution, error)
}

// Persistence bundles the repositories behind one storage backend.
type Persistence interface {
	DefinitionRepository() DefinitionRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
