package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// ExecutionRepository handles execution database operations. Saves enforce
// optimistic locking against the stored version column.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save writes an execution. A new record is inserted at version 1; an update
// only succeeds when the caller's version matches the stored row, and the
// version is bumped on success.
func (r *ExecutionRepository) Save(ctx context.Context, exec *models.WorkflowExecution) error {
	expectedVersion := exec.Version
	exec.Version++

	document, err := json.Marshal(exec)
	if err != nil {
		exec.Version = expectedVersion

		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	if expectedVersion == 0 {
		inserted, err := r.insert(ctx, exec, document)
		if err != nil {
			exec.Version = expectedVersion

			return err
		}

		if inserted {
			return nil
		}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = $2, version = $3, document = $4
		WHERE id = $1 AND version = $5
	`, exec.ID, string(exec.Status), exec.Version, document, expectedVersion)
	if err != nil {
		exec.Version = expectedVersion

		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		exec.Version = expectedVersion

		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	if affected == 0 {
		exec.Version = expectedVersion

		return persistence.NewExecutionError("Save", exec.ID, persistence.ErrVersionConflict)
	}

	return nil
}

// insert attempts the initial write. It reports false without error when the
// row already exists, so Save falls through to the guarded update.
func (r *ExecutionRepository) insert(ctx context.Context, exec *models.WorkflowExecution, document []byte) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, definition_id, status, version, document, start_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, exec.ID, exec.DefinitionID, string(exec.Status), exec.Version, document, exec.StartTime)
	if err != nil {
		return false, persistence.NewExecutionError("Save", exec.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewExecutionError("Save", exec.ID, err)
	}

	return affected > 0, nil
}

// GetByID retrieves an execution by its ID. A missing execution is not an
// error; it returns nil.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var (
		document []byte
		version  int64
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT document, version FROM workflow_executions WHERE id = $1", id,
	).Scan(&document, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var exec models.WorkflowExecution

	err = json.Unmarshal(document, &exec)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	exec.Version = version

	return &exec, nil
}

// Delete removes an execution. Deleting a missing execution is not an error.
func (r *ExecutionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflow_executions WHERE id = $1", id)
	if err != nil {
		return persistence.NewExecutionError("Delete", id, err)
	}

	return nil
}

// List returns executions matching the filters, newest first. A zero limit
// returns all matches.
func (r *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	where := " WHERE 1=1"
	args := []any{}

	if opts.DefinitionID != "" {
		args = append(args, opts.DefinitionID)
		where += fmt.Sprintf(" AND definition_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if !opts.StartedAfter.IsZero() {
		args = append(args, opts.StartedAfter)
		where += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}

	query := "SELECT document, version FROM workflow_executions" + where + " ORDER BY start_time DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		var (
			document []byte
			version  int64
		)

		err = rows.Scan(&document, &version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		var exec models.WorkflowExecution

		err = json.Unmarshal(document, &exec)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
		}

		exec.Version = version

		executions = append(executions, &exec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}
