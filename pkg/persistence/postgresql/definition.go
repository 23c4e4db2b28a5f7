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

// DefinitionRepository handles definition database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

// Save upserts a definition. The full document is stored as JSONB alongside
// the promoted filter columns.
func (r *DefinitionRepository) Save(ctx context.Context, def *models.WorkflowDefinition) error {
	document, err := json.Marshal(def)
	if err != nil {
		return persistence.NewDefinitionError("Save", def.ID, err)
	}

	query := `
		INSERT INTO workflow_definitions (
			id, name, workflow_type, category, owner, is_active, usage_count, document, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , workflow_type = EXCLUDED.workflow_type
		  , category = EXCLUDED.category
		  , owner = EXCLUDED.owner
		  , is_active = EXCLUDED.is_active
		  , usage_count = EXCLUDED.usage_count
		  , document = EXCLUDED.document
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		def.ID,
		def.Name,
		string(def.Type),
		def.Category,
		def.Owner,
		def.IsActive,
		def.UsageCount,
		document,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		return persistence.NewDefinitionError("Save", def.ID, err)
	}

	return nil
}

// GetByID retrieves a definition by its ID. A missing definition is not an
// error; it returns nil.
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM workflow_definitions WHERE id = $1", id,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	var def models.WorkflowDefinition

	err = json.Unmarshal(document, &def)
	if err != nil {
		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	return &def, nil
}

// Delete removes a definition. Deleting a missing definition is not an error.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflow_definitions WHERE id = $1", id)
	if err != nil {
		return persistence.NewDefinitionError("Delete", id, err)
	}

	return nil
}

var definitionSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

// List returns paginated and filtered definitions.
func (r *DefinitionRepository) List(ctx context.Context, opts persistence.ListDefinitionsOptions) (*persistence.DefinitionListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	sortColumn, ok := definitionSortColumns[opts.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	where := " WHERE 1=1"
	args := []any{}

	if opts.Type != nil {
		args = append(args, string(*opts.Type))
		where += fmt.Sprintf(" AND workflow_type = $%d", len(args))
	}

	if opts.Category != "" {
		args = append(args, opts.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	if opts.IsActive != nil {
		args = append(args, *opts.IsActive)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}

	if opts.Owner != "" {
		args = append(args, opts.Owner)
		where += fmt.Sprintf(" AND owner = $%d", len(args))
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_definitions"+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count definitions: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT document FROM workflow_definitions%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, sortColumn, direction, len(args)+1, len(args)+2,
	)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	definitions := make([]*models.WorkflowDefinition, 0, opts.Limit)

	for rows.Next() {
		var document []byte

		err = rows.Scan(&document)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		var def models.WorkflowDefinition

		err = json.Unmarshal(document, &def)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}

		definitions = append(definitions, &def)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return &persistence.DefinitionListResult{
		Definitions: definitions,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(definitions)) < totalCount,
	}, nil
}
