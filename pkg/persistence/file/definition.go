package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// DefinitionRepository handles definition file operations.
type DefinitionRepository struct {
	root string
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

// GetByID retrieves a definition by its ID from the file system.
func (dr *DefinitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	filePath := filepath.Clean(path.Join(dr.root, "definitions", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	var def models.WorkflowDefinition

	err = json.Unmarshal(body, &def)
	if err != nil {
		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	return &def, nil
}

// Save writes a definition to the file system.
func (dr *DefinitionRepository) Save(_ context.Context, def *models.WorkflowDefinition) error {
	err := os.MkdirAll(path.Join(dr.root, "definitions"), 0750)
	if err != nil {
		return persistence.NewDefinitionError("Save", def.ID, err)
	}

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return persistence.NewDefinitionError("Save", def.ID, err)
	}

	filePath := path.Join(dr.root, "definitions", def.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// Delete removes a definition by its ID. Deleting a missing definition is not
// an error.
func (dr *DefinitionRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(dr.root, "definitions", id+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return persistence.NewDefinitionError("Delete", id, err)
	}

	return nil
}

// List returns paginated and filtered definitions with in-memory operations.
func (dr *DefinitionRepository) List(ctx context.Context, opts persistence.ListDefinitionsOptions) (*persistence.DefinitionListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	root := os.DirFS(path.Join(dr.root, "definitions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}

	all := make([]*models.WorkflowDefinition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // strip .json

		def, err := dr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition %s: %w", id, err)
		}

		if def != nil {
			all = append(all, def)
		}
	}

	filtered := make([]*models.WorkflowDefinition, 0, len(all))

	for _, def := range all {
		if opts.Type != nil && def.Type != *opts.Type {
			continue
		}

		if opts.Category != "" && def.Category != opts.Category {
			continue
		}

		if opts.IsActive != nil && def.IsActive != *opts.IsActive {
			continue
		}

		if opts.Owner != "" && def.Owner != opts.Owner {
			continue
		}

		filtered = append(filtered, def)
	}

	dr.sortDefinitions(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))
	startIdx := opts.Offset
	endIdx := opts.Offset + opts.Limit

	if startIdx >= len(filtered) {
		return &persistence.DefinitionListResult{
			Definitions: make([]*models.WorkflowDefinition, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	return &persistence.DefinitionListResult{
		Definitions: filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

// sortDefinitions sorts definitions in-place based on the field and order.
func (dr *DefinitionRepository) sortDefinitions(defs []*models.WorkflowDefinition, sortBy, sortOrder string) {
	sort.Slice(defs, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "updated_at":
			less = defs[i].UpdatedAt.Before(defs[j].UpdatedAt)
		case "name":
			less = defs[i].Name < defs[j].Name
		default:
			less = defs[i].CreatedAt.Before(defs[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}
