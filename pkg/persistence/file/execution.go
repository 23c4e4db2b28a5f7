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
	"sync"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// ExecutionRepository handles execution file operations with optimistic
// version checking.
type ExecutionRepository struct {
	root string
	mu   *sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string, mu *sync.Mutex) *ExecutionRepository {
	return &ExecutionRepository{root: root, mu: mu}
}

// GetByID retrieves an execution by its ID from the file system.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	filePath := filepath.Clean(path.Join(er.root, "executions", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var exec models.WorkflowExecution

	err = json.Unmarshal(body, &exec)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &exec, nil
}

// Save writes an execution, enforcing the optimistic version check against
// the stored record and bumping the version on success.
func (er *ExecutionRepository) Save(ctx context.Context, exec *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.GetByID(ctx, exec.ID)
	if err != nil {
		return err
	}

	if stored != nil && stored.Version != exec.Version {
		return persistence.NewExecutionError("Save", exec.ID, persistence.ErrVersionConflict)
	}

	exec.Version++

	err = os.MkdirAll(path.Join(er.root, "executions"), 0750)
	if err != nil {
		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	filePath := path.Join(er.root, "executions", exec.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// Delete removes an execution by its ID.
func (er *ExecutionRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(er.root, "executions", id+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return persistence.NewExecutionError("Delete", id, err)
	}

	return nil
}

// List returns executions matching the filter, newest first.
func (er *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	root := os.DirFS(path.Join(er.root, "executions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	all := make([]*models.WorkflowExecution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5]

		exec, err := er.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
		}

		if exec != nil {
			all = append(all, exec)
		}
	}

	filtered := make([]*models.WorkflowExecution, 0, len(all))

	for _, exec := range all {
		if opts.DefinitionID != "" && exec.DefinitionID != opts.DefinitionID {
			continue
		}

		if opts.Status != nil && exec.Status != *opts.Status {
			continue
		}

		if !opts.StartedAfter.IsZero() && exec.StartTime.Before(opts.StartedAfter) {
			continue
		}

		filtered = append(filtered, exec)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].StartTime.After(filtered[j].StartTime)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(filtered) {
			return []*models.WorkflowExecution{}, nil
		}

		filtered = filtered[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}

	return filtered, nil
}
