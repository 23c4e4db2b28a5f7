// Package file provides a file-based persistence implementation for workflow
// definitions and executions. Each entity is stored as one JSON document; it
// is intended for development and tests rather than production load.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root           string
	definitionRepo *DefinitionRepository
	executionRepo  *ExecutionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on the root is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	// Execution saves share one lock so optimistic version checks are not
	// themselves racy within a single process.
	mu := &sync.Mutex{}

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: NewDefinitionRepository(cleanRoot),
		executionRepo:  NewExecutionRepository(cleanRoot, mu),
	}
}

// DefinitionRepository returns the definition repository.
func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.definitionRepo
}

// ExecutionRepository returns the execution repository.
func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is none.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
