// Package file provides file-based persistence for development and tests.
// Each aggregate is one JSON file under the root directory: workflows in
// workflows/, execution records in executions/.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/hookflow/hookflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root       string
	workflows  *WorkflowRepository
	executions *ExecutionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A file:// prefix on the path is stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		workflows:  NewWorkflowRepository(cleanRoot),
		executions: NewExecutionRepository(cleanRoot),
	}
}

// WorkflowRepository returns the workflow repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

// ExecutionRepository returns the execution record repository.
func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
