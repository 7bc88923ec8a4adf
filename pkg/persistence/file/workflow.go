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
	"time"

	"github.com/google/uuid"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
)

// WorkflowRepository stores each workflow as workflows/<id>.json.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a file-backed workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// Create stores a new workflow, generating an id when empty. The webhook
// path must not be claimed by another workflow.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow id: %w", err)
		}

		workflow.ID = id.String()
	}

	if _, err := os.Stat(r.path(workflow.ID)); err == nil {
		return fmt.Errorf("workflow %s already exists", workflow.ID)
	}

	if err := r.checkWebhookPath(ctx, workflow); err != nil {
		return err
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	return r.write(workflow)
}

// Update replaces a stored workflow, keeping its creation time.
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.read(workflow.ID)
	if err != nil {
		return err
	}

	if err := r.checkWebhookPath(ctx, workflow); err != nil {
		return err
	}

	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	return r.write(workflow)
}

// GetByID loads one workflow.
func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.read(id)
}

// GetByWebhookPath scans stored workflows for the one claiming the path.
func (r *WorkflowRepository) GetByWebhookPath(ctx context.Context, webhookPath string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows, err := r.readAll()
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.WebhookPath == webhookPath {
			return workflow, nil
		}
	}

	return nil, fmt.Errorf("path %s: %w", webhookPath, flowerr.ErrWebhookNotFound)
}

// List returns workflows newest first, optionally filtered by status.
func (r *WorkflowRepository) List(_ context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows, err := r.readAll()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if opts.Status != "" && string(workflow.Status) != opts.Status {
			continue
		}

		filtered = append(filtered, workflow)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return page(filtered, opts), nil
}

// Delete removes a stored workflow.
func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("workflow %s: %w", id, flowerr.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

// checkWebhookPath enforces webhook path uniqueness across all stored
// workflows except the one being written. Callers hold the lock.
func (r *WorkflowRepository) checkWebhookPath(_ context.Context, workflow *models.Workflow) error {
	if workflow.WebhookPath == "" {
		return nil
	}

	others, err := r.readAll()
	if err != nil {
		return err
	}

	for _, other := range others {
		if other.ID != workflow.ID && other.WebhookPath == workflow.WebhookPath {
			return fmt.Errorf("path %s: %w", workflow.WebhookPath, flowerr.ErrWebhookPathTaken)
		}
	}

	return nil
}

func (r *WorkflowRepository) path(id string) string {
	return filepath.Clean(path.Join(r.root, "workflows", id+".json"))
}

func (r *WorkflowRepository) read(id string) (*models.Workflow, error) {
	body, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflow %s: %w", id, flowerr.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) readAll() ([]*models.Workflow, error) {
	dir := path.Join(r.root, "workflows")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(files))

	for _, file := range files {
		workflow, err := r.read(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) write(workflow *models.Workflow) error {
	err := os.MkdirAll(path.Join(r.root, "workflows"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	return os.WriteFile(r.path(workflow.ID), data, 0600)
}

// page applies offset and limit to an already sorted slice.
func page[T any](items []T, opts persistence.ListOptions) []T {
	if opts.Offset >= len(items) {
		return make([]T, 0)
	}

	items = items[opts.Offset:]

	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}

	return items
}
