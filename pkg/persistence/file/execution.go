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

// ExecutionRepository stores each execution record as executions/<id>.json.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a file-backed execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// Create stores a new execution record, generating an id when empty.
func (r *ExecutionRepository) Create(_ context.Context, record *models.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution id: %w", err)
		}

		record.ID = id.String()
	}

	return r.write(record)
}

// GetByID loads one execution record.
func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read(id)
}

// Finalize moves a running record to its terminal state. Absent or already
// terminal records report flowerr.ErrExecutionNotFound so redelivered jobs
// cannot clobber a finished run.
func (r *ExecutionRepository) Finalize(_ context.Context, id string, status models.ExecutionStatus, result map[string]any, errorMessage string, completedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize status must be terminal, got %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.read(id)
	if err != nil {
		return err
	}

	if record.Status != models.ExecutionStatusRunning {
		return fmt.Errorf("execution %s already %s: %w", id, record.Status, flowerr.ErrExecutionNotFound)
	}

	record.Status = status
	record.CompletedAt = &completedAt
	record.Result = nil
	record.ErrorMessage = ""

	if status == models.ExecutionStatusSuccess {
		record.Result = result
	} else {
		record.ErrorMessage = errorMessage
	}

	return r.write(record)
}

// ListByWorkflow returns the workflow's records newest first, optionally
// filtered by status.
func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string, opts persistence.ListOptions) ([]*models.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readAll()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.ExecutionRecord, 0, len(records))

	for _, record := range records {
		if record.WorkflowID != workflowID {
			continue
		}

		if opts.Status != "" && string(record.Status) != opts.Status {
			continue
		}

		filtered = append(filtered, record)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.After(filtered[j].StartedAt)
	})

	return page(filtered, opts), nil
}

// CountByWorkflow counts the workflow's records, optionally by status.
func (r *ExecutionRepository) CountByWorkflow(_ context.Context, workflowID string, status models.ExecutionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readAll()
	if err != nil {
		return 0, err
	}

	var count int64

	for _, record := range records {
		if record.WorkflowID != workflowID {
			continue
		}

		if status != "" && record.Status != status {
			continue
		}

		count++
	}

	return count, nil
}

// DeleteOlderThan removes terminal records started before the given time.
func (r *ExecutionRepository) DeleteOlderThan(_ context.Context, before time.Time, status models.ExecutionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readAll()
	if err != nil {
		return 0, err
	}

	var deleted int64

	for _, record := range records {
		if !record.Status.Terminal() {
			continue
		}

		if status != "" && record.Status != status {
			continue
		}

		if !record.StartedAt.Before(before) {
			continue
		}

		if err := os.Remove(r.path(record.ID)); err != nil {
			return deleted, fmt.Errorf("failed to delete execution %s: %w", record.ID, err)
		}

		deleted++
	}

	return deleted, nil
}

// CountOlderThan reports how many records DeleteOlderThan would remove.
func (r *ExecutionRepository) CountOlderThan(_ context.Context, before time.Time, status models.ExecutionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readAll()
	if err != nil {
		return 0, err
	}

	var count int64

	for _, record := range records {
		if !record.Status.Terminal() {
			continue
		}

		if status != "" && record.Status != status {
			continue
		}

		if !record.StartedAt.Before(before) {
			continue
		}

		count++
	}

	return count, nil
}

func (r *ExecutionRepository) path(id string) string {
	return filepath.Clean(path.Join(r.root, "executions", id+".json"))
}

func (r *ExecutionRepository) read(id string) (*models.ExecutionRecord, error) {
	body, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("execution %s: %w", id, flowerr.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var record models.ExecutionRecord

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &record, nil
}

func (r *ExecutionRepository) readAll() ([]*models.ExecutionRecord, error) {
	dir := path.Join(r.root, "executions")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0, len(files))

	for _, file := range files {
		record, err := r.read(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

func (r *ExecutionRepository) write(record *models.ExecutionRecord) error {
	err := os.MkdirAll(path.Join(r.root, "executions"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", record.ID, err)
	}

	return os.WriteFile(r.path(record.ID), data, 0600)
}
