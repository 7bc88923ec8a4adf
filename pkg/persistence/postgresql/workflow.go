package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
)

const uniqueViolation = pq.ErrorCode("23505")

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create inserts a new workflow, generating an ID when none is set.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	nodesJSON, metadataJSON, err := marshalWorkflowFields(workflow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (id, name, description, status, webhook_path, nodes, owner, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Status,
		workflow.WebhookPath,
		nodesJSON,
		workflow.Owner,
		metadataJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		if isWebhookPathConflict(err) {
			return fmt.Errorf("webhook path %q: %w", workflow.WebhookPath, flowerr.ErrWebhookPathTaken)
		}

		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

// Update replaces an existing workflow, preserving its creation timestamp.
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()

	nodesJSON, metadataJSON, err := marshalWorkflowFields(workflow)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows
		SET name = $2, description = $3, status = $4, webhook_path = $5, nodes = $6, owner = $7, metadata = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Status,
		workflow.WebhookPath,
		nodesJSON,
		workflow.Owner,
		metadataJSON,
		workflow.UpdatedAt,
	)
	if err != nil {
		if isWebhookPathConflict(err) {
			return fmt.Errorf("webhook path %q: %w", workflow.WebhookPath, flowerr.ErrWebhookPathTaken)
		}

		return fmt.Errorf("failed to update workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("workflow %s: %w", workflow.ID, flowerr.ErrWorkflowNotFound)
	}

	return nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , status
		  , webhook_path
		  , nodes
		  , owner
		  , metadata
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workflow %s: %w", id, flowerr.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// GetByWebhookPath returns the workflow registered for a webhook path,
// regardless of workflow status.
func (r *WorkflowRepository) GetByWebhookPath(ctx context.Context, path string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , status
		  , webhook_path
		  , nodes
		  , owner
		  , metadata
		  , created_at
		  , updated_at
		FROM workflows
		WHERE webhook_path = $1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("webhook path %q: %w", path, flowerr.ErrWebhookNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// List returns workflows sorted by creation time, newest first.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , status
		  , webhook_path
		  , nodes
		  , owner
		  , metadata
		  , created_at
		  , updated_at
		FROM workflows
	`

	args := make([]any, 0, 3)

	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// Delete removes a workflow. Its execution records are kept.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("workflow %s: %w", id, flowerr.ErrWorkflowNotFound)
	}

	return nil
}

func marshalWorkflowFields(workflow *models.Workflow) (nodesJSON, metadataJSON []byte, err error) {
	nodesJSON, err = json.Marshal(workflow.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}

	if workflow.Metadata != nil {
		metadataJSON, err = json.Marshal(workflow.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	return nodesJSON, metadataJSON, nil
}

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var (
		workflow                models.Workflow
		nodesJSON, metadataJSON []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Status,
		&workflow.WebhookPath,
		&nodesJSON,
		&workflow.Owner,
		&metadataJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if nodesJSON != nil {
		err := json.Unmarshal(nodesJSON, &workflow.Nodes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	if metadataJSON != nil {
		err := json.Unmarshal(metadataJSON, &workflow.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &workflow, nil
}

func isWebhookPathConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "webhook_path")
}
