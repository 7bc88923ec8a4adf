package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Create inserts a new execution record, generating an ID when none is set.
func (r *ExecutionRepository) Create(ctx context.Context, record *models.ExecutionRecord) error {
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution ID: %w", err)
		}

		record.ID = id.String()
	}

	var payloadJSON []byte

	if record.Payload != nil {
		var err error

		payloadJSON, err = json.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, payload, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.WorkflowID,
		record.Status,
		payloadJSON,
		record.ErrorMessage,
		record.StartedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	return nil
}

// GetByID returns an execution record by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , status
		  , payload
		  , result
		  , error_message
		  , started_at
		  , completed_at
		FROM executions
		WHERE id = $1
	`

	record, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, flowerr.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return record, nil
}

// Finalize transitions a running execution to a terminal status. Records that
// are absent or already terminal report flowerr.ErrExecutionNotFound so a
// redelivered job cannot overwrite an earlier outcome.
func (r *ExecutionRepository) Finalize(ctx context.Context, id string, status models.ExecutionStatus, result map[string]any, errorMessage string, completedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finalize execution %s with non-terminal status %q", id, status)
	}

	var resultJSON []byte

	if status == models.ExecutionStatusSuccess && result != nil {
		var err error

		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	message := ""
	if status == models.ExecutionStatusFailed {
		message = errorMessage
	}

	query := `
		UPDATE executions
		SET status = $2, result = $3, error_message = $4, completed_at = $5
		WHERE id = $1 AND status = $6
	`

	res, err := r.db.ExecContext(ctx, query, id, status, resultJSON, message, completedAt, models.ExecutionStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finalize execution: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("execution %s is not running: %w", id, flowerr.ErrExecutionNotFound)
	}

	return nil
}

// ListByWorkflow returns executions for a workflow, newest first.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, opts persistence.ListOptions) ([]*models.ExecutionRecord, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , status
		  , payload
		  , result
		  , error_message
		  , started_at
		  , completed_at
		FROM executions
		WHERE workflow_id = $1
	`

	args := []any{workflowID}

	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY started_at DESC"

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

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		record, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return records, nil
}

// CountByWorkflow counts executions for a workflow, optionally by status.
func (r *ExecutionRepository) CountByWorkflow(ctx context.Context, workflowID string, status models.ExecutionStatus) (int64, error) {
	query := "SELECT COUNT(*) FROM executions WHERE workflow_id = $1"
	args := []any{workflowID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var count int64

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}

// DeleteOlderThan removes terminal executions started before the given time,
// optionally restricted to a single terminal status. Running executions are
// never removed.
func (r *ExecutionRepository) DeleteOlderThan(ctx context.Context, before time.Time, status models.ExecutionStatus) (int64, error) {
	query := "DELETE FROM executions WHERE started_at < $1 AND status IN ('success', 'failed')"
	args := []any{before}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete executions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// CountOlderThan reports how many records DeleteOlderThan would remove.
func (r *ExecutionRepository) CountOlderThan(ctx context.Context, before time.Time, status models.ExecutionStatus) (int64, error) {
	query := "SELECT COUNT(*) FROM executions WHERE started_at < $1 AND status IN ('success', 'failed')"
	args := []any{before}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var count int64

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}

func scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.ExecutionRecord, error) {
	var (
		record                  models.ExecutionRecord
		payloadJSON, resultJSON []byte
	)

	err := scanner.Scan(
		&record.ID,
		&record.WorkflowID,
		&record.Status,
		&payloadJSON,
		&resultJSON,
		&record.ErrorMessage,
		&record.StartedAt,
		&record.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if payloadJSON != nil {
		err := json.Unmarshal(payloadJSON, &record.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	if resultJSON != nil {
		err := json.Unmarshal(resultJSON, &record.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return &record, nil
}
