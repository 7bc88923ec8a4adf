package retention_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/mocks"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/persistence/file"
	"github.com/hookflow/hookflow/pkg/retention"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seedExecution(t *testing.T, executions persistence.ExecutionRepository, status models.ExecutionStatus, startedAt time.Time) *models.ExecutionRecord {
	t.Helper()

	record := models.NewExecutionRecord("", "wf-retention", map[string]any{"body": map[string]any{}})
	record.StartedAt = startedAt

	require.NoError(t, executions.Create(t.Context(), record))

	if status.Terminal() {
		err := executions.Finalize(t.Context(), record.ID, status, map[string]any{"hook": map[string]any{}}, "", startedAt.Add(time.Second))
		require.NoError(t, err)
	}

	return record
}

func TestNewSweeper_Validation(t *testing.T) {
	t.Parallel()

	executions := file.NewPersistence(t.TempDir()).ExecutionRepository()

	tests := []struct {
		name    string
		cfg     retention.Config
		wantErr string
	}{
		{
			name: "defaults are valid",
			cfg:  retention.Config{},
		},
		{
			name: "explicit schedule and window",
			cfg:  retention.Config{Schedule: "30 4 * * *", Days: 7, Status: models.ExecutionStatusFailed},
		},
		{
			name:    "malformed schedule",
			cfg:     retention.Config{Schedule: "every day at dawn"},
			wantErr: "invalid retention schedule",
		},
		{
			name:    "negative window",
			cfg:     retention.Config{Days: -1},
			wantErr: "at least one day",
		},
		{
			name:    "non-terminal status",
			cfg:     retention.Config{Status: models.ExecutionStatusRunning},
			wantErr: "must be terminal",
		},
		{
			name:    "unknown status",
			cfg:     retention.Config{Status: "archived"},
			wantErr: "must be terminal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sweeper, err := retention.NewSweeper(executions, testLogger(), tt.cfg)

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, sweeper)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, sweeper)
		})
	}
}

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	executions := file.NewPersistence(t.TempDir()).ExecutionRepository()
	now := time.Now().UTC()

	oldSuccess := seedExecution(t, executions, models.ExecutionStatusSuccess, now.AddDate(0, 0, -45))
	oldFailed := seedExecution(t, executions, models.ExecutionStatusFailed, now.AddDate(0, 0, -40))
	oldRunning := seedExecution(t, executions, models.ExecutionStatusRunning, now.AddDate(0, 0, -60))
	recent := seedExecution(t, executions, models.ExecutionStatusSuccess, now.AddDate(0, 0, -5))

	sweeper, err := retention.NewSweeper(executions, testLogger(), retention.Config{})
	require.NoError(t, err)

	deleted, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	for _, gone := range []*models.ExecutionRecord{oldSuccess, oldFailed} {
		_, err := executions.GetByID(context.Background(), gone.ID)
		assert.ErrorIs(t, err, flowerr.ErrExecutionNotFound)
	}

	for _, kept := range []*models.ExecutionRecord{oldRunning, recent} {
		_, err := executions.GetByID(context.Background(), kept.ID)
		assert.NoError(t, err)
	}
}

func TestSweeper_Sweep_StatusFilter(t *testing.T) {
	t.Parallel()

	executions := file.NewPersistence(t.TempDir()).ExecutionRepository()
	now := time.Now().UTC()

	oldSuccess := seedExecution(t, executions, models.ExecutionStatusSuccess, now.AddDate(0, 0, -45))
	oldFailed := seedExecution(t, executions, models.ExecutionStatusFailed, now.AddDate(0, 0, -40))

	sweeper, err := retention.NewSweeper(executions, testLogger(), retention.Config{Status: models.ExecutionStatusFailed})
	require.NoError(t, err)

	deleted, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = executions.GetByID(context.Background(), oldFailed.ID)
	assert.ErrorIs(t, err, flowerr.ErrExecutionNotFound)

	_, err = executions.GetByID(context.Background(), oldSuccess.ID)
	assert.NoError(t, err)
}

func TestSweeper_Sweep_DryRun(t *testing.T) {
	t.Parallel()

	executions := file.NewPersistence(t.TempDir()).ExecutionRepository()
	now := time.Now().UTC()

	old := seedExecution(t, executions, models.ExecutionStatusSuccess, now.AddDate(0, 0, -45))
	seedExecution(t, executions, models.ExecutionStatusSuccess, now.AddDate(0, 0, -5))

	sweeper, err := retention.NewSweeper(executions, testLogger(), retention.Config{DryRun: true})
	require.NoError(t, err)

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = executions.GetByID(context.Background(), old.ID)
	assert.NoError(t, err)
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()

	executions := file.NewPersistence(t.TempDir()).ExecutionRepository()

	sweeper, err := retention.NewSweeper(executions, testLogger(), retention.Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sweeper.Start(ctx))
	assert.Error(t, sweeper.Start(ctx))

	sweeper.Stop()
}

func TestSweeper_Sweep_RepositoryError(t *testing.T) {
	t.Parallel()

	executions := &mocks.MockExecutionRepository{}
	executions.On("DeleteOlderThan", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), assert.AnError)

	sweeper, err := retention.NewSweeper(executions, testLogger(), retention.Config{})
	require.NoError(t, err)

	_, err = sweeper.Sweep(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prune executions")
	executions.AssertExpectations(t)
}
