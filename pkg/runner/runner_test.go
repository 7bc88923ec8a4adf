package runner_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookflow/hookflow/pkg/conditions"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/nodes"
	"github.com/hookflow/hookflow/pkg/otelhelper"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/persistence/file"
	"github.com/hookflow/hookflow/pkg/plan"
	"github.com/hookflow/hookflow/pkg/queue"
	"github.com/hookflow/hookflow/pkg/runner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRunner(t *testing.T) (*runner.Runner, persistence.ExecutionRepository) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	executions := store.ExecutionRepository()
	r := runner.NewRunner(executions, plan.Executors(testLogger()), testLogger(), otelhelper.NewNoopTracer(), "worker-test")

	return r, executions
}

func createRunning(t *testing.T, executions persistence.ExecutionRepository, id string, payload map[string]any) {
	t.Helper()

	record := models.NewExecutionRecord(id, "wf-1", payload)
	require.NoError(t, executions.Create(context.Background(), record))
}

func jobFor(executionID string, executionPlan *models.ExecutionPlan, payload map[string]any) *queue.Job {
	return &queue.Job{
		ID:          "job-" + executionID,
		ExecutionID: executionID,
		WorkflowID:  "wf-1",
		Plan:        executionPlan,
		Payload:     payload,
		EnqueuedAt:  time.Now().UTC(),
	}
}

func triggerNode() *models.PlanNode {
	return &models.PlanNode{
		ID:      "hook",
		Kind:    models.NodeKindTrigger,
		Trigger: &models.TriggerConfig{Path: "/github"},
	}
}

func TestRunExecutesChain(t *testing.T) {
	t.Parallel()

	var gotBody atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"delivered": true}`))
	}))
	defer server.Close()

	executionPlan := &models.ExecutionPlan{
		WorkflowID: "wf-1",
		Nodes: []*models.PlanNode{
			triggerNode(),
			{ID: "notify", Kind: models.NodeKindHTTPAction, HTTP: &models.HTTPConfig{
				URL:            server.URL,
				Method:         "POST",
				Body:           `{"msg": "{{hook.action}}"}`,
				TimeoutSeconds: 5,
			}},
		},
	}

	r, executions := newRunner(t)
	payload := map[string]any{"action": "opened"}
	createRunning(t, executions, "exec-1", payload)

	require.NoError(t, r.Run(context.Background(), jobFor("exec-1", executionPlan, payload)))

	assert.Equal(t, `{"msg": "opened"}`, gotBody.Load())

	record, err := executions.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, record.Status)
	require.NotNil(t, record.CompletedAt)
	assert.Empty(t, record.ErrorMessage)

	require.Contains(t, record.Result, "hook")
	require.Contains(t, record.Result, "notify")

	notify, ok := record.Result["notify"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 200, notify["status"])

	body, ok := notify["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, body["delivered"])
}

func TestRunHaltsOnFilterMismatch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executionPlan := &models.ExecutionPlan{
		WorkflowID: "wf-1",
		Nodes: []*models.PlanNode{
			triggerNode(),
			{ID: "gate", Kind: models.NodeKindFilter, Filter: &models.FilterConfig{
				Conditions: []models.FilterCondition{{
					Field:    "{{hook.action}}",
					Operator: conditions.OpEquals,
					Value:    "closed",
					Type:     models.ConditionTypeString,
				}},
				Logic:      models.FilterLogicAnd,
				ContinueOn: true,
			}},
			{ID: "notify", Kind: models.NodeKindHTTPAction, HTTP: &models.HTTPConfig{
				URL:            server.URL,
				Method:         "POST",
				TimeoutSeconds: 5,
			}},
		},
	}

	r, executions := newRunner(t)
	payload := map[string]any{"action": "opened"}
	createRunning(t, executions, "exec-1", payload)

	require.NoError(t, r.Run(context.Background(), jobFor("exec-1", executionPlan, payload)))

	assert.Equal(t, int32(0), calls.Load())

	record, err := executions.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, record.Status)

	// The halting node folds nothing; the result holds the context as it
	// stood when the chain stopped.
	assert.Contains(t, record.Result, "hook")
	assert.NotContains(t, record.Result, "gate")
	assert.NotContains(t, record.Result, "notify")
}

func TestRunNodeFailureFinalizesFailed(t *testing.T) {
	t.Parallel()

	executionPlan := &models.ExecutionPlan{
		WorkflowID: "wf-1",
		Nodes: []*models.PlanNode{
			triggerNode(),
			{ID: "notify", Kind: models.NodeKindHTTPAction, HTTP: &models.HTTPConfig{
				URL:            "http://127.0.0.1:1",
				Method:         "POST",
				TimeoutSeconds: 1,
			}},
		},
	}

	r, executions := newRunner(t)
	createRunning(t, executions, "exec-1", map[string]any{"action": "opened"})

	// A failed run is a durable outcome: no error, no redelivery.
	require.NoError(t, r.Run(context.Background(), jobFor("exec-1", executionPlan, map[string]any{"action": "opened"})))

	record, err := executions.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "node notify")
	assert.Nil(t, record.Result)
	require.NotNil(t, record.CompletedAt)
}

func TestRunUnknownNodeKindFails(t *testing.T) {
	t.Parallel()

	executionPlan := &models.ExecutionPlan{
		WorkflowID: "wf-1",
		Nodes: []*models.PlanNode{
			triggerNode(),
			{ID: "mystery", Kind: models.NodeKind("teleport")},
		},
	}

	r, executions := newRunner(t)
	createRunning(t, executions, "exec-1", nil)

	require.NoError(t, r.Run(context.Background(), jobFor("exec-1", executionPlan, nil)))

	record, err := executions.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "no executor for node kind")
}

func TestRunMissingPlanFails(t *testing.T) {
	t.Parallel()

	r, executions := newRunner(t)
	createRunning(t, executions, "exec-1", nil)

	require.NoError(t, r.Run(context.Background(), jobFor("exec-1", nil, nil)))

	record, err := executions.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "no execution plan")
}

type panicExecutor struct{}

func (panicExecutor) Execute(context.Context, *models.PlanNode, models.ExecutionContext) (*models.Outcome, error) {
	panic("exploded")
}

func TestRunRecoversExecutorPanic(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	executions := store.ExecutionRepository()
	executors := map[models.NodeKind]nodes.Executor{
		models.NodeKindHTTPAction: panicExecutor{},
	}
	r := runner.NewRunner(executions, executors, testLogger(), otelhelper.NewNoopTracer(), "worker-test")

	executionPlan := &models.ExecutionPlan{
		WorkflowID: "wf-1",
		Nodes: []*models.PlanNode{
			triggerNode(),
			{ID: "notify", Kind: models.NodeKindHTTPAction, HTTP: &models.HTTPConfig{URL: "http://example.com", Method: "GET"}},
		},
	}

	createRunning(t, executions, "exec-1", nil)

	require.NoError(t, r.Run(context.Background(), jobFor("exec-1", executionPlan, nil)))

	record, err := executions.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "panicked")
}

func TestRunSkipsFinalizedExecution(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executionPlan := &models.ExecutionPlan{
		WorkflowID: "wf-1",
		Nodes: []*models.PlanNode{
			triggerNode(),
			{ID: "notify", Kind: models.NodeKindHTTPAction, HTTP: &models.HTTPConfig{
				URL:            server.URL,
				Method:         "POST",
				TimeoutSeconds: 5,
			}},
		},
	}

	r, executions := newRunner(t)
	createRunning(t, executions, "exec-1", nil)

	original := map[string]any{"hook": map[string]any{"marker": "first run"}}
	require.NoError(t, executions.Finalize(context.Background(), "exec-1", models.ExecutionStatusSuccess, original, "", time.Now().UTC()))

	// Redelivery of an already finalized execution must not re-run nodes
	// or overwrite the recorded outcome.
	require.NoError(t, r.Run(context.Background(), jobFor("exec-1", executionPlan, nil)))

	assert.Equal(t, int32(0), calls.Load())

	record, err := executions.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, record.Status)
	assert.Equal(t, original, record.Result)
}

func TestRunDropsJobForUnknownExecution(t *testing.T) {
	t.Parallel()

	r, _ := newRunner(t)

	executionPlan := &models.ExecutionPlan{
		WorkflowID: "wf-1",
		Nodes:      []*models.PlanNode{triggerNode()},
	}

	require.NoError(t, r.Run(context.Background(), jobFor("never-created", executionPlan, nil)))
}
