package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookflow/hookflow/pkg/dispatch"
	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/otelhelper"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/persistence/file"
	"github.com/hookflow/hookflow/pkg/queue"
	"github.com/hookflow/hookflow/pkg/queue/gochannel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// triggerFixture wires the trigger service the way the API binary does:
// file persistence, an in-process queue, and the real dispatcher.
type triggerFixture struct {
	service   *Trigger
	workflows *Workflow
	store     persistence.Persistence
	received  chan *queue.Job
}

func newTriggerFixture(t *testing.T) *triggerFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	jobs := gochannel.NewTest(testLogger())

	received := make(chan *queue.Job, 1)
	require.NoError(t, jobs.Handle(func(_ context.Context, job *queue.Job) error {
		received <- job

		return nil
	}))
	require.NoError(t, jobs.Subscribe(t.Context()))

	dispatcher := dispatch.NewDispatcher(store.ExecutionRepository(), jobs, testLogger(), otelhelper.NewNoopTracer())

	return &triggerFixture{
		service:   NewTrigger(store.WorkflowRepository(), dispatcher, testLogger()),
		workflows: NewWorkflow(store),
		store:     store,
		received:  received,
	}
}

func (f *triggerFixture) waitForJob(t *testing.T) *queue.Job {
	t.Helper()

	select {
	case job := <-f.received:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")

		return nil
	}
}

func githubDelivery(body string) WebhookRequest {
	return WebhookRequest{
		Path:   "/github",
		Method: "POST",
		URL:    "https://hooks.example.com/webhook/github",
		Headers: map[string]string{
			"X-Github-Event": "pull_request",
		},
		Body: []byte(body),
	}
}

func TestTrigger_HandleWebhook(t *testing.T) {
	fixture := newTriggerFixture(t)

	created, err := fixture.workflows.Create(t.Context(), chainWorkflow("/github"))
	require.NoError(t, err)

	accepted, err := fixture.service.HandleWebhook(t.Context(), githubDelivery(`{"action": "opened", "number": 7}`))
	require.NoError(t, err)
	require.NotNil(t, accepted)

	assert.NotEmpty(t, accepted.ExecutionID)
	assert.Equal(t, created.ID, accepted.WorkflowID)

	// The execution record is durable before the handler returns.
	record, err := fixture.store.ExecutionRepository().GetByID(t.Context(), accepted.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, record.Status)
	assert.Equal(t, created.ID, record.WorkflowID)

	// The payload envelope nests the body under "body" next to the
	// delivery metadata.
	body, ok := record.Payload["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "opened", body["action"])
	assert.Equal(t, "POST", record.Payload["method"])
	assert.Equal(t, "https://hooks.example.com/webhook/github", record.Payload["url"])
	assert.NotEmpty(t, record.Payload["received_at"])

	headers, ok := record.Payload["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pull_request", headers["X-Github-Event"])

	job := fixture.waitForJob(t)
	assert.Equal(t, accepted.ExecutionID, job.ExecutionID)
	assert.Equal(t, created.ID, job.WorkflowID)
	require.NotNil(t, job.Plan)
	assert.Len(t, job.Plan.Nodes, 3)
}

func TestTrigger_HandleWebhook_EmptyBody(t *testing.T) {
	fixture := newTriggerFixture(t)

	_, err := fixture.workflows.Create(t.Context(), chainWorkflow("/github"))
	require.NoError(t, err)

	accepted, err := fixture.service.HandleWebhook(t.Context(), githubDelivery(""))
	require.NoError(t, err)

	record, err := fixture.store.ExecutionRepository().GetByID(t.Context(), accepted.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, record.Payload["body"])
}

func TestTrigger_HandleWebhook_UnknownPath(t *testing.T) {
	fixture := newTriggerFixture(t)

	accepted, err := fixture.service.HandleWebhook(t.Context(), githubDelivery(`{}`))
	require.Error(t, err)
	assert.Nil(t, accepted)
	assert.ErrorIs(t, err, flowerr.ErrWebhookNotFound)
	assert.True(t, flowerr.IsNotFound(err))
}

func TestTrigger_HandleWebhook_InactiveWorkflow(t *testing.T) {
	fixture := newTriggerFixture(t)

	workflow := chainWorkflow("/github")
	workflow.Status = models.WorkflowStatusInactive

	_, err := fixture.workflows.Create(t.Context(), workflow)
	require.NoError(t, err)

	accepted, err := fixture.service.HandleWebhook(t.Context(), githubDelivery(`{"action": "opened"}`))
	require.Error(t, err)
	assert.Nil(t, accepted)
	assert.ErrorIs(t, err, flowerr.ErrWorkflowInactive)
}

func TestTrigger_HandleWebhook_InvalidBody(t *testing.T) {
	fixture := newTriggerFixture(t)

	_, err := fixture.workflows.Create(t.Context(), chainWorkflow("/github"))
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{name: "truncated json", body: `{"action":`},
		{name: "json array", body: `[1, 2]`},
		{name: "bare string", body: `"opened"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixture.service.HandleWebhook(t.Context(), githubDelivery(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.True(t, IsBadRequest(err))
		})
	}
}

func TestTrigger_HandleWebhook_SchemaViolation(t *testing.T) {
	fixture := newTriggerFixture(t)

	workflow := chainWorkflow("/github")
	workflow.Nodes[0].Config["payload_schema"] = map[string]any{
		"type":     "object",
		"required": []any{"action"},
		"properties": map[string]any{
			"action": map[string]any{"type": "string"},
		},
	}

	created, err := fixture.workflows.Create(t.Context(), workflow)
	require.NoError(t, err)

	accepted, err := fixture.service.HandleWebhook(t.Context(), githubDelivery(`{"number": 7}`))
	require.Error(t, err)
	assert.Nil(t, accepted)
	assert.True(t, IsSchemaViolation(err))

	var sv *SchemaViolationError

	require.ErrorAs(t, err, &sv)
	assert.NotEmpty(t, sv.Violations)

	// A rejected delivery leaves no execution record behind.
	records, err := fixture.store.ExecutionRepository().ListByWorkflow(t.Context(), created.ID, persistence.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTrigger_HandleWebhook_SchemaPass(t *testing.T) {
	fixture := newTriggerFixture(t)

	workflow := chainWorkflow("/github")
	workflow.Nodes[0].Config["payload_schema"] = map[string]any{
		"type":     "object",
		"required": []any{"action"},
		"properties": map[string]any{
			"action": map[string]any{"type": "string"},
		},
	}

	_, err := fixture.workflows.Create(t.Context(), workflow)
	require.NoError(t, err)

	accepted, err := fixture.service.HandleWebhook(t.Context(), githubDelivery(`{"action": "opened"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, accepted.ExecutionID)
}
