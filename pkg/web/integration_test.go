//go:build integration

package web_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hookflow/hookflow/pkg/dispatch"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/otelhelper"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/persistence/postgresql"
	"github.com/hookflow/hookflow/pkg/plan"
	"github.com/hookflow/hookflow/pkg/queue/gochannel"
	"github.com/hookflow/hookflow/pkg/runner"
	"github.com/hookflow/hookflow/pkg/services"
	"github.com/hookflow/hookflow/pkg/web"
)

func setupTestDB(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_hookflow",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbURL := fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_hookflow?sslmode=disable", host, port.Port())

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return dbURL, cleanup
}

// setupIntegrationApp wires the full stack against PostgreSQL: handlers,
// dispatcher, queue and a consuming runner, exactly like a single-process
// deployment of the API plus one worker.
func setupIntegrationApp(t *testing.T, dbURL string) (*fiber.App, persistence.Persistence) {
	t.Helper()

	store, err := postgresql.NewPersistence(context.Background(), testLogger(), dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	jobs := gochannel.New(testLogger())
	t.Cleanup(func() { _ = jobs.Close() })

	worker := runner.NewRunner(store.ExecutionRepository(), plan.Executors(testLogger()), testLogger(), otelhelper.NewNoopTracer(), "worker-integration")
	require.NoError(t, jobs.Handle(worker.Run))
	require.NoError(t, jobs.Subscribe(t.Context()))

	dispatcher := dispatch.NewDispatcher(store.ExecutionRepository(), jobs, testLogger(), otelhelper.NewNoopTracer())

	workflowService := services.NewWorkflow(store)
	executionService := services.NewExecution(store)
	triggerService := services.NewTrigger(store.WorkflowRepository(), dispatcher, testLogger())

	handlers := web.NewAPIHandlers(
		workflowService,
		executionService,
		triggerService,
		jobs,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	app.Post("/webhook/*", handlers.HandleWebhook)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.PutWorkflow)
	w.Patch("/:id/status", handlers.PatchWorkflowStatus)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/executions", handlers.ListWorkflowExecutions)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Delete("/", handlers.PurgeExecutions)

	return app, store
}

func TestWorkflowCRUD_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbURL, cleanup := setupTestDB(t)
	defer cleanup()

	app, _ := setupIntegrationApp(t, dbURL)
	fixture := &apiFixture{app: app}

	createReq := web.CreateWorkflowRequest{
		Name:        "Integration Test Workflow",
		Description: "Round-trips the definition through PostgreSQL",
		Owner:       "integration",
		Metadata:    map[string]any{"category": "test"},
		Nodes:       validNodes(),
	}

	resp := fixture.request(t, http.MethodPost, "/workflows", createReq)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow

	require.NoError(t, json.Unmarshal(readBody(t, resp), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusActive, created.Status)
	assert.Equal(t, "/github", created.WebhookPath)
	assert.Equal(t, "test", created.Metadata["category"])
	assert.NotZero(t, created.CreatedAt)

	t.Run("Get Workflow", func(t *testing.T) {
		resp := fixture.request(t, http.MethodGet, "/workflows/"+created.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var fetched models.Workflow

		require.NoError(t, json.Unmarshal(readBody(t, resp), &fetched))
		assert.Equal(t, created.ID, fetched.ID)
		require.Len(t, fetched.Nodes, 2)
		assert.Equal(t, models.NodeKindTrigger, fetched.Nodes[0].Kind)
	})

	t.Run("Replace Definition", func(t *testing.T) {
		replacement := createReq
		replacement.Name = "Renamed Integration Workflow"

		resp := fixture.request(t, http.MethodPut, "/workflows/"+created.ID, replacement)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated models.Workflow

		require.NoError(t, json.Unmarshal(readBody(t, resp), &updated))
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Renamed Integration Workflow", updated.Name)
		assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, time.Second)
	})

	t.Run("Set Status", func(t *testing.T) {
		resp := fixture.request(t, http.MethodPatch, "/workflows/"+created.ID+"/status", web.UpdateStatusRequest{Status: "inactive"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated models.Workflow

		require.NoError(t, json.Unmarshal(readBody(t, resp), &updated))
		assert.Equal(t, models.WorkflowStatusInactive, updated.Status)
	})

	t.Run("List Workflows", func(t *testing.T) {
		resp := fixture.request(t, http.MethodGet, "/workflows", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := readJSON(t, resp)
		assert.EqualValues(t, 1, result["count"])
	})

	t.Run("Delete Workflow", func(t *testing.T) {
		resp := fixture.request(t, http.MethodDelete, "/workflows/"+created.ID, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		_ = readBody(t, resp)

		resp = fixture.request(t, http.MethodGet, "/workflows/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestWebhookExecution_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbURL, cleanup := setupTestDB(t)
	defer cleanup()

	app, store := setupIntegrationApp(t, dbURL)
	fixture := &apiFixture{app: app, store: store}

	received := make(chan string, 4)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer target.Close()

	createReq := web.CreateWorkflowRequest{
		Name: "GitHub to Chat",
		Nodes: []web.NodeRequest{
			{ID: "hook", Kind: "trigger", Config: map[string]any{"path": "/github"}},
			{ID: "gate", Kind: "filter", Config: map[string]any{
				"conditions": []any{
					map[string]any{
						"field":    "{{hook.body.action}}",
						"operator": "equals",
						"value":    "opened",
						"type":     "string",
					},
				},
			}},
			{ID: "notify", Kind: "http_action", Config: map[string]any{
				"url":    target.URL,
				"method": "post",
				"body":   `{"text": "PR #{{hook.body.number}} opened"}`,
			}},
		},
	}

	resp := fixture.request(t, http.MethodPost, "/workflows", createReq)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow

	require.NoError(t, json.Unmarshal(readBody(t, resp), &created))

	waitTerminal := func(executionID string) map[string]any {
		var record map[string]any

		require.Eventually(t, func() bool {
			resp := fixture.request(t, http.MethodGet, "/executions/"+executionID, nil)
			if resp.StatusCode != http.StatusOK {
				_ = readBody(t, resp)

				return false
			}

			record = readJSON(t, resp)
			status, _ := record["status"].(string)

			return status != "running"
		}, 10*time.Second, 100*time.Millisecond)

		return record
	}

	t.Run("Matching Delivery Runs The Chain", func(t *testing.T) {
		resp := fixture.request(t, http.MethodPost, "/webhook/github", `{"action": "opened", "number": 42}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		accepted := readJSON(t, resp)
		executionID, _ := accepted["execution_id"].(string)
		require.NotEmpty(t, executionID)

		record := waitTerminal(executionID)
		assert.Equal(t, "success", record["status"])

		result, ok := record["result"].(map[string]any)
		require.True(t, ok)

		notify, ok := result["notify"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, http.StatusOK, notify["status"])

		select {
		case body := <-received:
			assert.JSONEq(t, `{"text": "PR #42 opened"}`, body)
		case <-time.After(5 * time.Second):
			t.Fatal("target server never received the notification")
		}
	})

	t.Run("Filtered Delivery Halts Before The Action", func(t *testing.T) {
		resp := fixture.request(t, http.MethodPost, "/webhook/github", `{"action": "closed", "number": 43}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		accepted := readJSON(t, resp)
		executionID, _ := accepted["execution_id"].(string)
		require.NotEmpty(t, executionID)

		record := waitTerminal(executionID)
		assert.Equal(t, "success", record["status"])

		result, ok := record["result"].(map[string]any)
		require.True(t, ok)
		assert.NotContains(t, result, "notify")
		assert.Empty(t, received)
	})

	t.Run("Executions Are Listed Newest First", func(t *testing.T) {
		resp := fixture.request(t, http.MethodGet, "/workflows/"+created.ID+"/executions", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := readJSON(t, resp)
		assert.EqualValues(t, 2, result["count"])
	})
}

func TestExecutionRetention_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbURL, cleanup := setupTestDB(t)
	defer cleanup()

	app, store := setupIntegrationApp(t, dbURL)
	fixture := &apiFixture{app: app, store: store}

	now := time.Now().UTC()
	old := seedExecution(t, store, "wf-retention", models.ExecutionStatusSuccess, now.AddDate(0, 0, -45))
	recent := seedExecution(t, store, "wf-retention", models.ExecutionStatusFailed, now.AddDate(0, 0, -5))

	t.Run("Dry Run", func(t *testing.T) {
		resp := fixture.request(t, http.MethodDelete, "/executions?before_days=30&dry_run=true", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := readJSON(t, resp)
		assert.EqualValues(t, 1, result["deleted"])

		_, err := store.ExecutionRepository().GetByID(context.Background(), old.ID)
		require.NoError(t, err)
	})

	t.Run("Purge", func(t *testing.T) {
		resp := fixture.request(t, http.MethodDelete, "/executions?before_days=30", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := readJSON(t, resp)
		assert.EqualValues(t, 1, result["deleted"])

		_, err := store.ExecutionRepository().GetByID(context.Background(), old.ID)
		require.Error(t, err)
		_, err = store.ExecutionRepository().GetByID(context.Background(), recent.ID)
		require.NoError(t, err)
	})
}
