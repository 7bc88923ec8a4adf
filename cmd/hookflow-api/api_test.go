package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookflow/hookflow/pkg/otelhelper"
	"github.com/hookflow/hookflow/pkg/persistence/file"
	"github.com/hookflow/hookflow/pkg/queue/gochannel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	jobs := gochannel.New(testLogger())
	t.Cleanup(func() { _ = jobs.Close() })

	api := NewAPI(testLogger(), store, jobs, otelhelper.NewNoopTracer())

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "HookFlow API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var result struct {
		Workflows []any `json:"workflows"`
		Count     int   `json:"count"`
	}

	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Empty(t, result.Workflows)
	assert.Zero(t, result.Count)
}

func TestAPI_CreateAndDeliver(t *testing.T) {
	app := setupTestApp(t)

	definition := `{
		"name": "GitHub to Slack",
		"nodes": [
			{"id": "hook", "kind": "trigger", "config": {"path": "/github"}},
			{"id": "notify", "kind": "http_action", "config": {"url": "https://hooks.slack.com/services/T0/B0/XX", "method": "post"}}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader(definition))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(`{"action": "opened"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestAPI_QueueInfo(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/queue/info", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var info struct {
		Provider string `json:"provider"`
		Depth    int64  `json:"depth"`
	}

	err = json.NewDecoder(resp.Body).Decode(&info)
	require.NoError(t, err)
	assert.Equal(t, "gochannel", info.Provider)
	assert.EqualValues(t, -1, info.Depth)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
