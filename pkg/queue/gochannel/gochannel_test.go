package gochannel_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/queue"
	"github.com/hookflow/hookflow/pkg/queue/gochannel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testJob(q queue.JobQueue) *queue.Job {
	return &queue.Job{
		ID:          q.GenerateID(),
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Plan: &models.ExecutionPlan{
			WorkflowID: "wf-1",
			Nodes: []*models.PlanNode{
				{
					ID:      "hook",
					Kind:    models.NodeKindTrigger,
					Trigger: &models.TriggerConfig{Path: "/github"},
				},
				{
					ID:   "notify",
					Kind: models.NodeKindHTTPAction,
					HTTP: &models.HTTPConfig{URL: "https://example.com", Method: "POST", TimeoutSeconds: 30},
				},
			},
		},
		Payload:    map[string]any{"action": "opened"},
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestEnqueueDeliversToHandler(t *testing.T) {
	t.Parallel()

	q := gochannel.NewTest(testLogger())
	ctx := context.Background()

	received := make(chan *queue.Job, 1)

	require.NoError(t, q.Handle(func(_ context.Context, job *queue.Job) error {
		received <- job

		return nil
	}))
	require.NoError(t, q.Subscribe(ctx))

	require.NoError(t, q.Enqueue(ctx, testJob(q)))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "opened", got.Payload["action"])
		require.NotNil(t, got.Plan)
		require.Len(t, got.Plan.Nodes, 2)
		assert.Equal(t, "/github", got.Plan.Nodes[0].Trigger.Path)
		assert.Equal(t, "POST", got.Plan.Nodes[1].HTTP.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}

	require.NoError(t, q.Close())
}

func TestSubscribeRequiresHandler(t *testing.T) {
	t.Parallel()

	q := gochannel.New(testLogger())

	err := q.Subscribe(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrNoHandler)
}

func TestHandlerErrorRequeues(t *testing.T) {
	t.Parallel()

	q := gochannel.NewTest(testLogger())
	ctx := context.Background()

	var attempts atomic.Int32

	require.NoError(t, q.Handle(func(_ context.Context, _ *queue.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient failure")
		}

		return nil
	}))
	require.NoError(t, q.Subscribe(ctx))

	// Enqueue blocks until the subscriber acks, so the retry has happened
	// by the time it returns.
	require.NoError(t, q.Enqueue(ctx, testJob(q)))

	assert.Equal(t, int32(2), attempts.Load())

	require.NoError(t, q.Close())
}

func TestInfoReportsUnknownDepth(t *testing.T) {
	t.Parallel()

	q := gochannel.New(testLogger())

	info, err := q.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gochannel", info.Provider)
	assert.Equal(t, int64(-1), info.Depth)
}

func TestGenerateID(t *testing.T) {
	t.Parallel()

	q := gochannel.New(testLogger())

	first := q.GenerateID()
	second := q.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
