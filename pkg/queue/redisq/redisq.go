// Package redisq provides a Redis list-backed job queue.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/hookflow/hookflow/pkg/queue"
)

const popTimeout = 1 * time.Second

// Queue is a FIFO job queue on a single Redis list: RPush to enqueue,
// BLPop to consume. A failed job is pushed back to the head of the list so
// it keeps its place in line.
type Queue struct {
	client    redis.UniversalClient
	logger    *slog.Logger
	handler   queue.JobHandler
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New connects to Redis using a redis:// URL and verifies the connection.
func New(ctx context.Context, logger *slog.Logger, redisURL string) (queue.JobQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Queue{
		client: client,
		logger: logger.With("module", "queue", "provider", "redis"),
		stopCh: make(chan struct{}),
	}, nil
}

func (q *Queue) GenerateID() string {
	return uuid.NewString()
}

func (q *Queue) Enqueue(ctx context.Context, job *queue.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	err = q.client.RPush(ctx, queue.Topic, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}

	return nil
}

func (q *Queue) Handle(handler queue.JobHandler) error {
	q.handler = handler

	return nil
}

func (q *Queue) Subscribe(ctx context.Context) error {
	if q.handler == nil {
		return queue.ErrNoHandler
	}

	q.wg.Add(1)

	go q.consume(ctx)

	return nil
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()

	q.logger.InfoContext(ctx, "Starting queue consumer", "queue", queue.Topic)

	for {
		select {
		case <-q.stopCh:
			q.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			q.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := q.processMessage(ctx)
			if err != nil {
				q.logger.ErrorContext(ctx, "Error processing job", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (q *Queue) processMessage(ctx context.Context) error {
	result, err := q.client.BLPop(ctx, popTimeout, queue.Topic).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop job from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	payload := result[1]

	job := &queue.Job{}

	err = json.Unmarshal([]byte(payload), job)
	if err != nil {
		// A payload that cannot decode will never decode; pushing it back
		// would wedge the queue.
		q.logger.ErrorContext(ctx, "Dropping undecodable job payload", "error", err)

		return nil
	}

	err = q.handler(ctx, job)
	if err != nil {
		pushErr := q.client.LPush(ctx, queue.Topic, payload).Err()
		if pushErr != nil {
			return fmt.Errorf("handler failed (%w) and job could not be requeued: %w", err, pushErr)
		}

		return fmt.Errorf("job %s requeued after handler error: %w", job.ID, err)
	}

	return nil
}

func (q *Queue) Info(ctx context.Context) (queue.QueueInfo, error) {
	depth, err := q.client.LLen(ctx, queue.Topic).Result()
	if err != nil {
		return queue.QueueInfo{}, fmt.Errorf("failed to read queue length: %w", err)
	}

	return queue.QueueInfo{Provider: "redis", Depth: depth}, nil
}

func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.stopCh)
	})

	q.wg.Wait()

	return q.client.Close()
}
