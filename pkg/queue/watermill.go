package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// WatermillJobQueue adapts a watermill publisher/subscriber pair to the
// JobQueue interface. The kafka and gochannel providers build on it.
type WatermillJobQueue struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	provider   string
	logger     *slog.Logger
	handler    JobHandler
}

func NewWatermillJobQueue(pub message.Publisher, sub message.Subscriber, provider string, logger *slog.Logger) *WatermillJobQueue {
	return &WatermillJobQueue{
		publisher:  pub,
		subscriber: sub,
		provider:   provider,
		logger:     logger.With("module", "queue", "provider", provider),
	}
}

func (q *WatermillJobQueue) GenerateID() string {
	return watermill.NewULID()
}

func (q *WatermillJobQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	msg := message.NewMessage("msg-"+q.GenerateID(), payload)
	msg.Metadata.Set("job_id", job.ID)
	msg.Metadata.Set("execution_id", job.ExecutionID)

	err = q.publisher.Publish(Topic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

func (q *WatermillJobQueue) Handle(handler JobHandler) error {
	q.handler = handler

	return nil
}

func (q *WatermillJobQueue) Subscribe(ctx context.Context) error {
	if q.handler == nil {
		return ErrNoHandler
	}

	messages, err := q.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	go func() {
		for msg := range messages {
			job := &Job{}

			err := json.Unmarshal(msg.Payload, job)
			if err != nil {
				// A message that cannot decode will never decode; requeueing
				// it would wedge the queue.
				q.logger.ErrorContext(ctx, "Dropping undecodable job message", "message_id", msg.UUID, "error", err)
				msg.Ack()

				continue
			}

			err = q.handler(ctx, job)
			if err != nil {
				q.logger.ErrorContext(ctx, "Job handler failed, requeueing", "job_id", job.ID, "execution_id", job.ExecutionID, "error", err)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (q *WatermillJobQueue) Info(_ context.Context) (QueueInfo, error) {
	return QueueInfo{Provider: q.provider, Depth: -1}, nil
}

func (q *WatermillJobQueue) Close() error {
	err := q.publisher.Close()
	if err != nil {
		return err
	}

	return q.subscriber.Close()
}
