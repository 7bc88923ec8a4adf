// Package gochannel provides an in-memory job queue for development and tests.
package gochannel

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/hookflow/hookflow/pkg/queue"
)

// New creates an in-memory job queue. Jobs are lost on restart, which is
// fine for local development and single-process setups.
func New(logger *slog.Logger) queue.JobQueue {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 1000,
		},
		watermill.NewSlogLogger(logger),
	)

	return queue.NewWatermillJobQueue(pubSub, pubSub, "gochannel", logger)
}

// NewTest creates a queue tuned for deterministic tests: messages persist
// until consumed and Enqueue blocks until the subscriber acks.
func NewTest(logger *slog.Logger) queue.JobQueue {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewSlogLogger(logger),
	)

	return queue.NewWatermillJobQueue(pubSub, pubSub, "gochannel", logger)
}
