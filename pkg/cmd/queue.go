package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hookflow/hookflow/pkg/queue"
	"github.com/hookflow/hookflow/pkg/queue/gochannel"
	"github.com/hookflow/hookflow/pkg/queue/kafka"
	"github.com/hookflow/hookflow/pkg/queue/redisq"
)

// NewJobQueue selects the queue transport. "kafka" uses the brokers from
// KAFKA_BROKERS, a redis:// URL uses the Redis list queue, and an empty
// provider falls back to the in-process gochannel transport, which only
// works when API and worker share one process.
func NewJobQueue(ctx context.Context, provider string, logger *slog.Logger, serviceName string) (queue.JobQueue, error) {
	switch {
	case provider == "" || provider == "gochannel":
		return gochannel.New(logger), nil
	case provider == "kafka":
		return kafka.New(logger, serviceName)
	case strings.HasPrefix(provider, "redis://") || strings.HasPrefix(provider, "rediss://"):
		return redisq.New(ctx, logger, provider)
	default:
		return nil, fmt.Errorf("unsupported queue provider %q", provider)
	}
}
