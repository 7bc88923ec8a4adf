// Package kafka provides a Kafka-backed job queue.
package kafka

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"

	"github.com/hookflow/hookflow/pkg/queue"
)

// New creates a Kafka job queue reading brokers from KAFKA_BROKERS. The
// consumer group is derived from the service name so every worker fleet
// shares one group and each job is delivered to a single worker.
func New(logger *slog.Logger, serviceName string) (queue.JobQueue, error) {
	brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New("KAFKA_BROKERS environment variable is not set or empty")
	}

	wmLogger := watermill.NewSlogLogger(logger)

	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         "cg-" + serviceName,
			OTELEnabled:           true,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           true,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	return queue.NewWatermillJobQueue(publisher, subscriber, "kafka", logger), nil
}
