package config

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// publishBatchTimeout bounds how long a single WriteMessages call waits for a
// batch to fill. Events are written one at a time from request handlers.
const publishBatchTimeout = 10 * time.Millisecond

// NewKafkaWriter returns nil when no brokers are configured.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if len(brokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // one partition per session key
		BatchTimeout:           publishBatchTimeout,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaReader returns nil when no brokers are configured.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	if len(brokers) == 0 {
		return nil
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}
