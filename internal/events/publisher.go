// Package events publishes cart and order events to kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"storefront-cart-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	CartUpdated = "updated"
	OrderPlaced = "order-placed"
)

type Event struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id"`
	OrderID    string            `json:"order_id,omitempty"`
	Items      []entity.LineItem `json:"items"`
	Totals     entity.Totals     `json:"totals"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish writes event keyed cart-<type>-<session>.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}

	// cart-updated-<session> or cart-order-placed-<session>
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("cart-%s-%s", event.Type, event.SessionID)),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for session %s", event.Type, event.SessionID)
		return errors.Wrap(err, "could not publish event")
	}
	return nil
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
