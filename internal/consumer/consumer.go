// Package consumer applies catalog product events to the live carts.
package consumer

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/pricing"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// ProductRefresher pushes catalog data into the carts holding a product.
type ProductRefresher interface {
	RefreshProduct(product entity.Product) int
}

type Consumer struct {
	reader    MessageReader
	refresher ProductRefresher
}

func NewConsumer(reader MessageReader, refresher ProductRefresher) *Consumer {
	return &Consumer{reader: reader, refresher: refresher}
}

// Run reads product events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Error reading product event")
			continue
		}

		if err := c.processMessage(msg); err != nil {
			logger.Error().Err(err).Msgf("Skipping product event %s", msg.Key)
		}
	}
}

// processMessage handles keys of the form "product.<updated|deleted>.<id>".
func (c *Consumer) processMessage(msg kafka.Message) error {
	parts := strings.SplitN(string(msg.Key), ".", 3)
	if len(parts) != 3 || parts[0] != "product" {
		return errors.Errorf("unexpected key %q", msg.Key)
	}
	eventType, id := parts[1], parts[2]

	switch eventType {
	case "updated":
		var product entity.Product
		if err := json.Unmarshal(msg.Value, &product); err != nil {
			return errors.Wrap(err, "could not unmarshal product")
		}
		if product.ID != id {
			return errors.Errorf("key id %s does not match product %s", id, product.ID)
		}
		if err := pricing.ValidateTiers(product.DiscountTiers); err != nil {
			return err
		}
		changed := c.refresher.RefreshProduct(product)
		logger.Info().Msgf("Product %s updated in %d carts", id, changed)
	case "deleted":
		// zero stock drops the line from every cart
		changed := c.refresher.RefreshProduct(entity.Product{ID: id})
		logger.Info().Msgf("Product %s removed from %d carts", id, changed)
	default:
		return errors.Errorf("unknown product event %q", eventType)
	}
	return nil
}
