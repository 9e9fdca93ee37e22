// Package checkout turns a session's cart into an upstream order.
package checkout

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-cart-service/internal/cart"
	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/events"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidPaymentMethod = errors.New("payment method must be COD or ONLINE")
	ErrMissingAddress       = errors.New("please select a shipping address")
)

// DefaultCODFee is charged on cash-on-delivery orders.
var DefaultCODFee = decimal.NewFromInt(100)

// OrderCreator places orders upstream.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order entity.OrderRequest, idempotencyKey string) (*entity.Order, error)
}

type Service struct {
	codFee    decimal.Decimal
	publisher events.Publisher
	newKey    func() string
}

func NewService(codFee decimal.Decimal, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		codFee:    codFee,
		publisher: publisher,
		newKey:    func() string { return uuid.NewString() },
	}
}

// Summary computes subtotal, shipping fee and total for method.
func (s *Service) Summary(c *cart.Store, method entity.PaymentMethod) (entity.CheckoutSummary, error) {
	fee, err := s.shippingFee(method)
	if err != nil {
		return entity.CheckoutSummary{}, err
	}
	subtotal := c.Totals().Subtotal
	return entity.CheckoutSummary{
		Subtotal:      subtotal,
		ShippingFee:   fee,
		Total:         subtotal.Add(fee),
		PaymentMethod: method,
	}, nil
}

// PlaceOrder submits the cart as an order and removes the ordered units once
// the API accepted it.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, c *cart.Store, api OrderCreator, address *entity.Address, method entity.PaymentMethod) (*entity.Order, error) {
	if _, err := s.shippingFee(method); err != nil {
		return nil, err
	}
	if address == nil {
		return nil, ErrMissingAddress
	}

	items := c.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	totals := c.Totals()

	req := entity.OrderRequest{
		Items:           make([]entity.OrderItemRequest, 0, len(items)),
		ShippingAddress: address.Shipping(),
		PaymentMethod:   method,
	}
	for _, item := range items {
		req.Items = append(req.Items, entity.OrderItemRequest{Product: item.Product.ID, Quantity: item.Quantity})
	}

	order, err := api.CreateOrder(ctx, req, s.newKey())
	if err != nil {
		logger.Error().Err(err).Msgf("Error placing order for session %s", sessionID)
		return nil, err
	}

	c.Deduct(items)

	err = s.publisher.Publish(ctx, events.Event{
		Type:      events.OrderPlaced,
		SessionID: sessionID,
		OrderID:   order.ID,
		Items:     items,
		Totals:    totals,
	})
	if err != nil {
		logger.Warn().Err(err).Msgf("Order %s placed but event was not published", order.ID)
	}

	return order, nil
}

func (s *Service) shippingFee(method entity.PaymentMethod) (decimal.Decimal, error) {
	switch method {
	case entity.PaymentCOD:
		return s.codFee, nil
	case entity.PaymentOnline:
		return decimal.Zero, nil
	default:
		return decimal.Zero, errors.Wrapf(ErrInvalidPaymentMethod, "got %q", method)
	}
}
