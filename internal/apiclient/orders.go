package apiclient

import (
	"context"
	"net/http"

	"storefront-cart-service/internal/entity"
)

// CreateOrder places an order --> POST /orders
// The idempotency key is sent as the Idempotent-Key header when set.
func (c *Client) CreateOrder(ctx context.Context, order entity.OrderRequest, idempotencyKey string) (*entity.Order, error) {
	req := request{method: http.MethodPost, path: "/orders", body: order}
	if idempotencyKey != "" {
		req.header = http.Header{"Idempotent-Key": []string{idempotencyKey}}
	}

	var created entity.Order
	if err := c.do(ctx, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListOrders --> GET /orders
func (c *Client) ListOrders(ctx context.Context) ([]entity.Order, error) {
	var orders []entity.Order
	err := c.do(ctx, request{method: http.MethodGet, path: "/orders"}, &orders)
	return orders, err
}
