package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"storefront-cart-service/internal/entity"
)

func (c *Client) GetWishlist(ctx context.Context) ([]entity.Product, error) {
	var products []entity.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/wishlist"}, &products)
	return products, err
}

func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	body := map[string]string{"productId": productID}
	return c.do(ctx, request{method: http.MethodPost, path: "/wishlist", body: body}, nil)
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/wishlist/" + url.PathEscape(productID)}, nil)
}
