package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"storefront-cart-service/internal/entity"
)

func (c *Client) ListReviews(ctx context.Context, productID string) (*entity.ProductReviews, error) {
	var reviews entity.ProductReviews
	if err := c.do(ctx, request{method: http.MethodGet, path: "/reviews/product/" + url.PathEscape(productID)}, &reviews); err != nil {
		return nil, err
	}
	return &reviews, nil
}

// CreateReview submits or replaces the user's review of a product.
func (c *Client) CreateReview(ctx context.Context, productID string, rating int, comment string) (*entity.Review, error) {
	body := entity.Review{Product: productID, Rating: rating, Comment: comment}
	var review entity.Review
	if err := c.do(ctx, request{method: http.MethodPost, path: "/reviews", body: body}, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

func (c *Client) DeleteReview(ctx context.Context, reviewID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/reviews/" + url.PathEscape(reviewID)}, nil)
}
