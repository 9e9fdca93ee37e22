package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/pricing"
)

// ErrInvalidProduct is returned for products whose discount tiers fail validation.
var ErrInvalidProduct = errors.New("invalid product data")

// GetProduct fetches a product by id --> GET /products/:id
func (c *Client) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products/" + url.PathEscape(id)}, &product); err != nil {
		return nil, err
	}
	if err := checkProduct(product); err != nil {
		return nil, err
	}
	return &product, nil
}

// SearchProducts lists products matching q --> GET /products
// Products with invalid tier data are dropped from the result.
func (c *Client) SearchProducts(ctx context.Context, q entity.ProductQuery) ([]entity.Product, error) {
	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("search", q.Search)
	set("category", q.Category)
	set("minPrice", q.MinPrice)
	set("maxPrice", q.MaxPrice)
	set("sort", q.Sort)
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var products []entity.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products", query: params}, &products); err != nil {
		return nil, err
	}

	valid := products[:0]
	for _, product := range products {
		if err := checkProduct(product); err != nil {
			continue
		}
		valid = append(valid, product)
	}
	return valid, nil
}

// ListCategories --> GET /products/categories/list
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/categories/list"}, &categories)
	return categories, err
}

func checkProduct(product entity.Product) error {
	if err := pricing.ValidateTiers(product.DiscountTiers); err != nil {
		logger.Warn().Err(err).Msgf("Rejecting product %s with invalid discount tiers", product.ID)
		return errors.Wrapf(ErrInvalidProduct, "product %s: %v", product.ID, err)
	}
	return nil
}
