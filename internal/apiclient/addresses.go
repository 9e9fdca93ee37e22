package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"storefront-cart-service/internal/entity"
)

func (c *Client) ListAddresses(ctx context.Context) ([]entity.Address, error) {
	var addresses []entity.Address
	err := c.do(ctx, request{method: http.MethodGet, path: "/addresses"}, &addresses)
	return addresses, err
}

func (c *Client) CreateAddress(ctx context.Context, address entity.Address) (*entity.Address, error) {
	var created entity.Address
	if err := c.do(ctx, request{method: http.MethodPost, path: "/addresses", body: address}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id string, address entity.Address) (*entity.Address, error) {
	var updated entity.Address
	if err := c.do(ctx, request{method: http.MethodPut, path: "/addresses/" + url.PathEscape(id), body: address}, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) SetDefaultAddress(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/addresses/" + url.PathEscape(id) + "/default"}, nil)
}

func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/addresses/" + url.PathEscape(id)}, nil)
}

// DefaultAddress returns the address flagged default, else the first one.
func (c *Client) DefaultAddress(ctx context.Context) (*entity.Address, error) {
	addresses, err := c.ListAddresses(ctx)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, nil
	}
	for i := range addresses {
		if addresses[i].IsDefault {
			return &addresses[i], nil
		}
	}
	return &addresses[0], nil
}
