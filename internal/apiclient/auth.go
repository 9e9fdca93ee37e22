package apiclient

import (
	"context"
	"net/http"

	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/kvstore"
)

// Login authenticates and stores the issued token --> POST /auth/login
func (c *Client) Login(ctx context.Context, email, password string) (*entity.User, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/auth/login", body)
}

// Register creates an account and stores the issued token --> POST /auth/register
func (c *Client) Register(ctx context.Context, name, email, password string) (*entity.User, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.authenticate(ctx, "/auth/register", body)
}

// Me returns the user the stored token belongs to --> GET /auth/me
func (c *Client) Me(ctx context.Context) (*entity.User, error) {
	var user entity.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout forgets the stored token.
func (c *Client) Logout(ctx context.Context) error {
	return c.creds.Delete(ctx, kvstore.KeyToken)
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*entity.User, error) {
	var result entity.AuthResult
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}, &result); err != nil {
		return nil, err
	}
	if err := c.creds.Set(ctx, kvstore.KeyToken, result.Token); err != nil {
		return nil, err
	}
	return &result.User, nil
}
