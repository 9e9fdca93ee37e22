// Package apiclient talks to the storefront REST API on behalf of one
// session. Every request carries the session's bearer token; a 401 response
// deletes it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront-cart-service/internal/kvstore"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const DefaultTimeout = 10 * time.Second

// StatusError is returned for every non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      kvstore.Store
}

// New creates a client for baseURL reading the bearer token from creds.
func New(baseURL string, timeout time.Duration, creds kvstore.Store) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
	}
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	header http.Header
}

// do sends req and decodes the data field of the response into out.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return errors.Wrap(err, "could not marshal request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.header {
		httpReq.Header[k] = v
	}

	token, ok, err := c.creds.Get(ctx, kvstore.KeyToken)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read token from credential store")
	} else if ok && token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Error().Err(err).Msgf("Error calling %s %s", req.method, target)
		return errors.Wrapf(err, "cannot connect to server at %s", c.baseURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "could not read response")
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			if err := c.creds.Delete(ctx, kvstore.KeyToken); err != nil {
				logger.Error().Err(err).Msg("Error deleting token after 401")
			}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "could not decode %s %s response", req.method, req.path)
	}
	return nil
}
