// Package api wraps the catalog REST API's request/response cycle: bearer
// token attachment, uniform envelope validation and the optional CSRF token
// handshake. It performs no recovery of its own beyond the single CSRF retry;
// failed requests surface to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	csrfHeader      = "X-CSRF-Token"
	defaultTimeout  = 30 * time.Second
	contentTypeJSON = "application/json"
)

// TokenSource supplies the bearer credential attached to outgoing requests.
// An empty token means no Authorization header is sent.
type TokenSource interface {
	Token() string
}

// Client issues requests against a single API base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	csrf       *csrfGuard // nil when the CSRF capability is disabled
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTokenSource sets the bearer credential source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithCSRF enables CSRF token handling. initPath is a harmless GET endpoint
// whose response carries a fresh token in the X-CSRF-Token header.
func WithCSRF(initPath string) Option {
	return func(c *Client) { c.csrf = newCSRFGuard(initPath) }
}

// New creates a Client for the given base URL (scheme://host, no trailing
// slash required).
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do performs a request and enforces the envelope contract. A transport
// failure or a failed envelope (non-2xx status or explicit success:false)
// returns a non-nil error; the envelope is returned only on success.
//
// When CSRF handling is enabled and the server reports a CSRF-specific
// failure, the token is refreshed and the request retried exactly once.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Envelope, error) {
	retried := false
	for {
		env, status, err := c.roundTrip(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if status >= 200 && status < 300 && !env.Failed() {
			return env, nil
		}

		reqErr := &RequestError{Status: status, Message: env.FailureMessage(status)}
		if env.Error != nil {
			reqErr.Code = env.Error.Code
		}

		if c.csrf != nil && !retried && isCSRFFailure(status, env) {
			retried = true
			if err := c.csrf.refresh(ctx, c); err == nil {
				log.Debug().Str("method", method).Str("path", path).Msg("retrying request with refreshed CSRF token")
				continue
			}
		}
		return nil, reqErr
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Envelope, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// roundTrip performs one HTTP exchange and decodes the envelope. Only
// transport-level problems produce an error here; status handling is Do's job.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (*Envelope, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, errors.Wrap(err, "[Client.roundTrip] marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[Client.roundTrip] build request")
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if c.csrf != nil && isStateChanging(method) {
		if token := c.csrf.current(); token != "" {
			req.Header.Set(csrfHeader, token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[Client.roundTrip] request failed")
	}
	defer resp.Body.Close()

	// The server may rotate the CSRF token on any response.
	if c.csrf != nil {
		c.csrf.capture(resp.Header.Get(csrfHeader))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[Client.roundTrip] read response body")
	}

	env := &Envelope{Raw: raw}
	if len(raw) > 0 {
		// A body that is not a valid envelope on a failed status still yields
		// a usable generic message, so the decode error only matters on
		// nominally successful responses.
		if err := json.Unmarshal(raw, env); err != nil && resp.StatusCode < 300 {
			return nil, 0, errors.Wrap(err, "[Client.roundTrip] decode response envelope")
		}
	}
	return env, resp.StatusCode, nil
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
