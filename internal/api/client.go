// Package api implements the authenticated request pipeline to the
// action backend. Every request carries the current access token; a 401
// triggers a single coordinated renewal shared by all concurrently
// failing requests, after which each request is retried exactly once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/user/ziactl/internal/session"
	"github.com/user/ziactl/internal/types"
)

const defaultTimeout = 15 * time.Second

// Client is the resilient request pipeline. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *session.Store

	// renew collapses concurrent renewal attempts into one call: every
	// request that hits a 401 while a renewal is in flight waits for
	// that renewal's single resolution instead of starting its own.
	renew singleflight.Group
}

// New creates a Client against baseURL using the given credential store.
func New(baseURL string, creds *session.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		creds: creds,
	}
}

// WithTimeout sets the per-request timeout and returns the client.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying *http.Client and returns the
// client. Used by tests to point at fakes.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Do sends one authenticated request and decodes the JSON response into
// out (which may be nil). On a 401 it renews the credential pair once
// and retries once; the retry is structural, so no request can loop.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	err := c.doOnce(ctx, method, path, body, out, c.creds.Access())
	if !errors.Is(err, ErrAuthorizationExpired) {
		return err
	}

	if c.creds.Refresh() == "" {
		// Nothing to renew with; the access token is simply bad.
		c.creds.Clear()
		return fmt.Errorf("%w: access rejected and no refresh token", ErrUnauthenticated)
	}

	if err := c.renewCredentials(ctx); err != nil {
		return err
	}
	return c.doOnce(ctx, method, path, body, out, c.creds.Access())
}

// renewCredentials performs the shared renewal. At most one renewal
// call is in flight system-wide; all callers observe the same result.
// On failure the pair is cleared and every caller gets
// ErrUnauthenticated.
func (c *Client) renewCredentials(ctx context.Context) error {
	_, err, _ := c.renew.Do("renew", func() (any, error) {
		refresh := c.creds.Refresh()
		if refresh == "" {
			return nil, fmt.Errorf("%w: no refresh token", ErrUnauthenticated)
		}

		slog.Debug("renewing access credential")
		var tok types.TokenResponse
		err := c.doOnce(ctx, http.MethodPost, "/auth/refresh",
			map[string]string{"refresh_token": refresh}, &tok, "")
		if err != nil {
			// A failed renewal ends the session: both tokens are
			// dropped together and every suspended request rejects.
			c.creds.Clear()
			slog.Warn("credential renewal failed", "error", err)
			return nil, fmt.Errorf("%w: renewal failed: %v", ErrUnauthenticated, err)
		}

		c.creds.Set(tok.AccessToken, tok.RefreshToken)
		slog.Debug("credential renewal succeeded")
		return nil, nil
	})
	return err
}

// doOnce performs a single HTTP round trip with the given access token
// and no retry behavior.
func (c *Client) doOnce(ctx context.Context, method, path string, body, out any, access string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", string(types.NewRequestID()))
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s", ErrAuthorizationExpired, method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Status:  resp.StatusCode,
			Message: readErrorMessage(resp.Body),
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readErrorMessage pulls a human-readable message out of an error body.
// The backend uses either {"detail": "..."} or {"error": "..."}.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Error
}
