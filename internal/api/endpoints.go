// internal/api/endpoints.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/user/ziactl/internal/types"
)

// Login authenticates with email and password and installs the returned
// credential pair. It bypasses the renewal machinery: a 401 here means
// bad credentials, not an expired session.
func (c *Client) Login(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	var tok types.TokenResponse
	err := c.doOnce(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &tok, "")
	if err != nil {
		if errors.Is(err, ErrAuthorizationExpired) {
			return nil, &StatusError{Status: http.StatusUnauthorized, Message: "invalid email or password"}
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	c.creds.Set(tok.AccessToken, tok.RefreshToken)
	return &tok, nil
}

// Register creates a new account. Does not log in.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (*types.User, error) {
	body := map[string]string{"email": email, "password": password}
	if displayName != "" {
		body["display_name"] = displayName
	}
	var user types.User
	if err := c.doOnce(ctx, http.MethodPost, "/auth/register", body, &user, ""); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &user, nil
}

// Renew forces a credential renewal without waiting for a 401. Shares
// the same single-flight path the pipeline uses, so a concurrent
// implicit renewal is never duplicated.
func (c *Client) Renew(ctx context.Context) error {
	return c.renewCredentials(ctx)
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	return &user, nil
}

// Logout tells the server to invalidate the session and clears the
// local pair. Server-side failure is logged but never surfaced: the
// local session ends either way.
func (c *Client) Logout(ctx context.Context) {
	if err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		slog.Debug("server logout failed", "error", err)
	}
	c.creds.Clear()
}

// Execute submits an action request.
func (c *Client) Execute(ctx context.Context, req types.ActionRequest) (*types.ActionResponse, error) {
	var resp types.ActionResponse
	if err := c.Do(ctx, http.MethodPost, "/actions/execute", req, &resp); err != nil {
		return nil, fmt.Errorf("execute action: %w", err)
	}
	return &resp, nil
}

// Confirm approves a pending risky action using its one-time token.
func (c *Client) Confirm(ctx context.Context, executionID, confirmationToken string) (*types.ActionResponse, error) {
	var resp types.ActionResponse
	err := c.Do(ctx, http.MethodPost, "/actions/confirm",
		map[string]string{"execution_id": executionID, "confirmation_token": confirmationToken}, &resp)
	if err != nil {
		if isConfirmationExpired(err) {
			return nil, fmt.Errorf("%w: execution %s", ErrConfirmationExpired, executionID)
		}
		return nil, fmt.Errorf("confirm action: %w", err)
	}
	return &resp, nil
}

// Reject declines a pending risky action.
func (c *Client) Reject(ctx context.Context, executionID, reason string) error {
	body := map[string]string{"execution_id": executionID}
	if reason != "" {
		body["reason"] = reason
	}
	if err := c.Do(ctx, http.MethodPost, "/actions/reject", body, nil); err != nil {
		if isConfirmationExpired(err) {
			return fmt.Errorf("%w: execution %s", ErrConfirmationExpired, executionID)
		}
		return fmt.Errorf("reject action: %w", err)
	}
	return nil
}

// History returns one page of the server-side action history.
func (c *Client) History(ctx context.Context, page, perPage int) (*types.HistoryPage, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("per_page", fmt.Sprint(perPage))
	var out types.HistoryPage
	if err := c.Do(ctx, http.MethodGet, "/actions/history?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return &out, nil
}

// Pending returns actions still awaiting confirmation server-side.
func (c *Client) Pending(ctx context.Context) ([]types.FeedEntry, error) {
	var out struct {
		Items []types.FeedEntry `json:"items"`
	}
	if err := c.Do(ctx, http.MethodGet, "/actions/pending", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch pending actions: %w", err)
	}
	return out.Items, nil
}

// isConfirmationExpired recognizes the server's refusal of a lapsed
/// confirmation token: 410 Gone, or a 400/409 whose message mentions
// expiry.
func isConfirmationExpired(err error) bool {
	switch statusOf(err) {
	case http.StatusGone:
		return true
	case http.StatusBadRequest, http.StatusConflict:
		var se *StatusError
		if errors.As(err, &se) {
			return strings.Contains(strings.ToLower(se.Message), "expired")
		}
	}
	return false
}
