// internal/types/models.go
package types

import (
	"time"
)

// TokenResponse is returned by login and renewal.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// User is the authenticated account as reported by the server.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// ActionRequest asks the server to execute an action. Either InputText
// (free-form, interpreted server-side) or ActionType+Params (structured)
// is set.
type ActionRequest struct {
	InputText  string         `json:"input_text,omitempty"`
	ActionType string         `json:"action_type,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Source     ActionSource   `json:"source"`
}

// ActionPreview describes what a risky action would do, shown to the
// user before they confirm it.
type ActionPreview struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	RiskLevel   RiskLevel      `json:"risk_level"`
	Params      map[string]any `json:"params,omitempty"`
	Reasons     []string       `json:"reasons,omitempty"`
	ExpiresIn   int            `json:"expires_in_seconds,omitempty"`
}

// ActionResponse is the server's answer to an execute or confirm call,
// and the payload of action_result push events.
type ActionResponse struct {
	ExecutionID          string         `json:"execution_id"`
	Status               ActionStatus   `json:"status"`
	Message              string         `json:"message,omitempty"`
	Data                 map[string]any `json:"data,omitempty"`
	ConfirmationRequired bool           `json:"confirmation_required"`
	ConfirmationToken    string         `json:"confirmation_token,omitempty"`
	ActionPreview        *ActionPreview `json:"action_preview,omitempty"`
}

// FeedEntry is one row of the action feed: the most recent known state
// of a single execution.
type FeedEntry struct {
	ExecutionID string       `json:"execution_id"`
	ActionType  string       `json:"action_type"`
	Status      ActionStatus `json:"status"`
	Source      ActionSource `json:"source"`
	RiskLevel   RiskLevel    `json:"risk_level"`
	CreatedAt   time.Time    `json:"created_at"`
	Message     string       `json:"message,omitempty"`
}

// PendingConfirmation is a risky action awaiting the user's decision.
// The confirmation token is one-time and proves the client saw this
// specific preview.
type PendingConfirmation struct {
	ExecutionID       string        `json:"execution_id"`
	ConfirmationToken string        `json:"confirmation_token"`
	RiskLevel         RiskLevel     `json:"risk_level"`
	ActionPreview     ActionPreview `json:"action_preview"`
	CreatedAt         time.Time     `json:"created_at"`
}

// HistoryPage is one page of the server-side action history.
type HistoryPage struct {
	Items   []FeedEntry `json:"items"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

// PushMessage is an inbound push channel frame. Unknown types are
// ignored by the channel manager.
type PushMessage struct {
	Type        string          `json:"type"`
	Data        *ActionResponse `json:"data,omitempty"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Status      ActionStatus    `json:"status,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Push frame types.
const (
	PushActionResult = "action_result"
	PushStatusUpdate = "status_update"
	PushPong         = "pong"
	PushError        = "error"
	PushPing         = "ping"
)

// FeedEntryFromResponse converts an execution response into a feed
// entry. Push events and direct responses reconcile through this one
// shape so the feed can deduplicate them by execution id.
func FeedEntryFromResponse(resp *ActionResponse, source ActionSource, at time.Time) FeedEntry {
	entry := FeedEntry{
		ExecutionID: resp.ExecutionID,
		ActionType:  "unknown",
		Status:      resp.Status,
		Source:      source,
		RiskLevel:   RiskLow,
		CreatedAt:   at,
		Message:     resp.Message,
	}
	if resp.ActionPreview != nil {
		if resp.ActionPreview.Action != "" {
			entry.ActionType = resp.ActionPreview.Action
		}
		if resp.ActionPreview.RiskLevel != "" {
			entry.RiskLevel = resp.ActionPreview.RiskLevel
		}
	}
	return entry
}
