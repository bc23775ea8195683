// internal/types/enums.go
package types

// ActionStatus is the lifecycle state of an action execution as reported
// by the server, either in a direct response or a push event.
type ActionStatus string

const (
	StatusCreated             ActionStatus = "created"
	StatusRulesEval           ActionStatus = "rules_eval"
	StatusAutoApproved        ActionStatus = "auto_approved"
	StatusPendingConfirmation ActionStatus = "pending_confirmation"
	StatusConfirmed           ActionStatus = "confirmed"
	StatusRejected            ActionStatus = "rejected"
	StatusExpired             ActionStatus = "expired"
	StatusEscalated           ActionStatus = "escalated"
	StatusQueued              ActionStatus = "queued"
	StatusExecuting           ActionStatus = "executing"
	StatusCompleted           ActionStatus = "completed"
	StatusFailed              ActionStatus = "failed"
	StatusRetrying            ActionStatus = "retrying"
)

// Terminal reports whether the status is a final disposition: no further
// push events are expected for the execution once one of these arrives.
func (s ActionStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// RiskLevel classifies how dangerous an action is. The classification is
// made server-side; the client only consumes it.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ActionSource identifies where an action request originated.
type ActionSource string

const (
	SourceVoice ActionSource = "voice"
	SourceText  ActionSource = "text"
	SourceAPI   ActionSource = "api"
	SourceMacro ActionSource = "macro"
)
