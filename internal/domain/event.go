package domain

import "time"

// Severity indicates the importance of an event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventType categorises the orchestrator event.
type EventType string

const (
	EventNegotiationStarted EventType = "negotiation_started"
	EventApprovalRequired   EventType = "approval_required"
	EventSessionApproved    EventType = "session_approved"
	EventSessionRejected    EventType = "session_rejected"
	EventSessionExpired     EventType = "session_expired"
	EventCommitFailed       EventType = "commit_failed"
)

// Event is a notification emitted by the orchestrator at a transition point.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Severity       Severity  `json:"severity"`
	SessionID      string    `json:"session_id"`
	ItemID         string    `json:"item_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	RequiresAction bool      `json:"requires_action"`
	Delivered      bool      `json:"delivered"`
	CreatedAt      time.Time `json:"created_at"`
}
