// Package domain contains core domain types for the negotiation orchestrator.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Urgency is the priority tier of a replenishment demand.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency converts a user-supplied string into an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("unknown urgency %q", s)
	}
	return u, nil
}

// Valid reports whether u is one of the known tiers.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// State is a negotiation session state.
type State string

const (
	StateDiscovering     State = "discovering"
	StateNegotiating     State = "negotiating"
	StateComparing       State = "comparing"
	StatePendingApproval State = "pending_approval"
	StateApproved        State = "approved"
	StateRejected        State = "rejected"
	StateExpired         State = "expired"
)

// Terminal reports whether no further transition may leave s.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected || s == StateExpired
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateDiscovering, StateNegotiating, StateComparing, StatePendingApproval,
		StateApproved, StateRejected, StateExpired:
		return true
	}
	return false
}

// TerminalTag distinguishes how a session ended.
type TerminalTag string

const (
	TagNone        TerminalTag = ""
	TagApproved    TerminalTag = "approved"
	TagRejected    TerminalTag = "rejected"
	TagNoProposals TerminalTag = "no_proposals"
	TagExpired     TerminalTag = "expired"
)

// Trigger records what opened a session.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

// CommitStatus tracks the order commit side effect of an approved session.
type CommitStatus string

const (
	CommitNone      CommitStatus = "none"
	CommitPending   CommitStatus = "pending"
	CommitCommitted CommitStatus = "committed"
	CommitFailed    CommitStatus = "failed"
)

// ReasoningEntry is one line of a session's audit trail.
type ReasoningEntry struct {
	At      time.Time `json:"at"`
	State   State     `json:"state"`
	Message string    `json:"message"`
}

// SessionSnapshot is an immutable copy of a negotiation session.
type SessionSnapshot struct {
	ID               string            `json:"id"`
	DemandItemID     string            `json:"demand_item_id"`
	Category         string            `json:"category"`
	QuantityNeeded   int               `json:"quantity_needed"`
	Urgency          Urgency           `json:"urgency"`
	Trigger          Trigger           `json:"trigger"`
	State            State             `json:"state"`
	TerminalTag      TerminalTag       `json:"terminal_tag,omitempty"`
	VendorsContacted []string          `json:"vendors_contacted"`
	Proposals        []VendorProposal  `json:"proposals"`
	BestProposal     *VendorProposal   `json:"best_proposal,omitempty"`
	ConfidenceScore  float64           `json:"confidence_score"`
	Partial          bool              `json:"partial"`
	Decision         *ApprovalDecision `json:"decision,omitempty"`
	CommitStatus     CommitStatus      `json:"commit_status"`
	Reasoning        []ReasoningEntry  `json:"reasoning"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Deadline         time.Time         `json:"deadline"`
}

// ReasoningText joins the reasoning trail into a single human-readable string.
func (s SessionSnapshot) ReasoningText() string {
	var b strings.Builder
	for i, r := range s.Reasoning {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s: %s", r.At.UTC().Format(time.RFC3339), r.State, r.Message)
	}
	return b.String()
}
