package negotiation

import (
	"errors"

	"github.com/Jayesh445/VeriChain-sub000/internal/collector"
)

var (
	// ErrInvalidDemand is returned when a demand cannot open a session.
	ErrInvalidDemand = errors.New("invalid demand")
	// ErrNoVendorsAvailable is wrapped together with ErrInvalidDemand when no
	// active vendor serves the item's category.
	ErrNoVendorsAvailable = errors.New("no vendors available")
	// ErrNoProposalsReceived is recorded when collection ends with no valid proposal.
	ErrNoProposalsReceived = errors.New("no proposals received")
	ErrSessionNotFound     = errors.New("session not found")
	ErrAlreadyResolved     = errors.New("session already resolved")
	ErrAlreadyTerminal     = errors.New("session already terminal")
	ErrNoDecisionTwice     = errors.New("decision already recorded")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrActiveSessionExists = errors.New("active session exists for item")
	ErrNotTerminal         = errors.New("session not terminal")
	ErrRetentionNotElapsed = errors.New("retention window not elapsed")
	ErrCommitFailure       = errors.New("order commit failed")

	// ErrMalformedProposal is re-exported so callers need a single import.
	ErrMalformedProposal = collector.ErrMalformedProposal
)
