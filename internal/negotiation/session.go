package negotiation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/scoring"
)

// edges lists every legal non-expiry transition. Any non-terminal state may
// additionally move to expired.
var edges = map[domain.State][]domain.State{
	domain.StateDiscovering:     {domain.StateNegotiating},
	domain.StateNegotiating:     {domain.StateComparing, domain.StateRejected},
	domain.StateComparing:       {domain.StatePendingApproval},
	domain.StatePendingApproval: {domain.StateApproved, domain.StateRejected},
}

func allowed(from, to domain.State) bool {
	if from.Terminal() {
		return false
	}
	if to == domain.StateExpired {
		return true
	}
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is one negotiation workflow. Every mutation goes through the
// session mutex; readers take a Snapshot.
type Session struct {
	mu sync.Mutex

	id        string
	itemID    string
	category  string
	quantity  int
	urgency   domain.Urgency
	trigger   domain.Trigger
	vendors   []domain.Vendor
	createdAt time.Time
	deadline  time.Time

	state      domain.State
	tag        domain.TerminalTag
	proposals  []domain.VendorProposal
	best       *domain.VendorProposal
	confidence float64
	partial    bool
	decision   *domain.ApprovalDecision
	commit     domain.CommitStatus
	reasoning  []domain.ReasoningEntry
	updatedAt  time.Time
	resolvedAt time.Time

	cancel context.CancelFunc
	now    func() time.Time
}

type sessionParams struct {
	id       string
	item     *domain.Item
	quantity int
	urgency  domain.Urgency
	trigger  domain.Trigger
	vendors  []domain.Vendor
	budget   time.Duration
	now      func() time.Time
}

func newSession(p sessionParams) *Session {
	created := p.now()
	s := &Session{
		id:        p.id,
		itemID:    p.item.ID,
		category:  p.item.Category,
		quantity:  p.quantity,
		urgency:   p.urgency,
		trigger:   p.trigger,
		vendors:   append([]domain.Vendor(nil), p.vendors...),
		createdAt: created,
		deadline:  created.Add(p.budget),
		state:     domain.StateDiscovering,
		commit:    domain.CommitNone,
		updatedAt: created,
		now:       p.now,
	}
	s.reasoning = append(s.reasoning, domain.ReasoningEntry{
		At:    created,
		State: domain.StateDiscovering,
		Message: fmt.Sprintf("%s demand for %d x %s (%s urgency), %d vendors in category %q, deadline %s",
			p.trigger, p.quantity, p.item.ID, p.urgency, len(p.vendors), p.item.Category, s.deadline.UTC().Format(time.RFC3339)),
	})
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ItemID returns the demand item id.
func (s *Session) ItemID() string { return s.itemID }

// Deadline returns the expiry deadline.
func (s *Session) Deadline() time.Time { return s.deadline }

// State returns the current state.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Vendors returns the vendor list captured when the session was opened.
func (s *Session) Vendors() []domain.Vendor {
	return append([]domain.Vendor(nil), s.vendors...)
}

// transitionLocked moves the session to the given state. Caller holds mu.
func (s *Session) transitionLocked(to domain.State, msg string) error {
	if s.state.Terminal() {
		return fmt.Errorf("%w: session %s is %s", ErrAlreadyTerminal, s.id, s.state)
	}
	if !allowed(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}

	now := s.now()
	s.state = to
	s.updatedAt = now
	if to.Terminal() {
		s.resolvedAt = now
	}
	s.reasoning = append(s.reasoning, domain.ReasoningEntry{At: now, State: to, Message: msg})
	return nil
}

// MarkNegotiating records that solicitations went out.
func (s *Session) MarkNegotiating(contacted int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(domain.StateNegotiating, fmt.Sprintf("solicited %d vendors", contacted))
}

// BeginComparing stores the collected proposals and enters comparing.
func (s *Session) BeginComparing(proposals []domain.VendorProposal, partial bool, dropped int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := fmt.Sprintf("received %d valid proposals, %d dropped", len(proposals), dropped)
	if partial {
		msg += ", collection window closed before all vendors answered"
	}
	if err := s.transitionLocked(domain.StateComparing, msg); err != nil {
		return err
	}
	s.proposals = append([]domain.VendorProposal(nil), proposals...)
	s.partial = partial
	return nil
}

// RejectNoProposals closes a session whose collection produced nothing.
func (s *Session) RejectNoProposals(partial bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(domain.StateRejected, "no vendor responded"); err != nil {
		return err
	}
	s.tag = domain.TagNoProposals
	s.partial = partial
	return nil
}

// AwaitApproval records the ranking and parks the session for a human
// decision. It reports whether this call performed the transition; a repeat
// call on a session that is already pending approval is a no-op.
func (s *Session) AwaitApproval(ranked []scoring.Ranked) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StatePendingApproval {
		return false, nil
	}
	if len(ranked) == 0 {
		return false, fmt.Errorf("%w: nothing to rank", ErrNoProposalsReceived)
	}

	top := ranked[0]
	msg := fmt.Sprintf("best proposal %s (%s) total %s, %d days, score %.3f (price %.2f, delivery %.2f, reliability %.2f)",
		top.Proposal.VendorID, top.Proposal.VendorName, top.Proposal.TotalPrice.StringFixed(2),
		top.Proposal.DeliveryTimeDays, top.Score, top.PriceFactor, top.DeliveryFactor, top.Proposal.VendorReliability)
	if err := s.transitionLocked(domain.StatePendingApproval, msg); err != nil {
		return false, err
	}

	s.proposals = scoring.Proposals(ranked)
	best := s.proposals[0]
	s.best = &best
	s.confidence = top.Score
	return true, nil
}

// Resolve records the single human decision. Any decision against a session
// that left pending approval reports ErrAlreadyResolved; when a decision was
// already recorded the error also matches ErrNoDecisionTwice.
func (s *Session) Resolve(d domain.ApprovalDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StatePendingApproval {
		return resolvedError(s.id, s.state, s.decision != nil)
	}

	to, tag, verb := domain.StateRejected, domain.TagRejected, "rejected"
	if d.Approved {
		to, tag, verb = domain.StateApproved, domain.TagApproved, "approved"
	}
	msg := fmt.Sprintf("%s by %s", verb, d.DecidedBy)
	if d.Notes != "" {
		msg += ": " + d.Notes
	}
	if err := s.transitionLocked(to, msg); err != nil {
		return err
	}

	d.SessionID = s.id
	s.decision = &d
	s.tag = tag
	if d.Approved {
		s.commit = domain.CommitPending
	}
	return nil
}

// Expire force-terminates a non-terminal session and cancels its workflow.
// An expired session keeps its proposals but no longer offers a best one.
func (s *Session) Expire(reason string) error {
	s.mu.Lock()
	err := s.transitionLocked(domain.StateExpired, reason)
	if err == nil {
		s.tag = domain.TagExpired
		s.best = nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	if err == nil && cancel != nil {
		cancel()
	}
	return err
}

// SetCommitResult records the outcome of the order commit.
func (s *Session) SetCommitResult(orderID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.updatedAt = now
	if err != nil {
		s.commit = domain.CommitFailed
		s.reasoning = append(s.reasoning, domain.ReasoningEntry{At: now, State: s.state, Message: "order commit failed: " + err.Error()})
		return
	}
	s.commit = domain.CommitCommitted
	s.reasoning = append(s.reasoning, domain.ReasoningEntry{At: now, State: s.state, Message: "order committed as " + orderID})
}

// Note appends a reasoning line without changing state.
func (s *Session) Note(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.reasoning = append(s.reasoning, domain.ReasoningEntry{At: now, State: s.state, Message: msg})
}

// stopWorkflow releases the workflow context.
func (s *Session) stopWorkflow() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// overdue reports whether the session is non-terminal and past its deadline.
func (s *Session) overdue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Terminal() && !now.Before(s.deadline)
}

// holdsItem reports whether the session still blocks a new session for its
// item: it is non-terminal or its approved order is being committed.
func (s *Session) holdsItem() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Terminal() || s.commit == domain.CommitPending
}

// terminalSince reports whether the session is terminal and when it got there.
func (s *Session) terminalSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolvedAt, s.state.Terminal()
}

// Snapshot returns a consistent copy of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.SessionSnapshot{
		ID:               s.id,
		DemandItemID:     s.itemID,
		Category:         s.category,
		QuantityNeeded:   s.quantity,
		Urgency:          s.urgency,
		Trigger:          s.trigger,
		State:            s.state,
		TerminalTag:      s.tag,
		VendorsContacted: make([]string, len(s.vendors)),
		Proposals:        append([]domain.VendorProposal{}, s.proposals...),
		ConfidenceScore:  s.confidence,
		Partial:          s.partial,
		CommitStatus:     s.commit,
		Reasoning:        append([]domain.ReasoningEntry(nil), s.reasoning...),
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
		Deadline:         s.deadline,
	}
	for i, v := range s.vendors {
		snap.VendorsContacted[i] = v.ID
	}
	if s.best != nil {
		best := *s.best
		snap.BestProposal = &best
	}
	if s.decision != nil {
		d := *s.decision
		snap.Decision = &d
	}
	return snap
}

func resolvedError(id string, state domain.State, decided bool) error {
	if decided {
		return fmt.Errorf("%w: %w: session %s is %s", ErrAlreadyResolved, ErrNoDecisionTwice, id, state)
	}
	return fmt.Errorf("%w: session %s is %s", ErrAlreadyResolved, id, state)
}
