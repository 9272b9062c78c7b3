// Package negotiation runs vendor negotiation sessions from demand to a
// human-approved order.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jayesh445/VeriChain-sub000/internal/collector"
	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/metrics"
	"github.com/Jayesh445/VeriChain-sub000/internal/scoring"
)

// Config holds the timing knobs of the orchestrator.
type Config struct {
	// Budgets is the overall session lifetime per urgency.
	Budgets map[domain.Urgency]time.Duration
	// CollectWindows bounds proposal collection per urgency. The session
	// deadline always caps the window.
	CollectWindows map[domain.Urgency]time.Duration
	// Retention is how long terminal sessions stay queryable in memory.
	Retention time.Duration
	// CommitTimeout bounds a single CommitOrder call.
	CommitTimeout time.Duration
}

// DefaultConfig returns the stock budgets and windows.
func DefaultConfig() Config {
	return Config{
		Budgets: map[domain.Urgency]time.Duration{
			domain.UrgencyHigh:   5 * time.Minute,
			domain.UrgencyMedium: 15 * time.Minute,
			domain.UrgencyLow:    60 * time.Minute,
		},
		CollectWindows: map[domain.Urgency]time.Duration{
			domain.UrgencyHigh:   30 * time.Second,
			domain.UrgencyMedium: 60 * time.Second,
			domain.UrgencyLow:    120 * time.Second,
		},
		Retention:     24 * time.Hour,
		CommitTimeout: 30 * time.Second,
	}
}

func (c Config) budget(u domain.Urgency) time.Duration {
	if d, ok := c.Budgets[u]; ok && d > 0 {
		return d
	}
	return DefaultConfig().Budgets[u]
}

func (c Config) collectWindow(u domain.Urgency) time.Duration {
	if d, ok := c.CollectWindows[u]; ok && d > 0 {
		return d
	}
	return DefaultConfig().CollectWindows[u]
}

// Deps are the collaborators the orchestrator talks to. Notifier and
// Archiver are optional.
type Deps struct {
	Directory Directory
	Items     ItemCatalog
	Collector ProposalCollector
	Committer Committer
	Notifier  Notifier
	Archiver  Archiver
}

// Demand is a request to replenish an item.
type Demand struct {
	ItemID   string
	Quantity int
	Urgency  domain.Urgency
}

// Orchestrator owns the session registry and runs each session's workflow
// in its own goroutine.
type Orchestrator struct {
	registry *Registry
	monitor  *Monitor
	deps     Deps
	cfg      Config
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, opts ...Option) *Orchestrator {
	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		registry: NewRegistry(),
		deps:     deps,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default(),
		baseCtx:  ctx,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.monitor = newMonitor(o)
	return o
}

// Registry exposes the session registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Monitor exposes the auto-trigger monitor.
func (o *Orchestrator) Monitor() *Monitor { return o.monitor }

// ActiveCount returns the number of non-terminal sessions.
func (o *Orchestrator) ActiveCount() int {
	_, active := o.registry.Count()
	return active
}

// StartNegotiation opens a manually triggered session.
func (o *Orchestrator) StartNegotiation(ctx context.Context, d Demand) (domain.SessionSnapshot, error) {
	s, err := o.open(ctx, d, domain.TriggerManual)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return s.Snapshot(), nil
}

// GetSession returns a snapshot of one session.
func (o *Orchestrator) GetSession(_ context.Context, id string) (domain.SessionSnapshot, error) {
	s, err := o.registry.Get(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return s.Snapshot(), nil
}

// ListActiveSessions returns every non-terminal session.
func (o *Orchestrator) ListActiveSessions(_ context.Context) []domain.SessionSnapshot {
	return o.registry.ListActive()
}

// ListPendingApprovals returns the sessions waiting for a human decision.
func (o *Orchestrator) ListPendingApprovals(_ context.Context) []domain.SessionSnapshot {
	return o.registry.ListByState(domain.StatePendingApproval)
}

// ListByState returns the sessions in the given state.
func (o *Orchestrator) ListByState(_ context.Context, state domain.State) []domain.SessionSnapshot {
	return o.registry.ListByState(state)
}

// NotifyStockMutation feeds a stock change to the auto-trigger monitor.
func (o *Orchestrator) NotifyStockMutation(ctx context.Context, itemID string, newQuantity, reorderLevel int) (TriggerResult, error) {
	return o.monitor.OnStockMutation(ctx, itemID, newQuantity, reorderLevel)
}

// open validates a demand, registers its session and starts the workflow.
func (o *Orchestrator) open(ctx context.Context, d Demand, trigger domain.Trigger) (*Session, error) {
	if d.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidDemand, d.Quantity)
	}
	if !d.Urgency.Valid() {
		return nil, fmt.Errorf("%w: unknown urgency %q", ErrInvalidDemand, d.Urgency)
	}

	item, err := o.deps.Items.GetItem(ctx, d.ItemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDemand, err)
		}
		return nil, fmt.Errorf("lookup item %s: %w", d.ItemID, err)
	}

	vendors, err := o.deps.Directory.ActiveVendors(ctx, item.Category)
	if err != nil {
		return nil, fmt.Errorf("list vendors for %s: %w", item.Category, err)
	}
	if len(vendors) == 0 {
		return nil, fmt.Errorf("%w: %w: category %q", ErrInvalidDemand, ErrNoVendorsAvailable, item.Category)
	}

	budget := o.cfg.budget(d.Urgency)
	var runCtx context.Context
	s, err := o.registry.CreateIfAbsent(item.ID, func() *Session {
		s := newSession(sessionParams{
			id:       o.newID(),
			item:     item,
			quantity: d.Quantity,
			urgency:  d.Urgency,
			trigger:  trigger,
			vendors:  vendors,
			budget:   budget,
			now:      o.now,
		})
		runCtx, s.cancel = context.WithTimeout(o.baseCtx, budget)
		return s
	})
	if err != nil {
		// s is the session already holding the item.
		return s, err
	}

	metrics.SessionsStarted.WithLabelValues(string(trigger), string(d.Urgency)).Inc()
	o.logger.Info("Negotiation session opened",
		"session_id", s.ID(),
		"item_id", item.ID,
		"quantity", d.Quantity,
		"urgency", d.Urgency,
		"trigger", trigger,
		"vendors", len(vendors))

	snap := s.Snapshot()
	o.emit(ctx, snap, domain.EventNegotiationStarted, domain.SeverityInfo, false,
		"Negotiation started",
		fmt.Sprintf("Soliciting %d vendors for %d x %s (%s urgency)", len(vendors), d.Quantity, item.Name, d.Urgency))

	o.wg.Add(1)
	go o.run(runCtx, s)

	return s, nil
}

// run drives one session from discovering to pending approval or rejection.
func (o *Orchestrator) run(ctx context.Context, s *Session) {
	defer o.wg.Done()
	defer s.stopWorkflow()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Negotiation workflow panicked", "session_id", s.ID(), "panic", r)
			s.Note(fmt.Sprintf("workflow aborted: %v", r))
		}
	}()

	snap := s.Snapshot()
	window := o.cfg.collectWindow(snap.Urgency)
	collectDeadline := o.now().Add(window)
	if collectDeadline.After(snap.Deadline) {
		collectDeadline = snap.Deadline
	}

	res := o.deps.Collector.Collect(ctx, collector.Request{
		SessionID: snap.ID,
		ItemID:    snap.DemandItemID,
		Quantity:  snap.QuantityNeeded,
		Urgency:   snap.Urgency,
		Vendors:   s.Vendors(),
		Deadline:  collectDeadline,
		OnContacted: func(contacted int) {
			if err := s.MarkNegotiating(contacted); err != nil {
				o.logger.Debug("Skipping negotiating transition", "session_id", snap.ID, "error", err)
			}
		},
	})

	if o.baseCtx.Err() != nil {
		o.logger.Info("Negotiation workflow interrupted by shutdown",
			"session_id", snap.ID, "state", s.State())
		s.Note("workflow interrupted by shutdown")
		return
	}

	if s.State() == domain.StateDiscovering {
		if err := s.MarkNegotiating(res.Contacted); err != nil {
			o.workflowStopped(s, err)
			return
		}
	}

	if len(res.Proposals) == 0 {
		if err := s.RejectNoProposals(res.Partial); err != nil {
			o.workflowStopped(s, err)
			return
		}
		o.logger.Warn("Negotiation rejected, no proposals",
			"session_id", snap.ID,
			"item_id", snap.DemandItemID,
			"error", ErrNoProposalsReceived)
		o.finish(s, domain.EventSessionRejected, domain.SeverityWarning,
			"Negotiation failed", "No vendor responded with a valid proposal")
		return
	}

	if err := s.BeginComparing(res.Proposals, res.Partial, len(res.Dropped)); err != nil {
		o.workflowStopped(s, err)
		return
	}

	ranked := scoring.Score(res.Proposals, snap.Urgency)
	transitioned, err := s.AwaitApproval(ranked)
	if err != nil {
		o.workflowStopped(s, err)
		return
	}
	if !transitioned {
		return
	}

	pending := s.Snapshot()
	best := pending.BestProposal
	o.logger.Info("Negotiation awaiting approval",
		"session_id", pending.ID,
		"vendor_id", best.VendorID,
		"total_price", best.TotalPrice.StringFixed(2),
		"confidence", pending.ConfidenceScore)
	o.emit(o.baseCtx, pending, domain.EventApprovalRequired, domain.SeverityWarning, true,
		"Approval required",
		fmt.Sprintf("Best offer for %d x %s: %s at %s (%d days, confidence %.0f%%)",
			pending.QuantityNeeded, pending.DemandItemID, best.VendorName,
			best.TotalPrice.StringFixed(2), best.DeliveryTimeDays, pending.ConfidenceScore*100))
}

// workflowStopped logs a transition refused because the session moved on,
// typically expired by the sweeper.
func (o *Orchestrator) workflowStopped(s *Session, err error) {
	if errors.Is(err, ErrAlreadyTerminal) {
		o.logger.Debug("Negotiation workflow stopped, session already terminal",
			"session_id", s.ID(), "state", s.State())
		return
	}
	o.logger.Error("Negotiation workflow failed", "session_id", s.ID(), "error", err)
	s.Note("workflow error: " + err.Error())
}

// finish frees the item of a terminal session and records the outcome.
func (o *Orchestrator) finish(s *Session, typ domain.EventType, sev domain.Severity, title, msg string) {
	o.registry.Release(s)
	o.record(s, typ, sev, title, msg)
}

// record counts the resolution, archives the session and emits the
// matching event.
func (o *Orchestrator) record(s *Session, typ domain.EventType, sev domain.Severity, title, msg string) {
	snap := s.Snapshot()
	metrics.SessionsResolved.WithLabelValues(string(snap.TerminalTag)).Inc()
	o.archive(snap)
	o.emit(o.baseCtx, snap, typ, sev, false, title, msg)
}

func (o *Orchestrator) archive(snap domain.SessionSnapshot) {
	if o.deps.Archiver == nil {
		return
	}
	if err := o.deps.Archiver.ArchiveSession(o.baseCtx, snap); err != nil {
		o.logger.Error("Failed to archive session", "session_id", snap.ID, "state", snap.State, "error", err)
	}
}

func (o *Orchestrator) emit(ctx context.Context, snap domain.SessionSnapshot, typ domain.EventType, sev domain.Severity, requiresAction bool, title, msg string) {
	if o.deps.Notifier == nil {
		return
	}
	ev := domain.Event{
		ID:             uuid.NewString(),
		Type:           typ,
		Severity:       sev,
		SessionID:      snap.ID,
		ItemID:         snap.DemandItemID,
		Title:          title,
		Message:        msg,
		RequiresAction: requiresAction,
		CreatedAt:      o.now(),
	}
	if err := o.deps.Notifier.EmitNotification(context.WithoutCancel(ctx), ev); err != nil {
		o.logger.Warn("Failed to emit notification",
			"session_id", snap.ID,
			"event", typ,
			"error", err)
	}
}

// Shutdown stops every running workflow and waits for them to return.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for negotiation workflows: %w", ctx.Err())
	}
}
