package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jayesh445/VeriChain-sub000/internal/collector"
	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/identity"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeCatalog struct {
	items map[string]*domain.Item
}

func (f *fakeCatalog) GetItem(_ context.Context, itemID string) (*domain.Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}
	cp := *item
	return &cp, nil
}

type fakeDirectory struct {
	vendors map[string][]domain.Vendor
}

func (f *fakeDirectory) ActiveVendors(_ context.Context, category string) ([]domain.Vendor, error) {
	return f.vendors[category], nil
}

type collectFunc func(ctx context.Context, req collector.Request) collector.Result

func (f collectFunc) Collect(ctx context.Context, req collector.Request) collector.Result {
	return f(ctx, req)
}

type fakeCommitter struct {
	calls    atomic.Int32
	quantity atomic.Int32
	err      error
	// entered and release, when set, hold CommitOrder until release closes.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeCommitter) CommitOrder(_ context.Context, sessionID, itemID string, quantity int, p domain.VendorProposal) (string, error) {
	f.calls.Add(1)
	f.quantity.Store(int32(quantity))
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	return "po-" + sessionID, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) EmitNotification(_ context.Context, ev domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) ofType(t domain.EventType) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordingArchiver struct {
	mu    sync.Mutex
	snaps map[string]domain.SessionSnapshot
}

func (a *recordingArchiver) ArchiveSession(_ context.Context, snap domain.SessionSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.snaps == nil {
		a.snaps = make(map[string]domain.SessionSnapshot)
	}
	a.snaps[snap.ID] = snap
	return nil
}

func (a *recordingArchiver) GetArchivedSession(_ context.Context, id string) (*domain.SessionSnapshot, error) {
	snap, ok := a.get(id)
	if !ok {
		return nil, errors.New("not archived")
	}
	return &snap, nil
}

func (a *recordingArchiver) get(id string) (domain.SessionSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.snaps[id]
	return s, ok
}

func offer(id string, total int64, days int) domain.VendorProposal {
	return domain.VendorProposal{
		VendorID:          id,
		VendorName:        "Vendor " + id,
		UnitPrice:         decimal.NewFromInt(total).Div(decimal.NewFromInt(10)),
		TotalPrice:        decimal.NewFromInt(total),
		DeliveryTimeDays:  days,
		VendorReliability: 0.8,
	}
}

// respondWith returns a collector that answers immediately with proposals.
func respondWith(proposals ...domain.VendorProposal) collectFunc {
	return func(_ context.Context, req collector.Request) collector.Result {
		if req.OnContacted != nil {
			req.OnContacted(len(req.Vendors))
		}
		return collector.Result{Proposals: proposals, Contacted: len(req.Vendors)}
	}
}

// blockUntilCancelled returns a collector that never gets an answer.
func blockUntilCancelled() collectFunc {
	return func(ctx context.Context, req collector.Request) collector.Result {
		if req.OnContacted != nil {
			req.OnContacted(len(req.Vendors))
		}
		<-ctx.Done()
		return collector.Result{Contacted: len(req.Vendors), Partial: true}
	}
}

type harness struct {
	orch      *Orchestrator
	clock     *fakeClock
	committer *fakeCommitter
	notifier  *recordingNotifier
	archiver  *recordingArchiver
}

func newHarness(t *testing.T, coll ProposalCollector) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(),
		committer: &fakeCommitter{},
		notifier:  &recordingNotifier{},
		archiver:  &recordingArchiver{},
	}
	deps := Deps{
		Items: &fakeCatalog{items: map[string]*domain.Item{
			"bolt-m8": {ID: "bolt-m8", Name: "M8 bolt", Category: "fasteners", CurrentStock: 15, ReorderLevel: 20, MaxStockLevel: 100, MinReorderBatch: 10},
			"orphan":  {ID: "orphan", Name: "Orphan part", Category: "unsupplied", ReorderLevel: 5, MaxStockLevel: 10},
		}},
		Directory: &fakeDirectory{vendors: map[string][]domain.Vendor{
			"fasteners": {
				{ID: "v-a", Name: "Vendor v-a", Category: "fasteners", Active: true},
				{ID: "v-b", Name: "Vendor v-b", Category: "fasteners", Active: true},
				{ID: "v-c", Name: "Vendor v-c", Category: "fasteners", Active: true},
			},
		}},
		Collector: coll,
		Committer: h.committer,
		Notifier:  h.notifier,
		Archiver:  h.archiver,
	}
	h.orch = New(deps, DefaultConfig(), WithClock(h.clock.Now))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, h.orch.Shutdown(ctx))
	})
	return h
}

func (h *harness) waitForState(t *testing.T, id string, state domain.State) domain.SessionSnapshot {
	t.Helper()
	var snap domain.SessionSnapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = h.orch.GetSession(context.Background(), id)
		return err == nil && snap.State == state
	}, 2*time.Second, 5*time.Millisecond, "session %s never reached %s", id, state)
	return snap
}

func (h *harness) pendingSession(t *testing.T) domain.SessionSnapshot {
	t.Helper()
	snap, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 10, Urgency: domain.UrgencyHigh})
	require.NoError(t, err)
	return h.waitForState(t, snap.ID, domain.StatePendingApproval)
}

func TestStartNegotiationReachesPendingApproval(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5), offer("v-b", 90, 7), offer("v-c", 95, 3)))

	snap, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 10, Urgency: domain.UrgencyHigh})
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerManual, snap.Trigger)
	assert.Equal(t, []string{"v-a", "v-b", "v-c"}, snap.VendorsContacted)
	assert.Equal(t, snap.CreatedAt.Add(5*time.Minute), snap.Deadline)

	pending := h.waitForState(t, snap.ID, domain.StatePendingApproval)
	require.NotNil(t, pending.BestProposal)
	assert.Equal(t, "v-c", pending.BestProposal.VendorID, "fastest delivery wins under high urgency")
	assert.InDelta(t, pending.BestProposal.ConfidenceScore, pending.ConfidenceScore, 1e-12)
	require.Len(t, pending.Proposals, 3)
	assert.Equal(t, "v-c", pending.Proposals[0].VendorID)

	states := make([]domain.State, len(pending.Reasoning))
	for i, r := range pending.Reasoning {
		states[i] = r.State
	}
	assert.Equal(t, []domain.State{
		domain.StateDiscovering, domain.StateNegotiating, domain.StateComparing, domain.StatePendingApproval,
	}, states)

	assert.Len(t, h.notifier.ofType(domain.EventNegotiationStarted), 1)
	required := h.notifier.ofType(domain.EventApprovalRequired)
	require.Len(t, required, 1)
	assert.True(t, required[0].RequiresAction)
	assert.Equal(t, snap.ID, required[0].SessionID)

	assert.Len(t, h.orch.ListPendingApprovals(context.Background()), 1)
	assert.Len(t, h.orch.ListActiveSessions(context.Background()), 1)
}

func TestStartNegotiationInvalidDemand(t *testing.T) {
	h := newHarness(t, respondWith())

	tests := []struct {
		name   string
		demand Demand
		also   error
	}{
		{"zero quantity", Demand{ItemID: "bolt-m8", Quantity: 0, Urgency: domain.UrgencyLow}, nil},
		{"unknown urgency", Demand{ItemID: "bolt-m8", Quantity: 3, Urgency: "urgent"}, nil},
		{"unknown item", Demand{ItemID: "nope", Quantity: 3, Urgency: domain.UrgencyLow}, domain.ErrItemNotFound},
		{"no vendors", Demand{ItemID: "orphan", Quantity: 3, Urgency: domain.UrgencyLow}, ErrNoVendorsAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.orch.StartNegotiation(context.Background(), tt.demand)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDemand)
			if tt.also != nil {
				assert.ErrorIs(t, err, tt.also)
			}
		})
	}
	assert.Empty(t, h.orch.Registry().ListAll())
}

func TestManualStartRejectsSecondActiveSession(t *testing.T) {
	h := newHarness(t, blockUntilCancelled())

	first, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyLow})
	require.NoError(t, err)

	_, err = h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyLow})
	assert.ErrorIs(t, err, ErrActiveSessionExists)

	active := h.orch.ListActiveSessions(context.Background())
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)
}

func TestZeroResponsesRejectSession(t *testing.T) {
	h := newHarness(t, respondWith())

	snap, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyMedium})
	require.NoError(t, err)

	final := h.waitForState(t, snap.ID, domain.StateRejected)
	assert.Equal(t, domain.TagNoProposals, final.TerminalTag)
	assert.Nil(t, final.BestProposal)
	assert.Empty(t, final.Proposals)
	assert.Contains(t, final.ReasoningText(), "no vendor responded")
	assert.Zero(t, h.committer.calls.Load())

	require.Eventually(t, func() bool {
		_, ok := h.archiver.get(snap.ID)
		return ok
	}, time.Second, 5*time.Millisecond)

	// The item is free again.
	_, err = h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyMedium})
	assert.NoError(t, err)
}

func TestDecideApproveCommitsExactlyOnce(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5), offer("v-b", 90, 7)))
	pending := h.pendingSession(t)

	ctx := identity.WithOperator(context.Background(), "buyer-7")
	snap, err := h.orch.Decide(ctx, pending.ID, true, "looks good")
	require.NoError(t, err)
	assert.Equal(t, domain.StateApproved, snap.State)
	assert.Equal(t, domain.TagApproved, snap.TerminalTag)
	assert.Equal(t, domain.CommitCommitted, snap.CommitStatus)
	require.NotNil(t, snap.Decision)
	assert.Equal(t, "buyer-7", snap.Decision.DecidedBy)
	assert.Equal(t, "looks good", snap.Decision.Notes)
	assert.EqualValues(t, 1, h.committer.calls.Load())
	assert.EqualValues(t, pending.QuantityNeeded, h.committer.quantity.Load())

	_, err = h.orch.Decide(ctx, pending.ID, true, "again")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.ErrorIs(t, err, ErrNoDecisionTwice)
	_, err = h.orch.Decide(ctx, pending.ID, false, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.EqualValues(t, 1, h.committer.calls.Load())

	archived, ok := h.archiver.get(pending.ID)
	require.True(t, ok)
	assert.Equal(t, domain.CommitCommitted, archived.CommitStatus)
}

func TestConcurrentDecisionsCommitOnce(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5)))
	pending := h.pendingSession(t)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		resolved  atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.Decide(context.Background(), pending.ID, i%2 == 0, "")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyResolved):
				resolved.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, 15, resolved.Load())
	assert.LessOrEqual(t, h.committer.calls.Load(), int32(1))
}

func TestDecideReject(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5)))
	pending := h.pendingSession(t)

	snap, err := h.orch.Decide(context.Background(), pending.ID, false, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRejected, snap.State)
	assert.Equal(t, domain.TagRejected, snap.TerminalTag)
	assert.NotNil(t, snap.BestProposal)
	assert.Equal(t, domain.CommitNone, snap.CommitStatus)
	assert.Equal(t, identity.AnonymousOperator, snap.Decision.DecidedBy)
	assert.Zero(t, h.committer.calls.Load())
	assert.Len(t, h.notifier.ofType(domain.EventSessionRejected), 1)
}

func TestDecideErrors(t *testing.T) {
	h := newHarness(t, blockUntilCancelled())

	_, err := h.orch.Decide(context.Background(), "missing", true, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	snap, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyLow})
	require.NoError(t, err)
	h.waitForState(t, snap.ID, domain.StateNegotiating)

	_, err = h.orch.Decide(context.Background(), snap.ID, true, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Zero(t, h.committer.calls.Load())
}

func TestCommitFailureKeepsSessionApproved(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5)))
	h.committer.err = errors.New("erp unavailable")
	pending := h.pendingSession(t)

	snap, err := h.orch.Decide(context.Background(), pending.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StateApproved, snap.State)
	assert.Equal(t, domain.CommitFailed, snap.CommitStatus)
	assert.Contains(t, snap.ReasoningText(), "erp unavailable")

	failed := h.notifier.ofType(domain.EventCommitFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, domain.SeverityCritical, failed[0].Severity)
	assert.EqualValues(t, 1, h.committer.calls.Load())
}

func TestHighUrgencySessionExpiresAtDeadline(t *testing.T) {
	h := newHarness(t, blockUntilCancelled())
	start := h.clock.Now()

	snap, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyHigh})
	require.NoError(t, err)
	h.waitForState(t, snap.ID, domain.StateNegotiating)

	h.clock.Set(start.Add(5*time.Minute - time.Second))
	res := h.orch.SweepOnce(context.Background())
	assert.Zero(t, res.Expired)
	got, err := h.orch.GetSession(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNegotiating, got.State)

	h.clock.Set(start.Add(5 * time.Minute))
	res = h.orch.SweepOnce(context.Background())
	assert.Equal(t, 1, res.Expired)

	got, err = h.orch.GetSession(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, got.State)
	assert.Equal(t, domain.TagExpired, got.TerminalTag)
	assert.Len(t, h.notifier.ofType(domain.EventSessionExpired), 1)

	// A second sweep finds nothing and the late workflow cannot revive it.
	assert.Zero(t, h.orch.SweepOnce(context.Background()).Expired)
	time.Sleep(20 * time.Millisecond)
	got, _ = h.orch.GetSession(context.Background(), snap.ID)
	assert.Equal(t, domain.StateExpired, got.State)
}

func TestPendingApprovalExpires(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5)))
	start := h.clock.Now()
	pending := h.pendingSession(t)

	h.clock.Set(start.Add(6 * time.Minute))
	assert.Equal(t, 1, h.orch.SweepOnce(context.Background()).Expired)

	expired, err := h.orch.GetSession(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Nil(t, expired.BestProposal)
	assert.Len(t, expired.Proposals, 1)

	_, err = h.orch.Decide(context.Background(), pending.ID, true, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.NotErrorIs(t, err, ErrNoDecisionTwice)
	assert.Zero(t, h.committer.calls.Load())
}

func TestSweepPrunesAfterRetention(t *testing.T) {
	h := newHarness(t, respondWith())
	start := h.clock.Now()

	snap, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyLow})
	require.NoError(t, err)
	h.waitForState(t, snap.ID, domain.StateRejected)

	h.clock.Set(start.Add(23 * time.Hour))
	assert.Zero(t, h.orch.SweepOnce(context.Background()).Pruned)

	h.clock.Set(start.Add(25 * time.Hour))
	assert.Equal(t, 1, h.orch.SweepOnce(context.Background()).Pruned)

	_, err = h.orch.GetSession(context.Background(), snap.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestShutdownDuringCollectionLeavesSessionOpen(t *testing.T) {
	h := newHarness(t, blockUntilCancelled())

	snap, err := h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyLow})
	require.NoError(t, err)
	h.waitForState(t, snap.ID, domain.StateNegotiating)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.orch.Shutdown(ctx))

	got, err := h.orch.GetSession(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNegotiating, got.State)
	assert.Equal(t, domain.TagNone, got.TerminalTag)
	assert.Contains(t, got.ReasoningText(), "interrupted by shutdown")
	assert.NotContains(t, got.ReasoningText(), "no vendor responded")

	_, archived := h.archiver.get(snap.ID)
	assert.False(t, archived)
	assert.Empty(t, h.notifier.ofType(domain.EventSessionRejected))
}

func TestDecideAfterPruneReportsResolved(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5)))
	start := h.clock.Now()
	pending := h.pendingSession(t)

	_, err := h.orch.Decide(context.Background(), pending.ID, true, "")
	require.NoError(t, err)

	h.clock.Set(start.Add(25 * time.Hour))
	require.Equal(t, 1, h.orch.SweepOnce(context.Background()).Pruned)
	_, err = h.orch.GetSession(context.Background(), pending.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = h.orch.Decide(context.Background(), pending.ID, false, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.ErrorIs(t, err, ErrNoDecisionTwice)
	assert.EqualValues(t, 1, h.committer.calls.Load())

	_, err = h.orch.Decide(context.Background(), "never-existed", true, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestItemHeldWhileOrderCommits(t *testing.T) {
	h := newHarness(t, respondWith(offer("v-a", 100, 5)))
	h.committer.entered = make(chan struct{})
	h.committer.release = make(chan struct{})
	pending := h.pendingSession(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Decide(context.Background(), pending.ID, true, "")
		done <- err
	}()
	<-h.committer.entered

	res, err := h.orch.NotifyStockMutation(context.Background(), "bolt-m8", 3, 20)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, res.Outcome)
	_, err = h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyLow})
	assert.ErrorIs(t, err, ErrActiveSessionExists)

	close(h.committer.release)
	require.NoError(t, <-done)

	_, err = h.orch.StartNegotiation(context.Background(), Demand{ItemID: "bolt-m8", Quantity: 5, Urgency: domain.UrgencyLow})
	assert.NoError(t, err)
}
