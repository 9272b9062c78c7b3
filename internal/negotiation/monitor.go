package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/metrics"
)

// TriggerOutcome describes what a stock mutation caused.
type TriggerOutcome string

const (
	OutcomeOpened         TriggerOutcome = "opened"
	OutcomeSuppressed     TriggerOutcome = "suppressed"
	OutcomeAboveThreshold TriggerOutcome = "above_threshold"
)

// TriggerResult is returned by OnStockMutation.
type TriggerResult struct {
	Outcome TriggerOutcome          `json:"outcome"`
	Session *domain.SessionSnapshot `json:"session,omitempty"`
}

// Mutation is the last stock change seen for an item.
type Mutation struct {
	ItemID       string         `json:"item_id"`
	Quantity     int            `json:"quantity"`
	ReorderLevel int            `json:"reorder_level"`
	Outcome      TriggerOutcome `json:"outcome"`
	At           time.Time      `json:"at"`
}

// Monitor opens sessions automatically when stock falls to the reorder level.
type Monitor struct {
	o *Orchestrator

	mu   sync.Mutex
	last map[string]Mutation
}

func newMonitor(o *Orchestrator) *Monitor {
	return &Monitor{o: o, last: make(map[string]Mutation)}
}

// UrgencyFor maps a stock level to an urgency tier: medium while at least
// half the reorder level remains, high below that or when out of stock.
func UrgencyFor(newQuantity, reorderLevel int) domain.Urgency {
	if newQuantity > 0 && newQuantity*2 >= reorderLevel {
		return domain.UrgencyMedium
	}
	return domain.UrgencyHigh
}

// QuantityNeeded tops the item back up to its max level, never ordering
// less than the minimum batch.
func QuantityNeeded(item *domain.Item, newQuantity int) int {
	qty := item.MaxStockLevel - newQuantity
	if qty < item.MinReorderBatch {
		qty = item.MinReorderBatch
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

// OnStockMutation evaluates a stock change. Concurrent calls for the same
// item open at most one session; the losers are recorded as suppressed.
func (m *Monitor) OnStockMutation(ctx context.Context, itemID string, newQuantity, reorderLevel int) (TriggerResult, error) {
	if newQuantity > reorderLevel {
		m.record(itemID, newQuantity, reorderLevel, OutcomeAboveThreshold)
		return TriggerResult{Outcome: OutcomeAboveThreshold}, nil
	}

	if existing, ok := m.o.registry.ActiveForItem(itemID); ok {
		return m.suppress(itemID, newQuantity, reorderLevel, existing), nil
	}

	item, err := m.o.deps.Items.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return TriggerResult{}, fmt.Errorf("%w: %w", ErrInvalidDemand, err)
		}
		return TriggerResult{}, fmt.Errorf("lookup item %s: %w", itemID, err)
	}

	urgency := UrgencyFor(newQuantity, reorderLevel)
	s, err := m.o.open(ctx, Demand{
		ItemID:   itemID,
		Quantity: QuantityNeeded(item, newQuantity),
		Urgency:  urgency,
	}, domain.TriggerAuto)
	if err != nil {
		if errors.Is(err, ErrActiveSessionExists) && s != nil {
			return m.suppress(itemID, newQuantity, reorderLevel, s), nil
		}
		return TriggerResult{}, err
	}

	m.record(itemID, newQuantity, reorderLevel, OutcomeOpened)
	snap := s.Snapshot()
	return TriggerResult{Outcome: OutcomeOpened, Session: &snap}, nil
}

func (m *Monitor) suppress(itemID string, newQuantity, reorderLevel int, existing *Session) TriggerResult {
	metrics.TriggersSuppressed.Inc()
	m.record(itemID, newQuantity, reorderLevel, OutcomeSuppressed)
	m.o.logger.Debug("Stock mutation suppressed, session already active",
		"item_id", itemID,
		"quantity", newQuantity,
		"session_id", existing.ID())
	snap := existing.Snapshot()
	return TriggerResult{Outcome: OutcomeSuppressed, Session: &snap}
}

func (m *Monitor) record(itemID string, qty, reorder int, outcome TriggerOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[itemID] = Mutation{
		ItemID:       itemID,
		Quantity:     qty,
		ReorderLevel: reorder,
		Outcome:      outcome,
		At:           m.o.now(),
	}
}

// LastMutation returns the most recent stock change recorded for an item.
func (m *Monitor) LastMutation(itemID string) (Mutation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.last[itemID]
	return mu, ok
}
