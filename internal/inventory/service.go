// Package inventory owns stock mutations. Every change is persisted first and
// then handed to the negotiation monitor, and approved proposals come back
// here as purchase orders.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/negotiation"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	SetStock(ctx context.Context, itemID string, quantity int, reason string) (*domain.Item, error)
	AdjustStock(ctx context.Context, itemID string, delta int, reason string) (*domain.Item, error)
	ListStockMovements(ctx context.Context, itemID string, limit int) ([]domain.StockMovement, error)
	CommitPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.Item, error)
	ListPurchaseOrders(ctx context.Context, itemID string) ([]domain.PurchaseOrder, error)
}

// StockTrigger receives stock mutations after they are persisted.
type StockTrigger interface {
	NotifyStockMutation(ctx context.Context, itemID string, newQuantity, reorderLevel int) (negotiation.TriggerResult, error)
}

// ErrInvalidQuantity is returned for negative stock levels or non-positive sales.
var ErrInvalidQuantity = errors.New("invalid quantity")

// StockUpdate is the outcome of a stock mutation.
type StockUpdate struct {
	Item    *domain.Item               `json:"item"`
	Trigger *negotiation.TriggerResult `json:"trigger,omitempty"`
}

// Detail is an item with its recent history.
type Detail struct {
	Item      *domain.Item           `json:"item"`
	Status    string                 `json:"status"`
	Movements []domain.StockMovement `json:"movements"`
	Orders    []domain.PurchaseOrder `json:"orders"`
}

// Service applies stock mutations and commits purchase orders.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	trigger StockTrigger
}

// NewService creates a service. The trigger is attached later with
// AttachTrigger because the orchestrator itself commits through this service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// AttachTrigger sets the receiver of stock mutations.
func (s *Service) AttachTrigger(t StockTrigger) {
	s.mu.Lock()
	s.trigger = t
	s.mu.Unlock()
}

// SetStock overwrites the stock level of an item.
func (s *Service) SetStock(ctx context.Context, itemID string, quantity int) (StockUpdate, error) {
	if quantity < 0 {
		return StockUpdate{}, fmt.Errorf("%w: stock level %d", ErrInvalidQuantity, quantity)
	}
	item, err := s.repo.SetStock(ctx, itemID, quantity, "manual_update")
	if err != nil {
		return StockUpdate{}, fmt.Errorf("set stock for %s: %w", itemID, err)
	}
	return s.afterMutation(ctx, item), nil
}

// RecordSale decrements stock by the sold quantity.
func (s *Service) RecordSale(ctx context.Context, itemID string, quantity int) (StockUpdate, error) {
	if quantity <= 0 {
		return StockUpdate{}, fmt.Errorf("%w: sale of %d", ErrInvalidQuantity, quantity)
	}
	item, err := s.repo.AdjustStock(ctx, itemID, -quantity, "sale")
	if err != nil {
		return StockUpdate{}, fmt.Errorf("record sale for %s: %w", itemID, err)
	}
	return s.afterMutation(ctx, item), nil
}

func (s *Service) afterMutation(ctx context.Context, item *domain.Item) StockUpdate {
	update := StockUpdate{Item: item}

	s.mu.RLock()
	t := s.trigger
	s.mu.RUnlock()
	if t == nil {
		return update
	}

	res, err := t.NotifyStockMutation(ctx, item.ID, item.CurrentStock, item.ReorderLevel)
	if err != nil {
		// The stock change is already durable; a failed trigger is retried by
		// the next mutation.
		s.logger.Warn("Stock trigger failed",
			"item_id", item.ID,
			"quantity", item.CurrentStock,
			"error", err)
		return update
	}
	update.Trigger = &res
	return update
}

// Get returns an item with its recent movements and orders.
func (s *Service) Get(ctx context.Context, itemID string) (*Detail, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	moves, err := s.repo.ListStockMovements(ctx, itemID, 20)
	if err != nil {
		return nil, fmt.Errorf("list movements for %s: %w", itemID, err)
	}
	orders, err := s.repo.ListPurchaseOrders(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", itemID, err)
	}
	return &Detail{Item: item, Status: item.StockStatus(), Movements: moves, Orders: orders}, nil
}

// CommitOrder records the approved proposal as a purchase order for the
// session's demanded quantity and adds it to stock. The stock increase does
// not re-enter the trigger.
func (s *Service) CommitOrder(ctx context.Context, sessionID, itemID string, qty int, p domain.VendorProposal) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}

	po := domain.PurchaseOrder{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		ItemID:           itemID,
		VendorID:         p.VendorID,
		Quantity:         qty,
		UnitPrice:        p.UnitPrice,
		TotalPrice:       p.TotalPrice,
		DeliveryTimeDays: p.DeliveryTimeDays,
		CreatedAt:        s.now(),
	}
	item, err := s.repo.CommitPurchaseOrder(ctx, po)
	if err != nil {
		return "", fmt.Errorf("commit order for session %s: %w", sessionID, err)
	}

	s.logger.Info("Purchase order committed",
		"order_id", po.ID,
		"session_id", sessionID,
		"item_id", itemID,
		"vendor_id", p.VendorID,
		"quantity", qty,
		"stock_after", item.CurrentStock)
	return po.ID, nil
}
