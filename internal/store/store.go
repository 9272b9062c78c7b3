// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// Repository defines the interface for persisting catalog, inventory and
// negotiation outcome data.
type Repository interface {
	// UpsertVendor creates or updates a vendor directory entry.
	UpsertVendor(ctx context.Context, v domain.Vendor) error

	// ActiveVendors lists active vendors for a category ordered by id.
	ActiveVendors(ctx context.Context, category string) ([]domain.Vendor, error)

	// ListVendors lists every vendor, optionally filtered by category.
	ListVendors(ctx context.Context, category string) ([]domain.Vendor, error)

	// UpsertItem creates or updates an inventory item.
	UpsertItem(ctx context.Context, item domain.Item) error

	// GetItem retrieves an item. Unknown ids yield domain.ErrItemNotFound.
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)

	// SetStock overwrites an item's stock level and records the movement.
	SetStock(ctx context.Context, itemID string, quantity int, reason string) (*domain.Item, error)

	// AdjustStock applies a delta to an item's stock level and records the
	// movement. A result below zero fails with domain.ErrInsufficientStock.
	AdjustStock(ctx context.Context, itemID string, delta int, reason string) (*domain.Item, error)

	// ListStockMovements returns an item's most recent movements, newest first.
	ListStockMovements(ctx context.Context, itemID string, limit int) ([]domain.StockMovement, error)

	// CommitPurchaseOrder stores the order and adds its quantity to stock in
	// one transaction. A second order for the same session is rejected.
	CommitPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.Item, error)

	// ListPurchaseOrders returns orders for an item, newest first.
	ListPurchaseOrders(ctx context.Context, itemID string) ([]domain.PurchaseOrder, error)

	// ArchiveSession upserts a session snapshot and its decision.
	ArchiveSession(ctx context.Context, snap domain.SessionSnapshot) error

	// GetArchivedSession loads an archived session snapshot.
	GetArchivedSession(ctx context.Context, id string) (*domain.SessionSnapshot, error)

	// SaveNotification persists an event.
	SaveNotification(ctx context.Context, ev domain.Event) error

	// MarkNotificationDelivered flags an event as delivered.
	MarkNotificationDelivered(ctx context.Context, id string) error

	// ListNotifications returns the most recent events, newest first.
	ListNotifications(ctx context.Context, limit int) ([]domain.Event, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
