package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(MemoryPath)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedItem(t *testing.T, s *SQLiteStore, stock int) domain.Item {
	t.Helper()
	item := domain.Item{
		ID:              "bolt-m8",
		Name:            "M8 bolt",
		Category:        "fasteners",
		CurrentStock:    stock,
		ReorderLevel:    20,
		MaxStockLevel:   100,
		MinReorderBatch: 10,
	}
	if err := s.UpsertItem(context.Background(), item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	return item
}

func TestNewSQLiteOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "verichain.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed, got %v", err)
	}
}

func TestVendorDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vendors := []domain.Vendor{
		{ID: "v-2", Name: "Beta", Category: "fasteners", Active: true, FulfillmentRate: 0.9, BaseUnitPrice: decimal.RequireFromString("2.10"), BaseDeliveryDays: 4},
		{ID: "v-1", Name: "Alpha", Category: "fasteners", Active: true, Endpoint: "localhost:50061", BaseUnitPrice: decimal.RequireFromString("2.45")},
		{ID: "v-3", Name: "Gamma", Category: "fasteners", Active: false, BaseUnitPrice: decimal.RequireFromString("1.99")},
		{ID: "v-4", Name: "Delta", Category: "adhesives", Active: true, BaseUnitPrice: decimal.RequireFromString("7")},
	}
	for _, v := range vendors {
		if err := s.UpsertVendor(ctx, v); err != nil {
			t.Fatalf("UpsertVendor(%s): %v", v.ID, err)
		}
	}

	active, err := s.ActiveVendors(ctx, "fasteners")
	if err != nil {
		t.Fatalf("ActiveVendors: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Expected 2 active fasteners vendors, got %d", len(active))
	}
	if active[0].ID != "v-1" || active[1].ID != "v-2" {
		t.Errorf("Expected vendors ordered by id, got %s, %s", active[0].ID, active[1].ID)
	}
	if active[0].Endpoint != "localhost:50061" {
		t.Errorf("Expected endpoint to round-trip, got %q", active[0].Endpoint)
	}
	if !active[1].BaseUnitPrice.Equal(decimal.RequireFromString("2.10")) {
		t.Errorf("Expected base price 2.10, got %s", active[1].BaseUnitPrice)
	}

	all, err := s.ListVendors(ctx, "")
	if err != nil {
		t.Fatalf("ListVendors: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Expected 4 vendors, got %d", len(all))
	}

	// Deactivating via upsert removes the vendor from the active list.
	vendors[0].Active = false
	if err := s.UpsertVendor(ctx, vendors[0]); err != nil {
		t.Fatalf("UpsertVendor: %v", err)
	}
	active, _ = s.ActiveVendors(ctx, "fasteners")
	if len(active) != 1 {
		t.Errorf("Expected 1 active vendor after deactivation, got %d", len(active))
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetItem(context.Background(), "missing")
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestStockUpdatesRecordMovements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedItem(t, s, 40)

	item, err := s.AdjustStock(ctx, "bolt-m8", -25, "sale")
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if item.CurrentStock != 15 {
		t.Errorf("Expected stock 15, got %d", item.CurrentStock)
	}

	item, err = s.SetStock(ctx, "bolt-m8", 60, "stocktake")
	if err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	if item.CurrentStock != 60 {
		t.Errorf("Expected stock 60, got %d", item.CurrentStock)
	}

	if _, err := s.AdjustStock(ctx, "bolt-m8", -61, "sale"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock, got %v", err)
	}
	if _, err := s.AdjustStock(ctx, "nope", 1, "sale"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}

	moves, err := s.ListStockMovements(ctx, "bolt-m8", 10)
	if err != nil {
		t.Fatalf("ListStockMovements: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("Expected 2 movements, got %d", len(moves))
	}
	if moves[0].Reason != "stocktake" || moves[0].Delta != 45 || moves[0].QuantityAfter != 60 {
		t.Errorf("Unexpected newest movement: %+v", moves[0])
	}
	if moves[1].Delta != -25 {
		t.Errorf("Expected sale delta -25, got %d", moves[1].Delta)
	}

	got, _ := s.GetItem(ctx, "bolt-m8")
	if got.CurrentStock != 60 {
		t.Errorf("Expected persisted stock 60, got %d", got.CurrentStock)
	}
}

func TestCommitPurchaseOrderOncePerSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedItem(t, s, 15)

	po := domain.PurchaseOrder{
		ID:               "po-1",
		SessionID:        "s-1",
		ItemID:           "bolt-m8",
		VendorID:         "v-1",
		Quantity:         85,
		UnitPrice:        decimal.RequireFromString("2.45"),
		TotalPrice:       decimal.RequireFromString("208.25"),
		DeliveryTimeDays: 3,
		CreatedAt:        time.Now(),
	}
	item, err := s.CommitPurchaseOrder(ctx, po)
	if err != nil {
		t.Fatalf("CommitPurchaseOrder: %v", err)
	}
	if item.CurrentStock != 100 {
		t.Errorf("Expected stock 100 after order, got %d", item.CurrentStock)
	}

	po.ID = "po-2"
	if _, err := s.CommitPurchaseOrder(ctx, po); !errors.Is(err, ErrDuplicateOrder) {
		t.Errorf("Expected ErrDuplicateOrder, got %v", err)
	}

	orders, err := s.ListPurchaseOrders(ctx, "bolt-m8")
	if err != nil {
		t.Fatalf("ListPurchaseOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}
	if !orders[0].TotalPrice.Equal(decimal.RequireFromString("208.25")) {
		t.Errorf("Expected total 208.25, got %s", orders[0].TotalPrice)
	}

	got, _ := s.GetItem(ctx, "bolt-m8")
	if got.CurrentStock != 100 {
		t.Errorf("Expected stock unchanged by rejected order, got %d", got.CurrentStock)
	}
}

func TestArchiveSessionUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.UnixMilli(time.Now().UnixMilli())
	best := domain.VendorProposal{VendorID: "v-1", VendorName: "Alpha", UnitPrice: decimal.RequireFromString("2"), TotalPrice: decimal.RequireFromString("20"), DeliveryTimeDays: 3}
	snap := domain.SessionSnapshot{
		ID:             "s-1",
		DemandItemID:   "bolt-m8",
		QuantityNeeded: 10,
		Urgency:        domain.UrgencyHigh,
		Trigger:        domain.TriggerAuto,
		State:          domain.StatePendingApproval,
		BestProposal:   &best,
		Proposals:      []domain.VendorProposal{best},
		CommitStatus:   domain.CommitNone,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	if err := s.ArchiveSession(ctx, snap); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}

	snap.State = domain.StateApproved
	snap.TerminalTag = domain.TagApproved
	snap.CommitStatus = domain.CommitCommitted
	snap.Decision = &domain.ApprovalDecision{SessionID: "s-1", Approved: true, DecidedBy: "ops", DecidedAt: created}
	if err := s.ArchiveSession(ctx, snap); err != nil {
		t.Fatalf("ArchiveSession (update): %v", err)
	}
	if err := s.ArchiveSession(ctx, snap); err != nil {
		t.Fatalf("ArchiveSession (repeat): %v", err)
	}

	got, err := s.GetArchivedSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("GetArchivedSession: %v", err)
	}
	if got.State != domain.StateApproved || got.CommitStatus != domain.CommitCommitted {
		t.Errorf("Expected approved/committed, got %s/%s", got.State, got.CommitStatus)
	}
	if got.Decision == nil || got.Decision.DecidedBy != "ops" {
		t.Errorf("Expected decision by ops, got %+v", got.Decision)
	}
	if got.BestProposal == nil || !got.BestProposal.TotalPrice.Equal(decimal.RequireFromString("20")) {
		t.Errorf("Expected best proposal total 20, got %+v", got.BestProposal)
	}

	if _, err := s.GetArchivedSession(ctx, "missing"); !errors.Is(err, ErrSessionNotArchived) {
		t.Errorf("Expected ErrSessionNotArchived, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, typ := range []domain.EventType{domain.EventNegotiationStarted, domain.EventApprovalRequired, domain.EventSessionApproved} {
		ev := domain.Event{
			ID:             string(typ),
			Type:           typ,
			Severity:       domain.SeverityInfo,
			SessionID:      "s-1",
			Title:          "t",
			Message:        "m",
			RequiresAction: typ == domain.EventApprovalRequired,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := s.SaveNotification(ctx, ev); err != nil {
			t.Fatalf("SaveNotification: %v", err)
		}
	}
	if err := s.MarkNotificationDelivered(ctx, string(domain.EventApprovalRequired)); err != nil {
		t.Fatalf("MarkNotificationDelivered: %v", err)
	}

	got, err := s.ListNotifications(ctx, 2)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(got))
	}
	if got[0].Type != domain.EventSessionApproved {
		t.Errorf("Expected newest first, got %s", got[0].Type)
	}
	if !got[1].RequiresAction || !got[1].Delivered {
		t.Errorf("Expected approval_required to be actionable and delivered, got %+v", got[1])
	}
}
