package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/shared"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrDuplicateOrder is returned when a session already has a purchase order.
var ErrDuplicateOrder = errors.New("purchase order already exists for session")

// ErrSessionNotArchived is returned for unknown archived session ids.
var ErrSessionNotArchived = errors.New("session not archived")

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
	now   func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithRetryPolicy sets the backoff used for writes that hit SQLITE_BUSY.
func WithRetryPolicy(p shared.RetryPolicy) Option {
	return func(s *SQLiteStore) { s.retry = p }
}

// WithClock injects the time source used for movement and order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLite creates a new SQLite-backed repository. Pass MemoryPath for an
// in-memory database.
func NewSQLite(dbPath string, opts ...Option) (*SQLiteStore, error) {
	memory := dbPath == MemoryPath

	dsn := dbPath
	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// Open database with WAL mode for better concurrency.
		dsn = dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		endpoint TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		fulfillment_rate REAL NOT NULL DEFAULT 0,
		price_volatility REAL NOT NULL DEFAULT 0,
		base_unit_price TEXT NOT NULL DEFAULT '0',
		base_delivery_days INTEGER NOT NULL DEFAULT 0,
		terms TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vendors_category ON vendors(category, active);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		current_stock INTEGER NOT NULL,
		reorder_level INTEGER NOT NULL,
		max_stock_level INTEGER NOT NULL,
		min_reorder_batch INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES items(id),
		delta INTEGER NOT NULL,
		quantity_after INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stock_movements_item ON stock_movements(item_id, created_at);

	CREATE TABLE IF NOT EXISTS purchase_orders (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		item_id TEXT NOT NULL REFERENCES items(id),
		vendor_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL,
		delivery_time_days INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_purchase_orders_item ON purchase_orders(item_id, created_at);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		urgency TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		state TEXT NOT NULL,
		terminal_tag TEXT NOT NULL DEFAULT '',
		commit_status TEXT NOT NULL DEFAULT 'none',
		best_vendor_id TEXT,
		best_total_price TEXT,
		confidence REAL NOT NULL DEFAULT 0,
		snapshot_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_item ON sessions(item_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);

	CREATE TABLE IF NOT EXISTS decisions (
		session_id TEXT PRIMARY KEY,
		approved INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		decided_by TEXT NOT NULL,
		decided_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		item_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		requires_action INTEGER NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("Failed to close rows", "query", what, "error", err)
	}
}

// --- vendors ---

// UpsertVendor creates or updates a vendor directory entry.
func (s *SQLiteStore) UpsertVendor(ctx context.Context, v domain.Vendor) error {
	query := `
	INSERT INTO vendors (id, name, category, endpoint, active, fulfillment_rate, price_volatility,
		base_unit_price, base_delivery_days, terms, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		category = excluded.category,
		endpoint = excluded.endpoint,
		active = excluded.active,
		fulfillment_rate = excluded.fulfillment_rate,
		price_volatility = excluded.price_volatility,
		base_unit_price = excluded.base_unit_price,
		base_delivery_days = excluded.base_delivery_days,
		terms = excluded.terms,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, s.retry, "upsert vendor", func() error {
		_, err := s.db.ExecContext(ctx, query,
			v.ID, v.Name, v.Category, v.Endpoint, boolToInt(v.Active),
			v.FulfillmentRate, v.PriceVolatility, v.BaseUnitPrice.String(),
			v.BaseDeliveryDays, v.Terms, toMillis(s.now()),
		)
		return err
	})
}

const vendorColumns = `id, name, category, endpoint, active, fulfillment_rate, price_volatility,
	base_unit_price, base_delivery_days, terms`

func scanVendor(row rowScanner) (domain.Vendor, error) {
	var v domain.Vendor
	var active int
	var price string
	if err := row.Scan(&v.ID, &v.Name, &v.Category, &v.Endpoint, &active,
		&v.FulfillmentRate, &v.PriceVolatility, &price, &v.BaseDeliveryDays, &v.Terms); err != nil {
		return v, err
	}
	v.Active = active != 0
	d, err := decimal.NewFromString(price)
	if err != nil {
		return v, fmt.Errorf("vendor %s base price %q: %w", v.ID, price, err)
	}
	v.BaseUnitPrice = d
	return v, nil
}

// ActiveVendors lists active vendors for a category ordered by id.
func (s *SQLiteStore) ActiveVendors(ctx context.Context, category string) ([]domain.Vendor, error) {
	return s.queryVendors(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE category = ? AND active = 1 ORDER BY id`, category)
}

// ListVendors lists every vendor, optionally filtered by category.
func (s *SQLiteStore) ListVendors(ctx context.Context, category string) ([]domain.Vendor, error) {
	if category == "" {
		return s.queryVendors(ctx, `SELECT `+vendorColumns+` FROM vendors ORDER BY category, id`)
	}
	return s.queryVendors(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE category = ? ORDER BY id`, category)
}

func (s *SQLiteStore) queryVendors(ctx context.Context, query string, args ...any) ([]domain.Vendor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer closeRows(rows, "vendors")

	var vendors []domain.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vendor row: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}
	return vendors, nil
}

// --- items and stock ---

// UpsertItem creates or updates an inventory item.
func (s *SQLiteStore) UpsertItem(ctx context.Context, item domain.Item) error {
	query := `
	INSERT INTO items (id, name, category, current_stock, reorder_level, max_stock_level, min_reorder_batch, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		category = excluded.category,
		current_stock = excluded.current_stock,
		reorder_level = excluded.reorder_level,
		max_stock_level = excluded.max_stock_level,
		min_reorder_batch = excluded.min_reorder_batch,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, s.retry, "upsert item", func() error {
		_, err := s.db.ExecContext(ctx, query,
			item.ID, item.Name, item.Category, item.CurrentStock,
			item.ReorderLevel, item.MaxStockLevel, item.MinReorderBatch, toMillis(s.now()),
		)
		return err
	})
}

const itemQuery = `
	SELECT id, name, category, current_stock, reorder_level, max_stock_level, min_reorder_batch, updated_at
	FROM items WHERE id = ?`

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var updatedAt int64
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.CurrentStock,
		&item.ReorderLevel, &item.MaxStockLevel, &item.MinReorderBatch, &updatedAt)
	if err != nil {
		return nil, err
	}
	item.UpdatedAt = fromMillis(updatedAt)
	return &item, nil
}

// GetItem retrieves an item by id.
func (s *SQLiteStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, itemQuery, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan item row: %w", err)
	}
	return item, nil
}

// SetStock overwrites an item's stock level and records the movement.
func (s *SQLiteStore) SetStock(ctx context.Context, itemID string, quantity int, reason string) (*domain.Item, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative (%d)", domain.ErrInsufficientStock, quantity)
	}
	return s.applyStock(ctx, itemID, reason, func(int) (int, error) { return quantity, nil })
}

// AdjustStock applies a delta to an item's stock level and records the movement.
func (s *SQLiteStore) AdjustStock(ctx context.Context, itemID string, delta int, reason string) (*domain.Item, error) {
	return s.applyStock(ctx, itemID, reason, func(current int) (int, error) {
		next := current + delta
		if next < 0 {
			return 0, fmt.Errorf("%w: %s has %d, change %d", domain.ErrInsufficientStock, itemID, current, delta)
		}
		return next, nil
	})
}

func (s *SQLiteStore) applyStock(ctx context.Context, itemID, reason string, next func(current int) (int, error)) (*domain.Item, error) {
	var out *domain.Item
	err := shared.RetryOnConflict(ctx, s.retry, "update stock", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		item, err := s.updateStockTx(ctx, tx, itemID, reason, next)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) updateStockTx(ctx context.Context, tx *sql.Tx, itemID, reason string, next func(current int) (int, error)) (*domain.Item, error) {
	item, err := scanItem(tx.QueryRowContext(ctx, itemQuery, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan item row: %w", err)
	}

	qty, err := next(item.CurrentStock)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET current_stock = ?, updated_at = ? WHERE id = ?`,
		qty, toMillis(now), itemID); err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stock_movements (id, item_id, delta, quantity_after, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), itemID, qty-item.CurrentStock, qty, reason, toMillis(now)); err != nil {
		return nil, fmt.Errorf("insert stock movement: %w", err)
	}

	item.CurrentStock = qty
	item.UpdatedAt = now
	return item, nil
}

// ListStockMovements returns an item's most recent movements, newest first.
func (s *SQLiteStore) ListStockMovements(ctx context.Context, itemID string, limit int) ([]domain.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, delta, quantity_after, reason, created_at
		FROM stock_movements WHERE item_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("query stock movements: %w", err)
	}
	defer closeRows(rows, "stock_movements")

	var out []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Delta, &m.QuantityAfter, &m.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan stock movement row: %w", err)
		}
		m.CreatedAt = fromMillis(createdAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}
	return out, nil
}

// --- purchase orders ---

// CommitPurchaseOrder stores the order and adds its quantity to stock.
func (s *SQLiteStore) CommitPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.Item, error) {
	var out *domain.Item
	err := shared.RetryOnConflict(ctx, s.retry, "commit purchase order", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM purchase_orders WHERE session_id = ?`, po.SessionID).Scan(&existing); err != nil {
			return fmt.Errorf("check existing order: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, po.SessionID)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_orders (id, session_id, item_id, vendor_id, quantity, unit_price, total_price, delivery_time_days, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			po.ID, po.SessionID, po.ItemID, po.VendorID, po.Quantity,
			po.UnitPrice.String(), po.TotalPrice.String(), po.DeliveryTimeDays, toMillis(po.CreatedAt)); err != nil {
			return fmt.Errorf("insert purchase order: %w", err)
		}

		item, err := s.updateStockTx(ctx, tx, po.ItemID, "purchase_order:"+po.ID, func(current int) (int, error) {
			return current + po.Quantity, nil
		})
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPurchaseOrders returns orders for an item, newest first.
func (s *SQLiteStore) ListPurchaseOrders(ctx context.Context, itemID string) ([]domain.PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, item_id, vendor_id, quantity, unit_price, total_price, delivery_time_days, created_at
		FROM purchase_orders WHERE item_id = ? ORDER BY created_at DESC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query purchase orders: %w", err)
	}
	defer closeRows(rows, "purchase_orders")

	var out []domain.PurchaseOrder
	for rows.Next() {
		var po domain.PurchaseOrder
		var unit, total string
		var createdAt int64
		if err := rows.Scan(&po.ID, &po.SessionID, &po.ItemID, &po.VendorID, &po.Quantity,
			&unit, &total, &po.DeliveryTimeDays, &createdAt); err != nil {
			return nil, fmt.Errorf("scan purchase order row: %w", err)
		}
		if po.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, fmt.Errorf("purchase order %s unit price: %w", po.ID, err)
		}
		if po.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("purchase order %s total price: %w", po.ID, err)
		}
		po.CreatedAt = fromMillis(createdAt)
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase orders: %w", err)
	}
	return out, nil
}

// --- sessions ---

// ArchiveSession upserts a session snapshot and, once recorded, its decision.
func (s *SQLiteStore) ArchiveSession(ctx context.Context, snap domain.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", snap.ID, err)
	}

	var bestVendor, bestTotal any
	if snap.BestProposal != nil {
		bestVendor = snap.BestProposal.VendorID
		bestTotal = snap.BestProposal.TotalPrice.String()
	}

	return shared.RetryOnConflict(ctx, s.retry, "archive session", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, item_id, urgency, trigger_kind, state, terminal_tag, commit_status,
				best_vendor_id, best_total_price, confidence, snapshot_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				state = excluded.state,
				terminal_tag = excluded.terminal_tag,
				commit_status = excluded.commit_status,
				best_vendor_id = excluded.best_vendor_id,
				best_total_price = excluded.best_total_price,
				confidence = excluded.confidence,
				snapshot_json = excluded.snapshot_json,
				updated_at = excluded.updated_at`,
			snap.ID, snap.DemandItemID, string(snap.Urgency), string(snap.Trigger), string(snap.State),
			string(snap.TerminalTag), string(snap.CommitStatus), bestVendor, bestTotal,
			snap.ConfidenceScore, string(payload), toMillis(snap.CreatedAt), toMillis(snap.UpdatedAt),
		); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		if d := snap.Decision; d != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO decisions (session_id, approved, notes, decided_by, decided_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(session_id) DO NOTHING`,
				snap.ID, boolToInt(d.Approved), d.Notes, d.DecidedBy, toMillis(d.DecidedAt),
			); err != nil {
				return fmt.Errorf("insert decision: %w", err)
			}
		}

		return tx.Commit()
	})
}

// GetArchivedSession loads an archived session snapshot.
func (s *SQLiteStore) GetArchivedSession(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot_json FROM sessions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotArchived, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	var snap domain.SessionSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &snap, nil
}

// --- notifications ---

// SaveNotification persists an event.
func (s *SQLiteStore) SaveNotification(ctx context.Context, ev domain.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	return shared.RetryOnConflict(ctx, s.retry, "save notification", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO notifications (id, type, severity, session_id, item_id, title, message, requires_action, delivered, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, string(ev.Type), string(ev.Severity), ev.SessionID, ev.ItemID,
			ev.Title, ev.Message, boolToInt(ev.RequiresAction), boolToInt(ev.Delivered), toMillis(ev.CreatedAt),
		)
		return err
	})
}

// MarkNotificationDelivered flags an event as delivered.
func (s *SQLiteStore) MarkNotificationDelivered(ctx context.Context, id string) error {
	return shared.RetryOnConflict(ctx, s.retry, "mark notification delivered", func() error {
		result, err := s.db.ExecContext(ctx, `UPDATE notifications SET delivered = 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("MarkNotificationDelivered affected 0 rows", "notification_id", id)
		}
		return nil
	})
}

// ListNotifications returns the most recent events, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, session_id, item_id, title, message, requires_action, delivered, created_at
		FROM notifications ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer closeRows(rows, "notifications")

	var out []domain.Event
	for rows.Next() {
		var ev domain.Event
		var typ, sev string
		var requiresAction, delivered int
		var createdAt int64
		if err := rows.Scan(&ev.ID, &typ, &sev, &ev.SessionID, &ev.ItemID, &ev.Title, &ev.Message,
			&requiresAction, &delivered, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.Severity = domain.Severity(sev)
		ev.RequiresAction = requiresAction != 0
		ev.Delivered = delivered != 0
		ev.CreatedAt = fromMillis(createdAt)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

var _ Repository = (*SQLiteStore)(nil)
