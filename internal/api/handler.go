// Package api provides HTTP handlers for the negotiation orchestrator.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/inventory"
	"github.com/Jayesh445/VeriChain-sub000/internal/negotiation"
)

// Negotiator is the orchestrator surface exposed over HTTP.
type Negotiator interface {
	StartNegotiation(ctx context.Context, d negotiation.Demand) (domain.SessionSnapshot, error)
	GetSession(ctx context.Context, id string) (domain.SessionSnapshot, error)
	ListActiveSessions(ctx context.Context) []domain.SessionSnapshot
	ListPendingApprovals(ctx context.Context) []domain.SessionSnapshot
	ListByState(ctx context.Context, state domain.State) []domain.SessionSnapshot
	Decide(ctx context.Context, sessionID string, approved bool, notes string) (domain.SessionSnapshot, error)
}

// Inventory applies stock mutations.
type Inventory interface {
	SetStock(ctx context.Context, itemID string, quantity int) (inventory.StockUpdate, error)
	RecordSale(ctx context.Context, itemID string, quantity int) (inventory.StockUpdate, error)
	Get(ctx context.Context, itemID string) (*inventory.Detail, error)
}

// Vendors lists the vendor directory.
type Vendors interface {
	ListVendors(ctx context.Context, category string) ([]domain.Vendor, error)
}

// Notifications lists recent events.
type Notifications interface {
	List(ctx context.Context, limit int) ([]domain.Event, error)
}

// Archive loads sessions that were pruned from memory.
type Archive interface {
	GetArchivedSession(ctx context.Context, id string) (*domain.SessionSnapshot, error)
}

// Handler serves the orchestrator API.
type Handler struct {
	negotiator    Negotiator
	inventory     Inventory
	vendors       Vendors
	notifications Notifications
	archive       Archive
}

// NewHandler creates a new Handler. archive may be nil.
func NewHandler(n Negotiator, inv Inventory, vendors Vendors, notes Notifications, archive Archive) *Handler {
	return &Handler{
		negotiator:    n,
		inventory:     inv,
		vendors:       vendors,
		notifications: notes,
		archive:       archive,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, negotiation.ErrInvalidDemand),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, negotiation.ErrSessionNotFound),
		errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, negotiation.ErrAlreadyResolved),
		errors.Is(err, negotiation.ErrNoDecisionTwice),
		errors.Is(err, negotiation.ErrActiveSessionExists),
		errors.Is(err, negotiation.ErrAlreadyTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server errors and writes err with its mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, status, "internal error")
		return
	}
	Error(w, status, err.Error())
}

var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
