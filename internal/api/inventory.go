package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func decodeQuantity(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return 0, false
	}
	if req.Quantity == nil {
		Error(w, http.StatusBadRequest, "quantity is required")
		return 0, false
	}
	return *req.Quantity, true
}

// SetStock overwrites an item's stock level and runs the reorder check.
func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	qty, ok := decodeQuantity(w, r)
	if !ok {
		return
	}
	update, err := h.inventory.SetStock(r.Context(), chi.URLParam(r, "itemID"), qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, update)
}

// RecordSale decrements stock by the sold quantity and runs the reorder check.
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	qty, ok := decodeQuantity(w, r)
	if !ok {
		return
	}
	update, err := h.inventory.RecordSale(r.Context(), chi.URLParam(r, "itemID"), qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, update)
}

// GetItem returns an item with its recent movements and orders.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	detail, err := h.inventory.Get(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, detail)
}

// ListVendors lists the vendor directory.
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.vendors.ListVendors(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, vendors)
}

// ListNotifications returns recent events, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			Error(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	events, err := h.notifications.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, events)
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/negotiations", func(r chi.Router) {
			r.Post("/", h.StartNegotiation)
			r.Get("/", h.ListNegotiations)
			r.Get("/pending", h.ListPending)
			r.Get("/{id}", h.GetNegotiation)
			r.Post("/{id}/decision", h.Decide)
		})
		r.Route("/inventory/{itemID}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Post("/stock", h.SetStock)
			r.Post("/sales", h.RecordSale)
		})
		r.Get("/vendors", h.ListVendors)
		r.Get("/notifications", h.ListNotifications)
	})
}
