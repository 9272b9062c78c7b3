package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/negotiation"
)

type startRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Urgency  string `json:"urgency"`
}

type decisionRequest struct {
	Approved *bool  `json:"approved"`
	Notes    string `json:"notes"`
}

type conflictResponse struct {
	Error   string                  `json:"error"`
	Session *domain.SessionSnapshot `json:"session,omitempty"`
}

// StartNegotiation opens a manual session.
func (h *Handler) StartNegotiation(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ItemID == "" {
		writeError(w, r, fmt.Errorf("%w: item_id is required", negotiation.ErrInvalidDemand))
		return
	}
	urgency, err := domain.ParseUrgency(req.Urgency)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", negotiation.ErrInvalidDemand, err))
		return
	}

	snap, err := h.negotiator.StartNegotiation(r.Context(), negotiation.Demand{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Urgency:  urgency,
	})
	if err != nil {
		if errors.Is(err, negotiation.ErrActiveSessionExists) {
			resp := conflictResponse{Error: err.Error()}
			for _, s := range h.negotiator.ListActiveSessions(r.Context()) {
				if s.DemandItemID == req.ItemID {
					resp.Session = &s
					break
				}
			}
			JSON(w, http.StatusConflict, resp)
			return
		}
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, snap)
}

// ListNegotiations lists sessions by state, defaulting to the active ones.
func (h *Handler) ListNegotiations(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" || state == "active" {
		JSON(w, http.StatusOK, h.negotiator.ListActiveSessions(r.Context()))
		return
	}
	st := domain.State(state)
	if !st.Valid() {
		Error(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", state))
		return
	}
	JSON(w, http.StatusOK, h.negotiator.ListByState(r.Context(), st))
}

// ListPending lists sessions awaiting a decision.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.negotiator.ListPendingApprovals(r.Context()))
}

// GetNegotiation returns one session, falling back to the archive for
// sessions pruned from memory.
func (h *Handler) GetNegotiation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.negotiator.GetSession(r.Context(), id)
	if err == nil {
		JSON(w, http.StatusOK, snap)
		return
	}
	if errors.Is(err, negotiation.ErrSessionNotFound) && h.archive != nil {
		if archived, archErr := h.archive.GetArchivedSession(r.Context(), id); archErr == nil {
			JSON(w, http.StatusOK, archived)
			return
		}
	}
	writeError(w, r, err)
}

// Decide records the approval decision for a session.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Approved == nil {
		Error(w, http.StatusBadRequest, "approved is required")
		return
	}

	snap, err := h.negotiator.Decide(r.Context(), chi.URLParam(r, "id"), *req.Approved, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, snap)
}
