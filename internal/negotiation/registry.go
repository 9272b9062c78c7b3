package negotiation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// Registry is the in-memory index of negotiation sessions. It guarantees at
// most one non-terminal session per item.
//
// Lock order is registry then session. Session methods never call back into
// the registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// activeByItem maps item id to the id of its non-terminal session, if any.
	activeByItem map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		activeByItem: make(map[string]string),
	}
}

// CreateIfAbsent inserts the session built by build unless the item already
// has a non-terminal session or one whose order is still being committed. The check and the insert happen under one
// write lock. When a session already exists it is returned with
// ErrActiveSessionExists.
func (r *Registry) CreateIfAbsent(itemID string, build func() *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.activeByItem[itemID]; ok {
		if existing, ok := r.sessions[id]; ok {
			if !existing.holdsItem() {
				delete(r.activeByItem, itemID)
			} else {
				return existing, fmt.Errorf("%w: item %s has session %s", ErrActiveSessionExists, itemID, id)
			}
		}
	}

	s := build()
	r.sessions[s.ID()] = s
	r.activeByItem[itemID] = s.ID()
	return s, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// ActiveForItem returns the session holding the item, if any.
func (r *Registry) ActiveForItem(itemID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.activeByItem[itemID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	if !ok || !s.holdsItem() {
		return nil, false
	}
	return s, true
}

// Release drops the item's active index entry once its session no longer
// holds the item.
func (r *Registry) Release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeByItem[s.ItemID()] == s.ID() && !s.holdsItem() {
		delete(r.activeByItem, s.ItemID())
	}
}

// ListByState returns snapshots of the sessions in the given state, oldest first.
func (r *Registry) ListByState(state domain.State) []domain.SessionSnapshot {
	return r.list(func(snap domain.SessionSnapshot) bool { return snap.State == state })
}

// ListActive returns snapshots of every non-terminal session, oldest first.
func (r *Registry) ListActive() []domain.SessionSnapshot {
	return r.list(func(snap domain.SessionSnapshot) bool { return !snap.State.Terminal() })
}

// ListAll returns snapshots of every session, oldest first.
func (r *Registry) ListAll() []domain.SessionSnapshot {
	return r.list(func(domain.SessionSnapshot) bool { return true })
}

func (r *Registry) list(keep func(domain.SessionSnapshot) bool) []domain.SessionSnapshot {
	r.mu.RLock()
	out := make([]domain.SessionSnapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		snap := s.Snapshot()
		if keep(snap) {
			out = append(out, snap)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sessionsSnapshot returns the current session pointers for iteration
// without holding the registry lock.
func (r *Registry) sessionsSnapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Remove deletes a terminal session whose retention window has elapsed.
func (r *Registry) Remove(id string, now time.Time, retention time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	since, terminal := s.terminalSince()
	if !terminal {
		return fmt.Errorf("%w: %s", ErrNotTerminal, id)
	}
	if now.Sub(since) < retention {
		return fmt.Errorf("%w: %s resolved at %s", ErrRetentionNotElapsed, id, since.UTC().Format(time.RFC3339))
	}

	delete(r.sessions, id)
	if r.activeByItem[s.ItemID()] == id {
		delete(r.activeByItem, s.ItemID())
	}
	return nil
}

// Prune removes every terminal session past retention and returns their
// final snapshots.
func (r *Registry) Prune(now time.Time, retention time.Duration) []domain.SessionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned []domain.SessionSnapshot
	for id, s := range r.sessions {
		since, terminal := s.terminalSince()
		if !terminal || now.Sub(since) < retention {
			continue
		}
		pruned = append(pruned, s.Snapshot())
		delete(r.sessions, id)
		if r.activeByItem[s.ItemID()] == id {
			delete(r.activeByItem, s.ItemID())
		}
	}
	return pruned
}

// Count returns the number of tracked sessions and how many are non-terminal.
func (r *Registry) Count() (total, active int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if !s.State().Terminal() {
			active++
		}
	}
	return len(r.sessions), active
}
