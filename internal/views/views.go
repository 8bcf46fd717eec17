// Package views hands out short-lived display handles for snapshots. A
// handle is valid from Acquire until Release; the HTTP layer serves
// /views/{id} from it.
package views

import (
	"sync"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

type Handle struct {
	ID       string
	Snapshot *models.Snapshot
}

type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Acquire registers a new handle for s.
func (r *Registry) Acquire(s *models.Snapshot) *Handle {
	h := &Handle{ID: uuid.NewString(), Snapshot: s}
	r.mu.Lock()
	r.handles[h.ID] = h
	r.mu.Unlock()
	return h
}

// Release invalidates h. Releasing nil or an already released handle is a
// no-op that returns false.
func (r *Registry) Release(h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h.ID]; !ok {
		return false
	}
	delete(r.handles, h.ID)
	return true
}

func (r *Registry) Lookup(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Live is the number of unreleased handles.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
