// Package history keeps the linear undo/redo list of image snapshots for an
// editing session. Index 0 is the original upload; committing after an undo
// permanently discards the redoable tail.
package history

import (
	"sync"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

// History is an ordered list of snapshots plus a cursor. The zero value is not
// usable; construct with New.
type History struct {
	mu        sync.RWMutex
	snapshots []*models.Snapshot
	cursor    int

	onCommit func(*models.Snapshot)
	onChange func()
}

// Option configures a History.
type Option func(*History)

// WithCommitHook registers fn to run after every commit. Hooks run outside
// the lock so they may read the history.
func WithCommitHook(fn func(*models.Snapshot)) Option {
	return func(h *History) { h.onCommit = fn }
}

// WithChangeHook registers fn to run after every observable change.
func WithChangeHook(fn func()) Option {
	return func(h *History) { h.onChange = fn }
}

// New returns an empty history.
func New(opts ...Option) *History {
	h := &History{cursor: -1}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Commit drops any redo branch, appends s and moves the cursor onto it.
func (h *History) Commit(s *models.Snapshot) {
	if s == nil {
		return
	}
	h.mu.Lock()
	h.snapshots = append(h.snapshots[:h.cursor+1:h.cursor+1], s)
	h.cursor = len(h.snapshots) - 1
	h.mu.Unlock()

	if h.onCommit != nil {
		h.onCommit(s)
	}
	h.changed()
}

// Undo steps the cursor back. It reports false and changes nothing at the
// original.
func (h *History) Undo() bool {
	h.mu.Lock()
	if h.cursor <= 0 {
		h.mu.Unlock()
		return false
	}
	h.cursor--
	h.mu.Unlock()
	h.changed()
	return true
}

// Redo steps the cursor forward. It reports false and changes nothing at the
// newest entry.
func (h *History) Redo() bool {
	h.mu.Lock()
	if h.cursor >= len(h.snapshots)-1 {
		h.mu.Unlock()
		return false
	}
	h.cursor++
	h.mu.Unlock()
	h.changed()
	return true
}

// ResetToOriginal moves the cursor to index 0 without discarding anything.
func (h *History) ResetToOriginal() bool {
	h.mu.Lock()
	if len(h.snapshots) == 0 || h.cursor == 0 {
		h.mu.Unlock()
		return false
	}
	h.cursor = 0
	h.mu.Unlock()
	h.changed()
	return true
}

// Clear empties the history.
func (h *History) Clear() {
	h.mu.Lock()
	h.snapshots = nil
	h.cursor = -1
	h.mu.Unlock()
	h.changed()
}

// Load replaces the whole list, e.g. when restoring a saved session. The
// cursor is clamped into range.
func (h *History) Load(snapshots []*models.Snapshot, cursor int) {
	h.mu.Lock()
	h.snapshots = append([]*models.Snapshot(nil), snapshots...)
	switch {
	case len(h.snapshots) == 0:
		h.cursor = -1
	case cursor < 0:
		h.cursor = 0
	case cursor >= len(h.snapshots):
		h.cursor = len(h.snapshots) - 1
	default:
		h.cursor = cursor
	}
	h.mu.Unlock()
	h.changed()
}

// Current returns the snapshot under the cursor, or nil when empty.
func (h *History) Current() *models.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cursor < 0 {
		return nil
	}
	return h.snapshots[h.cursor]
}

// Original returns the first snapshot, or nil when empty.
func (h *History) Original() *models.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.snapshots) == 0 {
		return nil
	}
	return h.snapshots[0]
}

func (h *History) CanUndo() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor > 0
}

func (h *History) CanRedo() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor < len(h.snapshots)-1
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}

func (h *History) Cursor() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// Snapshots returns a copy of the list together with the cursor, read in one
// step so the pair is consistent.
func (h *History) Snapshots() ([]*models.Snapshot, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*models.Snapshot(nil), h.snapshots...), h.cursor
}

func (h *History) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}
