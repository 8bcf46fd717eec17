// Package autosave writes the editing session to a store shortly after it
// stops changing, and reads it back on startup.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/storage"
)

// DefaultDelay is how long the session must stay unchanged before it is
// written.
const DefaultDelay = 500 * time.Millisecond

// KeyPrefix starts the store key of every saved session.
const KeyPrefix = "session:"

// SessionKey is the store key of the session with the given id.
func SessionKey(id string) string {
	return KeyPrefix + id
}

// SavedIDs lists the ids of the sessions saved in store.
func SavedIDs(ctx context.Context, store storage.Store) ([]string, error) {
	keys, err := store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved sessions: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, KeyPrefix))
	}
	return ids, nil
}

// Saver debounces writes of one session record.
type Saver struct {
	store storage.Store
	key   string
	delay time.Duration

	// writeMu orders store writes against Clear's delete.
	writeMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending func() models.SessionRecord
	stopped bool
}

func NewSaver(store storage.Store, key string, delay time.Duration) *Saver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Saver{store: store, key: key, delay: delay}
}

// Schedule arranges for record to be captured and written once no further
// Schedule call has arrived for the saver's delay.
func (s *Saver) Schedule(record func() models.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = record
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Saver) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	record := s.take()
	s.mu.Unlock()

	if record == nil {
		return
	}
	if err := s.write(context.Background(), gen, record); err != nil {
		slog.Error("Autosave failed", "key", s.key, "error", err)
	}
}

// take claims the pending record. Callers hold s.mu.
func (s *Saver) take() func() models.SessionRecord {
	record := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return record
}

// Flush writes any scheduled record immediately.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	record := s.take()
	gen := s.gen
	s.mu.Unlock()
	if record == nil {
		return nil
	}
	return s.write(ctx, gen, record)
}

// write stores record unless a later Schedule, Clear or Stop has superseded
// generation gen.
func (s *Saver) write(ctx context.Context, gen uint64, record func() models.SessionRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return nil
	}

	rec := record()
	rec.SavedAt = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.store.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	slog.Debug("Session saved", "key", s.key, "images", len(rec.Images), "cursor", rec.CursorIndex)
	return nil
}

// Load returns the saved record, or false when nothing has been saved.
func (s *Saver) Load(ctx context.Context) (*models.SessionRecord, bool, error) {
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec models.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode saved session: %w", err)
	}
	return &rec, true, nil
}

// Clear drops anything scheduled and deletes the saved record.
func (s *Saver) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.take()
	s.gen++
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.store.Delete(ctx, s.key)
}

// Stop cancels any scheduled write. Later Schedule calls are ignored.
func (s *Saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.take()
	s.gen++
	s.stopped = true
}
