// Package batch drives many independent edit requests through one external
// operation, one item at a time, with cooperative cancellation and explicit
// per-item retry.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

var (
	ErrRunning      = errors.New("batch is already running")
	ErrNotRetryable = errors.New("only failed items can be retried")
	ErrUnknownItem  = errors.New("unknown batch item")
)

// Operation turns a source image and prompt into a result image. Errors are
// recorded verbatim on the item.
type Operation func(ctx context.Context, source *models.Snapshot, prompt string) (*models.Snapshot, error)

// Pipeline owns the items of one batch and their cancellation flag.
type Pipeline struct {
	mu      sync.RWMutex
	items   []*models.BatchItem
	index   map[string]int
	running bool

	cancelled atomic.Bool
	onChange  func(models.BatchItem)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChangeHook registers fn to observe every item transition. It is called
// with a copy of the item, outside the pipeline lock.
func WithChangeHook(fn func(models.BatchItem)) Option {
	return func(p *Pipeline) { p.onChange = fn }
}

// New creates one pending item per source, in order.
func New(sources []*models.Snapshot, opts ...Option) *Pipeline {
	p := &Pipeline{
		items: make([]*models.BatchItem, 0, len(sources)),
		index: make(map[string]int, len(sources)),
	}
	for _, src := range sources {
		item := &models.BatchItem{
			ID:     uuid.NewString(),
			Source: src,
			Status: models.BatchPending,
		}
		p.index[item.ID] = len(p.items)
		p.items = append(p.items, item)
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start processes every pending or failed item sequentially in submission
// order. It returns once the run is over, either exhausted or cancelled. With
// nothing to do it returns immediately and touches nothing.
func (p *Pipeline) Start(ctx context.Context, op Operation, prompt string) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrRunning
	}
	var selected []string
	for _, item := range p.items {
		if item.Status == models.BatchPending || item.Status == models.BatchError {
			selected = append(selected, item.ID)
		}
	}
	if len(selected) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.cancelled.Store(false)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	slog.Info("Starting batch run", "items", len(selected))
	for i, id := range selected {
		if p.cancelled.Load() || ctx.Err() != nil {
			slog.Info("Batch run cancelled", "processed", i, "remaining", len(selected)-i)
			return nil
		}
		if !p.begin(id, false) {
			// retried to completion while the loop was elsewhere
			continue
		}
		slog.Info("Processing batch item", "id", id, "progress", i+1, "total", len(selected))
		p.process(ctx, id, op, prompt)
	}
	slog.Info("Batch run finished", "items", len(selected))
	return nil
}

// Cancel asks the running loop to stop before its next item. The item in
// flight finishes and is recorded normally.
func (p *Pipeline) Cancel() {
	p.cancelled.Store(true)
}

// Cancelled reports whether the current or last run was asked to stop.
func (p *Pipeline) Cancelled() bool {
	return p.cancelled.Load()
}

// Running reports whether Start is in progress.
func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Retry re-runs a single failed item regardless of where the batch loop is.
func (p *Pipeline) Retry(ctx context.Context, id string, op Operation, prompt string) error {
	p.mu.RLock()
	i, ok := p.index[id]
	var status models.BatchStatus
	if ok {
		status = p.items[i].Status
	}
	p.mu.RUnlock()
	if !ok {
		return ErrUnknownItem
	}
	if status != models.BatchError {
		return ErrNotRetryable
	}
	if !p.begin(id, true) {
		return ErrNotRetryable
	}
	slog.Info("Retrying batch item", "id", id)
	p.process(ctx, id, op, prompt)
	return nil
}

// Reset puts every item back to pending and drops results.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrRunning
	}
	changed := make([]models.BatchItem, 0, len(p.items))
	for _, item := range p.items {
		item.Status = models.BatchPending
		item.Result = nil
		item.ErrorMessage = ""
		changed = append(changed, *item)
	}
	p.mu.Unlock()
	for _, item := range changed {
		p.notify(item)
	}
	return nil
}

// Items returns copies of all items in submission order.
func (p *Pipeline) Items() []models.BatchItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.BatchItem, len(p.items))
	for i, item := range p.items {
		out[i] = *item
	}
	return out
}

// Item returns a copy of one item.
func (p *Pipeline) Item(id string) (models.BatchItem, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[id]
	if !ok {
		return models.BatchItem{}, false
	}
	return *p.items[i], true
}

// begin moves an item to processing. The loop only takes pending or failed
// items; retry only takes failed ones.
func (p *Pipeline) begin(id string, retry bool) bool {
	p.mu.Lock()
	item := p.items[p.index[id]]
	switch {
	case item.Status == models.BatchError:
	case item.Status == models.BatchPending && !retry:
	default:
		p.mu.Unlock()
		return false
	}
	item.Status = models.BatchProcessing
	snapshot := *item
	p.mu.Unlock()
	p.notify(snapshot)
	return true
}

func (p *Pipeline) process(ctx context.Context, id string, op Operation, prompt string) {
	p.mu.RLock()
	source := p.items[p.index[id]].Source
	p.mu.RUnlock()

	result, err := op(ctx, source, prompt)

	p.mu.Lock()
	item := p.items[p.index[id]]
	if err != nil {
		item.Status = models.BatchError
		item.ErrorMessage = err.Error()
		slog.Error("Batch item failed", "id", id, "err", err)
	} else {
		item.Status = models.BatchDone
		item.Result = result
		item.ErrorMessage = ""
	}
	snapshot := *item
	p.mu.Unlock()
	p.notify(snapshot)
}

func (p *Pipeline) notify(item models.BatchItem) {
	if p.onChange != nil {
		p.onChange(item)
	}
}
