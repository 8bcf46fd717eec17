package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/retoucher/internal/batch"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
)

// LoadBatch replaces the batch with one pending item per source.
func (s *Session) LoadBatch(sources []*models.Snapshot) (*batch.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline != nil && s.pipeline.Running() {
		return nil, batch.ErrRunning
	}
	s.pipeline = batch.New(sources, batch.WithChangeHook(func(item models.BatchItem) {
		slog.Debug("Batch item changed", "session", s.ID, "item", item.ID, "status", item.Status)
	}))
	return s.pipeline, nil
}

// RunBatch processes every pending or failed item with the active tab's
// operation. It blocks until the run ends.
func (s *Session) RunBatch(ctx context.Context, prompt string) error {
	p, op, kind, prompt, err := s.batchCall(prompt)
	if err != nil {
		return err
	}
	return s.runBatch(ctx, p, op, kind, prompt)
}

// StartBatch checks the same preconditions as RunBatch, then runs the batch
// in the background. The channel receives the run's result.
func (s *Session) StartBatch(ctx context.Context, prompt string) (<-chan error, error) {
	p, op, kind, prompt, err := s.batchCall(prompt)
	if err != nil {
		return nil, err
	}
	if p.Running() {
		return nil, batch.ErrRunning
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.runBatch(ctx, p, op, kind, prompt)
	}()
	return done, nil
}

func (s *Session) runBatch(ctx context.Context, p *batch.Pipeline, op batch.Operation, kind providers.Kind, prompt string) error {
	if err := p.Start(ctx, op, prompt); err != nil {
		return err
	}
	if category, ok := tabForKind(kind).PromptCategory(); ok && s.prompts != nil {
		if _, err := s.prompts.Add(ctx, category, prompt); err != nil {
			slog.Warn("Failed to record prompt", "category", category, "error", err)
		}
	}
	return nil
}

// CancelBatch asks a running batch to stop after the item in flight.
func (s *Session) CancelBatch() {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	if p != nil {
		p.Cancel()
	}
}

// RetryBatchItem re-runs one failed item.
func (s *Session) RetryBatchItem(ctx context.Context, id, prompt string) error {
	p, op, _, prompt, err := s.batchCall(prompt)
	if err != nil {
		return err
	}
	return p.Retry(ctx, id, op, prompt)
}

// Batch reports the loaded batch, or nil.
func (s *Session) Batch() *BatchState {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	return batchState(p)
}

// BatchPipeline exposes the loaded pipeline for callers that need results.
func (s *Session) BatchPipeline() *batch.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline
}

func (s *Session) batchCall(prompt string) (*batch.Pipeline, batch.Operation, providers.Kind, string, error) {
	s.mu.Lock()
	p := s.pipeline
	kind := s.tab.Kind()
	if strings.TrimSpace(prompt) == "" {
		prompt = s.prompt
	}
	s.mu.Unlock()

	prompt = strings.TrimSpace(prompt)
	if p == nil {
		return nil, nil, "", "", ErrNoBatch
	}
	if prompt == "" {
		return nil, nil, "", "", ErrPromptRequired
	}
	op, err := s.editor.Operation(kind)
	if err != nil {
		return nil, nil, "", "", err
	}
	return p, op, kind, prompt, nil
}

func tabForKind(k providers.Kind) Tab {
	switch k {
	case providers.KindRetouch:
		return TabRetouch
	case providers.KindFilter:
		return TabFilter
	}
	return TabAdjust
}
