// Package editing turns editing intents into provider requests and the
// provider's answers into new snapshots.
package editing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/retoucher/internal/batch"
	"github.com/lehigh-university-libraries/retoucher/internal/gemini"
	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/mask"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/openai"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
)

// ErrNotBatchable is returned for kinds that need per-image input.
var ErrNotBatchable = errors.New("operation cannot run in a batch")

// ProviderError wraps a failure reported by the edit provider.
type ProviderError struct {
	Kind providers.Kind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("failed to %s image: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type Service struct {
	provider    providers.Provider
	model       string
	temperature float64
	maxSide     int
}

type Option func(*Service)

func WithModel(model string) Option {
	return func(s *Service) { s.model = model }
}

func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// WithMaxSide caps the longest side of expanded canvases.
func WithMaxSide(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSide = n
		}
	}
}

func NewService(provider providers.Provider, opts ...Option) *Service {
	s := &Service{
		provider:    provider,
		temperature: 0.4,
		maxSide:     images.DefaultMaxSide,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retouch edits the region of src described by prompt. A nil region edits
// the whole image.
func (s *Service) Retouch(ctx context.Context, src *models.Snapshot, prompt string, region *models.Region) (*models.Snapshot, error) {
	req := s.request(providers.KindRetouch, src)
	req.Region = region
	req.Prompt = buildPrompt(providers.KindRetouch, prompt, region, false)
	return s.call(ctx, src, req)
}

// Filter applies a stylistic filter, restricted to the white areas of m when
// m is non-nil.
func (s *Service) Filter(ctx context.Context, src *models.Snapshot, prompt string, m *mask.Artifact) (*models.Snapshot, error) {
	return s.masked(ctx, providers.KindFilter, src, prompt, m)
}

// Adjust applies a tonal adjustment, restricted to the white areas of m when
// m is non-nil.
func (s *Service) Adjust(ctx context.Context, src *models.Snapshot, prompt string, m *mask.Artifact) (*models.Snapshot, error) {
	return s.masked(ctx, providers.KindAdjust, src, prompt, m)
}

func (s *Service) masked(ctx context.Context, kind providers.Kind, src *models.Snapshot, prompt string, m *mask.Artifact) (*models.Snapshot, error) {
	req := s.request(kind, src)
	req.Prompt = buildPrompt(kind, prompt, nil, m != nil)
	if m != nil {
		scaled := images.ScaleMask(m.Image, src.Width(), src.Height())
		data, err := images.EncodePNG(scaled)
		if err != nil {
			return nil, fmt.Errorf("failed to export mask: %w", err)
		}
		req.Mask = data
	}
	return s.call(ctx, src, req)
}

// Expand grows the canvas of src to width x height and asks the model to
// fill the new area. The result is capped at the service's max side.
func (s *Service) Expand(ctx context.Context, src *models.Snapshot, width, height int, prompt string) (*models.Snapshot, error) {
	img, err := images.Decode(src)
	if err != nil {
		return nil, err
	}
	canvas, err := images.PadForExpansion(img, width, height, s.maxSide)
	if err != nil {
		return nil, err
	}
	padded, err := images.SnapshotFromImage(src.Name(), canvas)
	if err != nil {
		return nil, err
	}

	slog.Info("Expanding canvas", "image", src.Name(), "from_width", src.Width(), "from_height", src.Height(),
		"to_width", padded.Width(), "to_height", padded.Height())

	req := s.request(providers.KindExpand, padded)
	req.Prompt = buildPrompt(providers.KindExpand, prompt, nil, false)
	return s.call(ctx, padded, req)
}

// Operation adapts one kind of edit to the batch pipeline. Batch items carry
// no mask or selection, so edits apply to the whole image.
func (s *Service) Operation(kind providers.Kind) (batch.Operation, error) {
	switch kind {
	case providers.KindRetouch:
		return func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
			return s.Retouch(ctx, src, prompt, nil)
		}, nil
	case providers.KindFilter:
		return func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
			return s.Filter(ctx, src, prompt, nil)
		}, nil
	case providers.KindAdjust:
		return func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
			return s.Adjust(ctx, src, prompt, nil)
		}, nil
	case providers.KindExpand:
		return nil, fmt.Errorf("%w: %s", ErrNotBatchable, kind)
	}
	return nil, fmt.Errorf("unsupported operation: %s", kind)
}

func (s *Service) request(kind providers.Kind, src *models.Snapshot) providers.Request {
	return providers.Request{
		Kind:        kind,
		Image:       src.Bytes(),
		MIMEType:    src.MIMEType(),
		Width:       src.Width(),
		Height:      src.Height(),
		Model:       s.model,
		Temperature: s.temperature,
	}
}

// call sends req and turns the answer into a snapshot the size of want.
func (s *Service) call(ctx context.Context, want *models.Snapshot, req providers.Request) (*models.Snapshot, error) {
	res, err := s.provider.EditImage(ctx, req)
	if err != nil {
		return nil, &ProviderError{Kind: req.Kind, Err: err}
	}
	if res == nil || len(res.Data) == 0 {
		return nil, &ProviderError{Kind: req.Kind, Err: providers.ErrEmptyResponse}
	}

	img, _, err := image.Decode(bytes.NewReader(res.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode edited image: %w", err)
	}
	img, _ = images.Reconcile(img, want.Width(), want.Height())

	out, err := images.SnapshotFromImage(want.Name(), img)
	if err != nil {
		return nil, err
	}
	slog.Info("Edited image", "kind", req.Kind, "image", out.Name(), "bytes", out.Size())
	return out, nil
}

// ProviderFromEnv builds the named provider. An empty name reads
// RETOUCHER_PROVIDER and defaults to gemini.
func ProviderFromEnv(name string) (providers.Provider, error) {
	switch name = ProviderName(name); name {
	case "gemini":
		return gemini.New(""), nil
	case "openai":
		return openai.New("", ""), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// ProviderName resolves an empty provider name from RETOUCHER_PROVIDER,
// defaulting to gemini.
func ProviderName(name string) string {
	if name == "" {
		name = os.Getenv("RETOUCHER_PROVIDER")
	}
	if name == "" {
		name = "gemini"
	}
	return name
}

// DefaultModel returns the model configured for provider in the environment.
func DefaultModel(provider string) string {
	switch ProviderName(provider) {
	case "openai":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			return openai.DefaultModel
		}
		return model
	case "gemini":
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			return gemini.DefaultModel
		}
		return model
	default:
		return ""
	}
}
