// Package session is the editing controller: it holds one user's image
// history, viewport, mask and selection, and turns their intent into calls
// on the edit service.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/retoucher/internal/autosave"
	"github.com/lehigh-university-libraries/retoucher/internal/batch"
	"github.com/lehigh-university-libraries/retoucher/internal/history"
	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/mask"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/prompts"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
	"github.com/lehigh-university-libraries/retoucher/internal/viewport"
	"github.com/lehigh-university-libraries/retoucher/internal/views"
)

var (
	ErrPromptRequired    = errors.New("please enter a prompt")
	ErrSelectionRequired = errors.New("please select an area first")
	ErrMaskEmpty         = errors.New("please paint the area to change, or turn masking off")
	ErrNoImage           = errors.New("no image loaded")
	ErrBusy              = errors.New("an edit is already in progress")
	ErrMaskUnsupported   = errors.New("masking is only available on the adjust and filter tabs")
	ErrUnknownTab        = errors.New("unknown tab")
	ErrExpandTarget      = errors.New("please choose the new canvas size")
	ErrNoBatch           = errors.New("no batch loaded")
	ErrDisplaySize       = errors.New("invalid display size")
)

// DefaultBrushSize is the brush diameter in screen pixels.
const DefaultBrushSize = 30

// MaxDisplaySide bounds each side of the display size, and so of the mask
// buffer.
const MaxDisplaySide = 8192

// Editor performs the external edits. *editing.Service implements it.
type Editor interface {
	Retouch(ctx context.Context, src *models.Snapshot, prompt string, region *models.Region) (*models.Snapshot, error)
	Filter(ctx context.Context, src *models.Snapshot, prompt string, m *mask.Artifact) (*models.Snapshot, error)
	Adjust(ctx context.Context, src *models.Snapshot, prompt string, m *mask.Artifact) (*models.Snapshot, error)
	Expand(ctx context.Context, src *models.Snapshot, width, height int, prompt string) (*models.Snapshot, error)
	Operation(kind providers.Kind) (batch.Operation, error)
}

// Session is safe for concurrent use. The history is only ever mutated with
// mu held, so its hooks run under mu too.
type Session struct {
	ID string

	editor  Editor
	prompts *prompts.Book
	saver   *autosave.Saver
	views   *views.Registry
	history *history.History

	mu        sync.Mutex
	tab       Tab
	prompt    string
	masking   bool
	brushSize float64
	display   viewport.Size
	transform viewport.Transform
	drag      viewport.Drag
	mask      *mask.Buffer
	selection *viewport.Rect
	expandTo  *models.Region
	busy      bool
	lastErr   string
	view      *views.Handle
	pipeline  *batch.Pipeline
}

type Option func(*Session)

// WithPrompts records successful prompts in book.
func WithPrompts(book *prompts.Book) Option {
	return func(s *Session) { s.prompts = book }
}

// WithAutosave persists the history through saver after every change.
func WithAutosave(saver *autosave.Saver) Option {
	return func(s *Session) { s.saver = saver }
}

// WithViews shares a view registry between sessions.
func WithViews(r *views.Registry) Option {
	return func(s *Session) { s.views = r }
}

// WithID names the session, e.g. to resume a saved one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.ID = id
		}
	}
}

func WithBrushSize(px float64) Option {
	return func(s *Session) {
		if px > 0 {
			s.brushSize = px
		}
	}
}

func New(editor Editor, opts ...Option) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		editor:    editor,
		tab:       TabRetouch,
		brushSize: DefaultBrushSize,
		transform: viewport.Identity(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.views == nil {
		s.views = views.NewRegistry()
	}
	s.history = history.New(
		history.WithCommitHook(s.committedLocked),
		history.WithChangeHook(s.changedLocked),
	)
	return s
}

// committedLocked invalidates everything drawn against the previous image.
func (s *Session) committedLocked(*models.Snapshot) {
	s.clearMaskLocked()
	s.selection = nil
}

// changedLocked refreshes the view handle and schedules an autosave.
func (s *Session) changedLocked() {
	cur := s.history.Current()
	if s.view == nil || s.view.Snapshot != cur {
		s.views.Release(s.view)
		s.view = nil
		if cur != nil {
			s.view = s.views.Acquire(cur)
		}
	}
	if s.saver != nil && cur != nil {
		snapshots, cursor := s.history.Snapshots()
		s.saver.Schedule(func() models.SessionRecord { return record(snapshots, cursor) })
	}
}

func record(snapshots []*models.Snapshot, cursor int) models.SessionRecord {
	rec := models.SessionRecord{CursorIndex: cursor, Images: make([]models.SessionImage, 0, len(snapshots))}
	for _, snap := range snapshots {
		rec.Images = append(rec.Images, models.SessionImage{Name: snap.Name(), EncodedBytes: snap.Bytes()})
	}
	return rec
}

// Upload starts a new history with data as the original image.
func (s *Session) Upload(name string, data []byte) (*models.Snapshot, error) {
	snap, err := images.NewSnapshot(name, data)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	return snap, s.Open(snap)
}

// Open starts a new history from snap.
func (s *Session) Open(snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.history.Clear()
	s.history.Commit(snap)
	s.transform = viewport.Identity()
	s.lastErr = ""
	if err := s.resizeLocked(displayFor(snap)); err != nil {
		return err
	}
	slog.Info("Image loaded", "session", s.ID, "image", snap.Name(), "width", snap.Width(), "height", snap.Height())
	return nil
}

// SetTab switches the active tool. Leaving the mask-capable tabs drops the
// mask and turns masking off.
func (s *Session) SetTab(t Tab) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTab, t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.MaskCompatible() {
		s.masking = false
		s.clearMaskLocked()
	}
	s.tab = t
	return nil
}

func (s *Session) SetPrompt(p string) {
	s.mu.Lock()
	s.prompt = p
	s.mu.Unlock()
}

// SetMasking toggles painting mode. Turning it off discards the mask.
func (s *Session) SetMasking(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && !s.tab.MaskCompatible() {
		return ErrMaskUnsupported
	}
	s.masking = on
	if !on {
		s.clearMaskLocked()
	}
	return nil
}

func (s *Session) SetBrushSize(px float64) {
	if px <= 0 {
		return
	}
	s.mu.Lock()
	s.brushSize = px
	s.mu.Unlock()
}

// SetDisplaySize records the size the image is laid out at before zoom.
// The mask is rebuilt at that size, which discards any strokes.
func (s *Session) SetDisplaySize(size viewport.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resizeLocked(size)
}

// displayFor is the default display size of snap: its native size, scaled
// down to fit MaxDisplaySide.
func displayFor(snap *models.Snapshot) viewport.Size {
	w, h := float64(snap.Width()), float64(snap.Height())
	if longest := max(w, h); longest > MaxDisplaySide {
		w, h = max(1, math.Floor(w*MaxDisplaySide/longest)), max(1, math.Floor(h*MaxDisplaySide/longest))
	}
	return viewport.Size{Width: w, Height: h}
}

func (s *Session) resizeLocked(size viewport.Size) error {
	if size.Empty() || !(size.Width <= MaxDisplaySide && size.Height <= MaxDisplaySide) {
		return fmt.Errorf("%w: %vx%v", ErrDisplaySize, size.Width, size.Height)
	}
	buf, err := mask.NewBuffer(int(size.Width+0.5), int(size.Height+0.5))
	if err != nil {
		return err
	}
	s.display = size
	s.mask = buf
	s.selection = nil
	return nil
}

// SetSelection sets the rectangle (display coordinates) used by the retouch
// and crop tools. A nil or empty rectangle clears it.
func (s *Session) SetSelection(r *viewport.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == nil || r.Empty() {
		s.selection = nil
		return
	}
	n := r.Normalize()
	s.selection = &n
}

// SetExpandTarget sets the canvas size used when submitting on the expand tab.
func (s *Session) SetExpandTarget(width, height int) {
	s.mu.Lock()
	s.expandTo = &models.Region{Width: width, Height: height}
	s.mu.Unlock()
}

func (s *Session) clearMaskLocked() {
	if s.mask != nil {
		s.mask.Clear()
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Submit runs the active tab's operation on the current image.
func (s *Session) Submit(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	tab := s.tab
	s.mu.Unlock()

	switch tab {
	case TabCrop:
		return s.ApplyCrop(1)
	case TabExpand:
		s.mu.Lock()
		target := s.expandTo
		s.mu.Unlock()
		if target == nil {
			s.fail(ErrExpandTarget)
			return nil, ErrExpandTarget
		}
		return s.Expand(ctx, target.Width, target.Height)
	}

	s.mu.Lock()
	src, prompt, err := s.beginLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var call func() (*models.Snapshot, error)
	switch tab {
	case TabRetouch:
		if prompt == "" {
			err = ErrPromptRequired
			break
		}
		if s.selection == nil {
			err = ErrSelectionRequired
			break
		}
		rect := s.selection.ToNative(s.display, viewport.Size{Width: float64(src.Width()), Height: float64(src.Height())})
		if rect.Empty() {
			err = ErrSelectionRequired
			break
		}
		region := &models.Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
		call = func() (*models.Snapshot, error) { return s.editor.Retouch(ctx, src, prompt, region) }

	case TabAdjust, TabFilter:
		if prompt == "" {
			err = ErrPromptRequired
			break
		}
		var artifact *mask.Artifact
		if s.masking {
			artifact, err = s.mask.Export()
			if err != nil {
				break
			}
			if artifact == nil {
				err = ErrMaskEmpty
				break
			}
		}
		if tab == TabAdjust {
			call = func() (*models.Snapshot, error) { return s.editor.Adjust(ctx, src, prompt, artifact) }
		} else {
			call = func() (*models.Snapshot, error) { return s.editor.Filter(ctx, src, prompt, artifact) }
		}
	}
	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	s.busy = true
	s.mu.Unlock()

	return s.finish(ctx, tab, prompt, call)
}

// beginLocked checks the preconditions shared by every edit.
func (s *Session) beginLocked() (*models.Snapshot, string, error) {
	if s.busy {
		return nil, "", ErrBusy
	}
	src := s.history.Current()
	if src == nil {
		s.lastErr = ErrNoImage.Error()
		return nil, "", ErrNoImage
	}
	return src, strings.TrimSpace(s.prompt), nil
}

// finish runs call without the lock, then commits or records the failure.
func (s *Session) finish(ctx context.Context, tab Tab, prompt string, call func() (*models.Snapshot, error)) (*models.Snapshot, error) {
	result, err := call()

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		slog.Error("Edit failed", "session", s.ID, "tab", tab, "error", err)
		return nil, err
	}
	s.history.Commit(result)
	s.lastErr = ""
	s.mu.Unlock()

	slog.Info("Edit committed", "session", s.ID, "tab", tab, "image", result.Name())
	s.remember(ctx, tab, prompt)
	return result, nil
}

func (s *Session) remember(ctx context.Context, tab Tab, prompt string) {
	category, ok := tab.PromptCategory()
	if s.prompts == nil || !ok || prompt == "" {
		return
	}
	if _, err := s.prompts.Add(ctx, category, prompt); err != nil {
		slog.Warn("Failed to record prompt", "category", category, "error", err)
	}
}

// ApplyCrop replaces the current image with the selected area, rendered at
// dpr output pixels per image pixel.
func (s *Session) ApplyCrop(dpr float64) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, _, err := s.beginLocked()
	if err != nil {
		return nil, err
	}
	if s.selection == nil {
		s.lastErr = ErrSelectionRequired.Error()
		return nil, ErrSelectionRequired
	}
	rect := s.selection.ToNative(s.display, viewport.Size{Width: float64(src.Width()), Height: float64(src.Height())})

	out, err := crop(src, rect, dpr)
	if err != nil {
		s.lastErr = err.Error()
		return nil, err
	}
	s.history.Commit(out)
	s.lastErr = ""
	if err := s.resizeLocked(displayFor(out)); err != nil {
		return nil, err
	}
	slog.Info("Crop committed", "session", s.ID, "width", out.Width(), "height", out.Height())
	return out, nil
}

func crop(src *models.Snapshot, rect image.Rectangle, dpr float64) (*models.Snapshot, error) {
	img, err := images.Decode(src)
	if err != nil {
		return nil, err
	}
	cropped, err := images.Crop(img, rect, dpr)
	if err != nil {
		return nil, err
	}
	return images.SnapshotFromImage(src.Name(), cropped)
}

// Expand grows the canvas of the current image to width x height and lets
// the model fill the new area. The prompt is optional.
func (s *Session) Expand(ctx context.Context, width, height int) (*models.Snapshot, error) {
	s.mu.Lock()
	src, prompt, err := s.beginLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if width < src.Width() || height < src.Height() {
		err := fmt.Errorf("%w: %dx%d is smaller than %dx%d", images.ErrInvalidExpansion, width, height, src.Width(), src.Height())
		s.lastErr = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	s.busy = true
	s.mu.Unlock()

	out, err := s.finish(ctx, TabExpand, prompt, func() (*models.Snapshot, error) {
		return s.editor.Expand(ctx, src, width, height, prompt)
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.resizeLocked(displayFor(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// Undo steps back one snapshot. At the original it does nothing.
func (s *Session) Undo() error {
	return s.step(s.history.Undo)
}

// Redo steps forward one snapshot. At the newest it does nothing.
func (s *Session) Redo() error {
	return s.step(s.history.Redo)
}

// ResetToOriginal moves back to the uploaded image, keeping later snapshots
// available for redo.
func (s *Session) ResetToOriginal() error {
	return s.step(s.history.ResetToOriginal)
}

func (s *Session) step(move func() bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	if !move() {
		return nil
	}
	s.selection = nil
	s.lastErr = ""
	if cur := s.history.Current(); cur != nil {
		return s.resizeLocked(displayFor(cur))
	}
	s.clearMaskLocked()
	return nil
}

// StartOver forgets the image, its history and the saved session.
func (s *Session) StartOver(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.history.Clear()
	s.clearMaskLocked()
	s.masking = false
	s.selection = nil
	s.expandTo = nil
	s.prompt = ""
	s.lastErr = ""
	s.transform = viewport.Identity()
	s.drag.End()
	s.pipeline = nil
	s.mu.Unlock()

	if s.saver != nil {
		return s.saver.Clear(ctx)
	}
	return nil
}

// Restore reloads the saved session, if any. It reports whether one was
// found.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.saver == nil {
		return false, nil
	}
	rec, ok, err := s.saver.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	if len(rec.Images) == 0 {
		return false, nil
	}

	snapshots := make([]*models.Snapshot, 0, len(rec.Images))
	for _, img := range rec.Images {
		snap, err := images.NewSnapshot(img.Name, img.EncodedBytes)
		if err != nil {
			return false, fmt.Errorf("failed to restore %s: %w", img.Name, err)
		}
		snapshots = append(snapshots, snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false, ErrBusy
	}
	s.history.Load(snapshots, rec.CursorIndex)
	cur := s.history.Current()
	if err := s.resizeLocked(displayFor(cur)); err != nil {
		return false, err
	}
	slog.Info("Session restored", "session", s.ID, "images", len(snapshots), "cursor", s.history.Cursor(), "saved_at", rec.SavedAt)
	return true, nil
}

// Current is the snapshot on display.
func (s *Session) Current() *models.Snapshot {
	return s.history.Current()
}

// View is the display handle of the current snapshot.
func (s *Session) View() *views.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Close releases the view handle, flushes any pending autosave and stops
// autosaving.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.views.Release(s.view)
	s.view = nil
	s.mu.Unlock()
	if s.saver == nil {
		return nil
	}
	err := s.saver.Flush(ctx)
	s.saver.Stop()
	return err
}
