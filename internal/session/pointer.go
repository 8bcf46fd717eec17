package session

import (
	"github.com/lehigh-university-libraries/retoucher/internal/viewport"
)

// PointerDown starts either a mask stroke or a pan, never both. Strokes are
// drawn when masking is on for a mask-capable tab; every other press pans.
func (s *Session) PointerDown(v viewport.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paintingLocked() {
		return s.mask.Begin(s.transform.ToImage(v), s.brushSize/s.transform.Zoom)
	}
	s.drag.Begin(v)
	return nil
}

// PointerMove extends the stroke or pan in progress.
func (s *Session) PointerMove(v viewport.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mask != nil && s.mask.Drawing() {
		return s.mask.Extend(s.transform.ToImage(v), s.brushSize/s.transform.Zoom)
	}
	s.transform = s.drag.Move(s.transform, v)
	return nil
}

// PointerUp ends whatever gesture is in progress.
func (s *Session) PointerUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mask != nil {
		s.mask.End()
	}
	s.drag.End()
}

// Wheel zooms around the cursor.
func (s *Session) Wheel(cursor viewport.Point, deltaY float64) viewport.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = s.transform.Wheel(cursor, deltaY)
	return s.transform
}

// ZoomTo sets an absolute zoom, anchored at cursor.
func (s *Session) ZoomTo(cursor viewport.Point, zoom float64) viewport.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = s.transform.ZoomTo(cursor, zoom)
	return s.transform
}

// SetTransform replaces the viewport transform, clamping its zoom. An
// unusable zoom is taken as 100%.
func (s *Session) SetTransform(t viewport.Transform) {
	if !t.Valid() {
		t.Zoom = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = viewport.Identity().ZoomTo(viewport.Point{}, t.Zoom).PanBy(t.Pan)
}

// SelectDrag sets the selection spanned by a drag between two viewport
// points. A drag that covers no area clears it.
func (s *Session) SelectDrag(from, to viewport.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := viewport.RectFromPoints(s.transform.ToImage(from), s.transform.ToImage(to))
	if r.Empty() {
		s.selection = nil
		return
	}
	s.selection = &r
}

// ResetView returns to 100% with no pan.
func (s *Session) ResetView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = viewport.Identity()
	s.drag.End()
}

func (s *Session) paintingLocked() bool {
	return s.masking && s.tab.MaskCompatible() && s.mask != nil && s.history.Current() != nil
}
