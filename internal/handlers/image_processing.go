package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/retoucher/internal/session"
	"github.com/lehigh-university-libraries/retoucher/internal/viewport"
)

// EditRequest carries the client's tool state. Every field is optional;
// what is present is applied in field order before the edit is submitted.
type EditRequest struct {
	DisplaySize *viewport.Size      `json:"display_size,omitempty"`
	Tab         session.Tab         `json:"tab,omitempty"`
	Prompt      *string             `json:"prompt,omitempty"`
	BrushSize   float64             `json:"brush_size,omitempty"`
	ResetView   bool                `json:"reset_view,omitempty"`
	Transform   *viewport.Transform `json:"transform,omitempty"`
	Wheel       *WheelRequest       `json:"wheel,omitempty"`
	Zoom        *ZoomRequest        `json:"zoom,omitempty"`
	Masking     *bool               `json:"masking,omitempty"`
	Selection   *viewport.Rect      `json:"selection,omitempty"`
	SelectDrag  *DragRequest        `json:"select_drag,omitempty"`
	Strokes     [][]viewport.Point  `json:"strokes,omitempty"`
	Expand      *ExpandRequest      `json:"expand,omitempty"`
	Submit      *bool               `json:"submit,omitempty"`
}

// WheelRequest is one mouse-wheel event at a viewport position.
type WheelRequest struct {
	Cursor viewport.Point `json:"cursor"`
	DeltaY float64        `json:"delta_y"`
}

// ZoomRequest sets an absolute zoom anchored at a viewport position.
type ZoomRequest struct {
	Cursor viewport.Point `json:"cursor"`
	Zoom   float64        `json:"zoom"`
}

// DragRequest spans a rectangle between two viewport positions.
type DragRequest struct {
	From viewport.Point `json:"from"`
	To   viewport.Point `json:"to"`
}

type ExpandRequest struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Prompt string `json:"prompt,omitempty"`
}

type CropRequest struct {
	Selection *viewport.Rect `json:"selection,omitempty"`
	DPR       float64        `json:"dpr,omitempty"`
}

// apply replays req onto s. Wheel, zoom, drag and stroke positions are in
// viewport coordinates.
func (req EditRequest) apply(s *session.Session) error {
	if req.DisplaySize != nil {
		if err := s.SetDisplaySize(*req.DisplaySize); err != nil {
			return err
		}
	}
	if req.Tab != "" {
		if err := s.SetTab(req.Tab); err != nil {
			return err
		}
	}
	if req.Prompt != nil {
		s.SetPrompt(*req.Prompt)
	}
	s.SetBrushSize(req.BrushSize)
	if req.ResetView {
		s.ResetView()
	}
	if req.Transform != nil {
		s.SetTransform(*req.Transform)
	}
	if req.Wheel != nil {
		s.Wheel(req.Wheel.Cursor, req.Wheel.DeltaY)
	}
	if req.Zoom != nil {
		s.ZoomTo(req.Zoom.Cursor, req.Zoom.Zoom)
	}
	if req.Masking != nil {
		if err := s.SetMasking(*req.Masking); err != nil {
			return err
		}
	}
	if req.Selection != nil {
		s.SetSelection(req.Selection)
	}
	if req.SelectDrag != nil {
		s.SelectDrag(req.SelectDrag.From, req.SelectDrag.To)
	}
	for _, stroke := range req.Strokes {
		if len(stroke) == 0 {
			continue
		}
		if err := s.PointerDown(stroke[0]); err != nil {
			return err
		}
		for _, p := range stroke[1:] {
			if err := s.PointerMove(p); err != nil {
				s.PointerUp()
				return err
			}
		}
		s.PointerUp()
	}
	if req.Expand != nil {
		s.SetExpandTarget(req.Expand.Width, req.Expand.Height)
		if req.Expand.Prompt != "" {
			s.SetPrompt(req.Expand.Prompt)
		}
	}
	return nil
}

// HandleEdit applies the request's tool state and, unless submit is false,
// runs the active tab's operation.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req EditRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.apply(s); err != nil {
		h.writeErr(w, err)
		return
	}
	if req.Submit == nil || *req.Submit {
		if _, err := s.Submit(r.Context()); err != nil {
			h.writeErr(w, err)
			return
		}
	}
	h.writeJSON(w, s.State())
}

func (h *Handler) HandleCrop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req CropRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Selection != nil {
		s.SetSelection(req.Selection)
	}
	if req.DPR <= 0 {
		req.DPR = 1
	}
	if _, err := s.ApplyCrop(req.DPR); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, s.State())
}

func (h *Handler) HandleExpand(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req ExpandRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		h.writeErr(w, session.ErrExpandTarget)
		return
	}
	if req.Prompt != "" {
		s.SetPrompt(req.Prompt)
	}
	if _, err := s.Expand(r.Context(), req.Width, req.Height); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, s.State())
}
