package session

import (
	"github.com/lehigh-university-libraries/retoucher/internal/batch"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/viewport"
)

// ImageInfo describes a snapshot without its bytes.
type ImageInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
}

func infoOf(s *models.Snapshot) *ImageInfo {
	if s == nil {
		return nil
	}
	return &ImageInfo{
		ID:       s.ID(),
		Name:     s.Name(),
		MIMEType: s.MIMEType(),
		Width:    s.Width(),
		Height:   s.Height(),
		Size:     s.Size(),
	}
}

// State is a consistent copy of everything a client renders.
type State struct {
	ID          string             `json:"id"`
	Tab         Tab                `json:"tab"`
	Prompt      string             `json:"prompt"`
	Masking     bool               `json:"masking"`
	MaskBlank   bool               `json:"mask_blank"`
	BrushSize   float64            `json:"brush_size"`
	Busy        bool               `json:"busy"`
	Error       string             `json:"error,omitempty"`
	CanUndo     bool               `json:"can_undo"`
	CanRedo     bool               `json:"can_redo"`
	Cursor      int                `json:"cursor"`
	Length      int                `json:"length"`
	Current     *ImageInfo         `json:"current,omitempty"`
	ViewID      string             `json:"view_id,omitempty"`
	DisplaySize viewport.Size      `json:"display_size"`
	Transform   viewport.Transform `json:"transform"`
	Selection   *viewport.Rect     `json:"selection,omitempty"`
	Batch       *BatchState        `json:"batch,omitempty"`
}

// BatchState summarises the loaded batch.
type BatchState struct {
	Items     []models.BatchItem `json:"items"`
	Progress  batch.Progress     `json:"progress"`
	Fraction  float64            `json:"fraction"`
	Running   bool               `json:"running"`
	Cancelled bool               `json:"cancelled"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:          s.ID,
		Tab:         s.tab,
		Prompt:      s.prompt,
		Masking:     s.masking,
		MaskBlank:   s.mask == nil || s.mask.IsBlank(),
		BrushSize:   s.brushSize,
		Busy:        s.busy,
		Error:       s.lastErr,
		CanUndo:     s.history.CanUndo(),
		CanRedo:     s.history.CanRedo(),
		Cursor:      s.history.Cursor(),
		Length:      s.history.Len(),
		Current:     infoOf(s.history.Current()),
		DisplaySize: s.display,
		Transform:   s.transform,
		Batch:       batchState(s.pipeline),
	}
	if s.view != nil {
		st.ViewID = s.view.ID
	}
	if s.selection != nil {
		sel := *s.selection
		st.Selection = &sel
	}
	return st
}

func batchState(p *batch.Pipeline) *BatchState {
	if p == nil {
		return nil
	}
	progress := p.Progress()
	return &BatchState{
		Items:     p.Items(),
		Progress:  progress,
		Fraction:  progress.Fraction(),
		Running:   p.Running(),
		Cancelled: p.Cancelled(),
	}
}
