package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

func (h *Handler) serveSnapshot(w http.ResponseWriter, snap *models.Snapshot) {
	w.Header().Set("Content-Type", snap.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(snap.Size()))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Bytes())
}

// HandleView serves the image behind a display handle until it is released.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.views.Lookup(chi.URLParam(r, "viewID"))
	if !ok {
		h.writeError(w, "View not found", http.StatusNotFound)
		return
	}
	h.serveSnapshot(w, handle.Snapshot)
}

func (h *Handler) HandleCurrentImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	cur := s.Current()
	if cur == nil {
		h.writeError(w, "No image loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(cur.Name()))
	h.serveSnapshot(w, cur)
}

func (h *Handler) HandleBatchResult(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	p := s.BatchPipeline()
	if p == nil {
		h.writeError(w, "No batch loaded", http.StatusNotFound)
		return
	}
	item, found := p.Item(chi.URLParam(r, "itemID"))
	if !found {
		h.writeError(w, "Batch item not found", http.StatusNotFound)
		return
	}
	if item.Result == nil {
		h.writeError(w, "Batch item has no result", http.StatusNotFound)
		return
	}
	h.serveSnapshot(w, item.Result)
}
