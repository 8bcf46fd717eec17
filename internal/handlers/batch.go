package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type batchRequest struct {
	Prompt string `json:"prompt"`
}

// HandleBatchUpload replaces the session's batch with the uploaded images.
func (h *Handler) HandleBatchUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	sources, err := h.readSources(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(sources) == 0 {
		h.writeError(w, "No images provided", http.StatusBadRequest)
		return
	}
	if _, err := s.LoadBatch(sources); err != nil {
		h.writeErr(w, err)
		return
	}
	slog.Info("Batch loaded", "session", s.ID, "items", len(sources))
	h.writeJSON(w, s.Batch())
}

// HandleBatchStart runs the batch in the background and answers at once.
// Clients poll the batch status for progress.
func (h *Handler) HandleBatchStart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !h.decode(w, r, &req) {
		return
	}
	done, err := s.StartBatch(context.WithoutCancel(r.Context()), req.Prompt)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	go func() {
		if err := <-done; err != nil {
			slog.Error("Batch run failed", "session", s.ID, "error", err)
		}
	}()
	h.writeJSONStatus(w, http.StatusAccepted, s.Batch())
}

func (h *Handler) HandleBatchCancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if s.Batch() == nil {
		h.writeError(w, "No batch loaded", http.StatusNotFound)
		return
	}
	s.CancelBatch()
	h.writeJSON(w, s.Batch())
}

// HandleBatchRetry re-runs one failed item and answers when it is done.
func (h *Handler) HandleBatchRetry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := s.RetryBatchItem(r.Context(), chi.URLParam(r, "itemID"), req.Prompt); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, s.Batch())
}

func (h *Handler) HandleBatchStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	b := s.Batch()
	if b == nil {
		h.writeError(w, "No batch loaded", http.StatusNotFound)
		return
	}
	h.writeJSON(w, b)
}
