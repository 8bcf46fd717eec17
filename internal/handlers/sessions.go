package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/retoucher/internal/autosave"
	"github.com/lehigh-university-libraries/retoucher/internal/session"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ids := h.sessionStore.IDs()
	states := make([]session.State, 0, len(ids))
	for _, id := range ids {
		if s, ok := h.sessionStore.Get(id); ok {
			states = append(states, s.State())
		}
	}
	h.writeJSON(w, states)
}

// HandleSavedSessions lists the ids of sessions that can be resumed.
func (h *Handler) HandleSavedSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := autosave.SavedIDs(r.Context(), h.saved)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, ids)
}

// HandleSessionCreate opens a session. Passing the id of a saved session
// resumes it.
func (h *Handler) HandleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ID string `json:"id"`
	}
	if !h.decode(w, r, &request) {
		return
	}
	if request.ID != "" {
		if s, ok := h.sessionStore.Get(request.ID); ok {
			h.writeJSON(w, s.State())
			return
		}
	}

	s := h.newSession(request.ID)
	restored, err := s.Restore(r.Context())
	if err != nil {
		slog.Warn("Failed to restore saved session", "session", s.ID, "error", err)
	}
	h.sessionStore.Set(s.ID, s)
	slog.Info("Session created", "session", s.ID, "restored", restored)
	h.writeJSONStatus(w, http.StatusCreated, s.State())
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, s.State())
}

// HandleSessionDelete closes a live session. Its saved copy is kept so it
// can be resumed; start-over deletes that.
func (h *Handler) HandleSessionDelete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.sessionStore.Remove(s.ID)
	if err := s.Close(context.WithoutCancel(r.Context())); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*session.Session).Undo)
}

func (h *Handler) HandleRedo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*session.Session).Redo)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*session.Session).ResetToOriginal)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, move func(*session.Session) error) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if err := move(s); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, s.State())
}

func (h *Handler) HandleStartOver(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if err := s.StartOver(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, s.State())
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	restored, err := s.Restore(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if !restored {
		h.writeError(w, "No saved session", http.StatusNotFound)
		return
	}
	h.writeJSON(w, s.State())
}

// Close closes every live session, flushing pending saves.
func (h *Handler) Close(ctx context.Context) error {
	var errs []error
	for _, id := range h.sessionStore.IDs() {
		if s, ok := h.sessionStore.Remove(id); ok {
			if err := s.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}
