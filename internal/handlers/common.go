package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/retoucher/internal/batch"
	"github.com/lehigh-university-libraries/retoucher/internal/editing"
	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/prompts"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
	"github.com/lehigh-university-libraries/retoucher/internal/session"
	"github.com/lehigh-university-libraries/retoucher/internal/storage"
	"github.com/lehigh-university-libraries/retoucher/internal/views"
)

// Factory builds a session. An empty id asks for a fresh one.
type Factory func(id string) *session.Session

type Handler struct {
	sessionStore *storage.SessionStore[*session.Session]
	newSession   Factory
	prompts      *prompts.Book
	views        *views.Registry
	fetcher      *images.Fetcher
	saved        storage.Store
}

// New builds the API. saved is the store that session autosaves go to.
func New(factory Factory, book *prompts.Book, registry *views.Registry, saved storage.Store) *Handler {
	return &Handler{
		sessionStore: storage.NewSessionStore[*session.Session](),
		newSession:   factory,
		saved:        saved,
		prompts:      book,
		views:        registry,
		fetcher:      images.NewFetcher(),
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeErr reports err with the status its kind maps to.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var perr *editing.ProviderError
	switch {
	case errors.Is(err, session.ErrPromptRequired),
		errors.Is(err, session.ErrSelectionRequired),
		errors.Is(err, session.ErrMaskEmpty),
		errors.Is(err, session.ErrMaskUnsupported),
		errors.Is(err, session.ErrUnknownTab),
		errors.Is(err, session.ErrExpandTarget),
		errors.Is(err, session.ErrDisplaySize),
		errors.Is(err, session.ErrNoImage),
		errors.Is(err, images.ErrInvalidExpansion),
		errors.Is(err, prompts.ErrUnknownCategory),
		errors.Is(err, editing.ErrNotBatchable):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoBatch),
		errors.Is(err, batch.ErrUnknownItem),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, batch.ErrRunning),
		errors.Is(err, batch.ErrNotRetryable):
		return http.StatusConflict
	case errors.As(err, &perr),
		errors.Is(err, providers.ErrEmptyResponse),
		errors.Is(err, providers.ErrRefused):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, exists := h.sessionStore.Get(chi.URLParam(r, "sessionID"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
