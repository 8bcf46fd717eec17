package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router returns the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.RegisterHTTP(r)
	return r
}

func (h *Handler) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Get("/views/{viewID}", h.HandleView)

	r.Route("/api/prompts/{category}", func(r chi.Router) {
		r.Get("/", h.HandlePromptList)
		r.Delete("/", h.HandlePromptClear)
	})

	r.Get("/api/saved-sessions", h.HandleSavedSessions)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.HandleSessions)
		r.Post("/", h.HandleSessionCreate)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.HandleSessionDetail)
			r.Delete("/", h.HandleSessionDelete)
			r.Post("/upload", h.HandleUpload)
			r.Get("/image", h.HandleCurrentImage)
			r.Post("/edit", h.HandleEdit)
			r.Post("/crop", h.HandleCrop)
			r.Post("/expand", h.HandleExpand)
			r.Post("/undo", h.HandleUndo)
			r.Post("/redo", h.HandleRedo)
			r.Post("/reset", h.HandleReset)
			r.Post("/start-over", h.HandleStartOver)
			r.Post("/restore", h.HandleRestore)

			r.Route("/batch", func(r chi.Router) {
				r.Get("/", h.HandleBatchStatus)
				r.Post("/", h.HandleBatchUpload)
				r.Post("/start", h.HandleBatchStart)
				r.Post("/cancel", h.HandleBatchCancel)
				r.Post("/items/{itemID}/retry", h.HandleBatchRetry)
				r.Get("/items/{itemID}/result", h.HandleBatchResult)
			})
		})
	})
}
