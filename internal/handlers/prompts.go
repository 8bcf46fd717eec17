package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/retoucher/internal/prompts"
)

func (h *Handler) HandlePromptList(w http.ResponseWriter, r *http.Request) {
	list, err := h.prompts.List(r.Context(), prompts.Category(chi.URLParam(r, "category")))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	h.writeJSON(w, list)
}

func (h *Handler) HandlePromptClear(w http.ResponseWriter, r *http.Request) {
	if err := h.prompts.Clear(r.Context(), prompts.Category(chi.URLParam(r, "category"))); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
