package http

import (
	"net/http"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.services.Dashboard.Stats(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleDashboardActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	feed, err := h.services.Dashboard.ActivityFeed(r.Context(), actorFromContext(r.Context()), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *Handler) handleGenerateTests(w http.ResponseWriter, r *http.Request) {
	var in application.GenerateTestsInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	cases, err := h.services.AI.GenerateTests(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (h *Handler) handleDebugTest(w http.ResponseWriter, r *http.Request) {
	var in application.DebugFailureInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	analysis, err := h.services.AI.DebugFailure(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) handlePrioritizeTests(w http.ResponseWriter, r *http.Request) {
	var in application.PrioritizeInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.services.AI.Prioritize(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.services.AI.Insights(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (h *Handler) handleImprovements(w http.ResponseWriter, r *http.Request) {
	tips, err := h.services.AI.SuggestImprovements(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": tips})
}
