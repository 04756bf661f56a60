package http

import (
	"net/http"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var in application.CreateExecutionInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	exec, err := h.services.Executions.Create(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exec)
}

func (h *Handler) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	execs, err := h.services.Executions.List(r.Context(), actorFromContext(r.Context()), application.ExecutionQuery{
		TestCaseID: q.Get("test_case_id"),
		TestPlanID: q.Get("test_plan_id"),
		Status:     domain.ExecutionStatus(q.Get("status")),
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (h *Handler) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.services.Executions.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (h *Handler) handleUpdateExecutionStatus(w http.ResponseWriter, r *http.Request) {
	var in application.UpdateExecutionInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	exec, err := h.services.Executions.UpdateStatus(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (h *Handler) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Executions.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
