package http

import (
	"net/http"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleCreateTestCase(w http.ResponseWriter, r *http.Request) {
	var in application.CreateTestCaseInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	tc, err := h.services.TestCases.Create(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tc)
}

func (h *Handler) handleListTestCases(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	cases, err := h.services.TestCases.List(r.Context(), actorFromContext(r.Context()), application.TestCaseQuery{
		ProjectID:  q.Get("project_id"),
		TestType:   domain.TestType(q.Get("test_type")),
		Priority:   domain.Priority(q.Get("priority")),
		Status:     domain.Status(q.Get("status")),
		AssignedTo: q.Get("assigned_to"),
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (h *Handler) handleGetTestCase(w http.ResponseWriter, r *http.Request) {
	tc, err := h.services.TestCases.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (h *Handler) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	var in application.UpdateTestCaseInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	tc, err := h.services.TestCases.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (h *Handler) handleDeleteTestCase(w http.ResponseWriter, r *http.Request) {
	if err := h.services.TestCases.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddStep(w http.ResponseWriter, r *http.Request) {
	var in application.StepInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	step, err := h.services.TestCases.AddStep(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (h *Handler) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	var in application.StepPatch
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	step, err := h.services.TestCases.UpdateStep(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "step_id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (h *Handler) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	err := h.services.TestCases.DeleteStep(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "step_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateTestPlan(w http.ResponseWriter, r *http.Request) {
	var in application.CreateTestPlanInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.services.TestPlans.Create(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (h *Handler) handleListTestPlans(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	plans, err := h.services.TestPlans.ListByProject(r.Context(), actorFromContext(r.Context()), r.URL.Query().Get("project_id"), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *Handler) handleGetTestPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.services.TestPlans.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleUpdateTestPlan(w http.ResponseWriter, r *http.Request) {
	var in application.UpdateTestPlanInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.services.TestPlans.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleDeleteTestPlan(w http.ResponseWriter, r *http.Request) {
	if err := h.services.TestPlans.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddPlanCase(w http.ResponseWriter, r *http.Request) {
	var in application.AddPlanCaseInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.services.TestPlans.AddCase(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleRemovePlanCase(w http.ResponseWriter, r *http.Request) {
	plan, err := h.services.TestPlans.RemoveCase(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "case_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
