package http

import (
	"net/http"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in application.CreateProjectInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	project, err := h.services.Projects.Create(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	projects, err := h.services.Projects.List(r.Context(), actorFromContext(r.Context()), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.services.Projects.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in application.UpdateProjectInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	project, err := h.services.Projects.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Projects.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type teamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	team, err := h.services.Teams.Create(r.Context(), actorFromContext(r.Context()), req.Name, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *Handler) handleListTeams(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	teams, err := h.services.Teams.List(r.Context(), actorFromContext(r.Context()), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handler) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.services.Teams.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *Handler) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var in application.TeamInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	team, err := h.services.Teams.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *Handler) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Teams.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.services.Teams.ListMembers(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var in application.AddMemberInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	member, err := h.services.Teams.AddMember(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.services.Teams.RemoveMember(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var in application.CreateEnvironmentInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	env, err := h.services.Environments.Create(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, env)
}

// handleListEnvironments serves both ?project_id= and /project/{project_id}.
func (h *Handler) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if projectID == "" {
		projectID = r.URL.Query().Get("project_id")
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	envs, err := h.services.Environments.ListByProject(r.Context(), actorFromContext(r.Context()), projectID, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

func (h *Handler) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := h.services.Environments.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *Handler) handleUpdateEnvironment(w http.ResponseWriter, r *http.Request) {
	var in application.UpdateEnvironmentInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	env, err := h.services.Environments.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *Handler) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Environments.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
