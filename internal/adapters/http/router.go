package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upgrader takes over a request as a user's real-time connection.
type Upgrader interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Services *application.Services
	Realtime Upgrader
	Store    Pinger
	Logger   *slog.Logger
	// Registry receives the HTTP metrics and is served at /metrics.
	// A fresh registry is used when nil.
	Registry *prometheus.Registry
	Now      func() time.Time
}

type Handler struct {
	services *application.Services
	realtime Upgrader
	store    Pinger
	logger   *slog.Logger
	metrics  *httpMetrics
	now      func() time.Time
}

func NewRouter(opts Options) http.Handler {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	h := &Handler{
		services: opts.Services,
		realtime: opts.Realtime,
		store:    opts.Store,
		logger:   opts.Logger,
		metrics:  newHTTPMetrics(reg),
		now:      opts.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.observe)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeStatus(w, r, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeStatus(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", h.handleHealth)
		api.Post("/auth/register", h.handleRegister)
		api.Post("/auth/login", h.handleLogin)
		api.Get("/ws/{user_id}", h.handleWebSocket)

		api.Group(func(auth chi.Router) {
			auth.Use(h.requireAuth)

			auth.Get("/auth/me", h.handleMe)

			auth.Route("/projects", func(pr chi.Router) {
				pr.Post("/", h.handleCreateProject)
				pr.Get("/", h.handleListProjects)
				pr.Get("/{id}", h.handleGetProject)
				pr.Put("/{id}", h.handleUpdateProject)
				pr.Delete("/{id}", h.handleDeleteProject)
			})

			auth.Route("/teams", func(tr chi.Router) {
				tr.Post("/", h.handleCreateTeam)
				tr.Get("/", h.handleListTeams)
				tr.Get("/{id}", h.handleGetTeam)
				tr.Put("/{id}", h.handleUpdateTeam)
				tr.Delete("/{id}", h.handleDeleteTeam)
				tr.Get("/{id}/members", h.handleListMembers)
				tr.Post("/{id}/members", h.handleAddMember)
				tr.Delete("/{id}/members/{user_id}", h.handleRemoveMember)
			})

			auth.Route("/environments", func(er chi.Router) {
				er.Post("/", h.handleCreateEnvironment)
				er.Get("/", h.handleListEnvironments)
				er.Get("/project/{project_id}", h.handleListEnvironments)
				er.Get("/{id}", h.handleGetEnvironment)
				er.Put("/{id}", h.handleUpdateEnvironment)
				er.Delete("/{id}", h.handleDeleteEnvironment)
			})

			auth.Route("/test-cases", func(tc chi.Router) {
				tc.Post("/", h.handleCreateTestCase)
				tc.Get("/", h.handleListTestCases)
				tc.Get("/{id}", h.handleGetTestCase)
				tc.Put("/{id}", h.handleUpdateTestCase)
				tc.Delete("/{id}", h.handleDeleteTestCase)
				tc.Post("/{id}/steps", h.handleAddStep)
				tc.Put("/{id}/steps/{step_id}", h.handleUpdateStep)
				tc.Delete("/{id}/steps/{step_id}", h.handleDeleteStep)
			})

			auth.Route("/test-plans", func(tp chi.Router) {
				tp.Post("/", h.handleCreateTestPlan)
				tp.Get("/", h.handleListTestPlans)
				tp.Get("/{id}", h.handleGetTestPlan)
				tp.Put("/{id}", h.handleUpdateTestPlan)
				tp.Delete("/{id}", h.handleDeleteTestPlan)
				tp.Post("/{id}/cases", h.handleAddPlanCase)
				tp.Delete("/{id}/cases/{case_id}", h.handleRemovePlanCase)
			})

			auth.Route("/executions", func(ex chi.Router) {
				ex.Post("/", h.handleCreateExecution)
				ex.Get("/", h.handleListExecutions)
				ex.Get("/{id}", h.handleGetExecution)
				ex.Put("/{id}/status", h.handleUpdateExecutionStatus)
				ex.Delete("/{id}", h.handleDeleteExecution)
			})

			auth.Route("/comments", func(cr chi.Router) {
				cr.Post("/", h.handleCreateComment)
				cr.Get("/{test_case_id}", h.handleListComments)
				cr.Put("/{id}/resolve", h.handleResolveComment)
				cr.Put("/{id}", h.handleUpdateComment)
				cr.Delete("/{id}", h.handleDeleteComment)
			})

			auth.Route("/attachments", func(ar chi.Router) {
				ar.Post("/", h.handleUploadAttachment)
				ar.Get("/", h.handleListAttachments)
				ar.Get("/{id}", h.handleGetAttachment)
				ar.Delete("/{id}", h.handleDeleteAttachment)
			})

			auth.Get("/dashboard/stats", h.handleDashboardStats)
			auth.Get("/dashboard/activity", h.handleDashboardActivity)

			auth.Route("/ai", func(ai chi.Router) {
				ai.Post("/generate-tests", h.handleGenerateTests)
				ai.Post("/debug-test", h.handleDebugTest)
				ai.Post("/prioritize-tests", h.handlePrioritizeTests)
				ai.Get("/insights", h.handleInsights)
				ai.Get("/test-cases/{id}/improvements", h.handleImprovements)
			})
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "healthy", "timestamp": h.now().UTC()}
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", slog.Any("error", err))
			body["status"] = "unhealthy"
			body["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "connected"
	}
	writeJSON(w, http.StatusOK, body)
}

// handleWebSocket authenticates with the token query parameter because
// browsers cannot set headers on the upgrade request.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.realtime == nil {
		h.writeStatus(w, r, http.StatusServiceUnavailable, "real-time updates are disabled")
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		h.writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	user, err := h.services.Auth.Authenticate(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user.ID != chi.URLParam(r, "user_id") {
		h.writeError(w, r, domain.Forbidden("token does not belong to this user"))
		return
	}
	h.realtime.Serve(w, r, user.ID)
}

// pageParams reads skip/limit (offset is accepted as an alias for skip).
func pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	skip := q.Get("skip")
	if skip == "" {
		skip = q.Get("offset")
	}
	if offset, err = intParam(skip, "skip"); err != nil {
		return 0, 0, err
	}
	if limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

func intParam(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid("%s must be an integer", field)
	}
	if v < 0 {
		return 0, domain.Invalid("%s must not be negative", field)
	}
	return v, nil
}
