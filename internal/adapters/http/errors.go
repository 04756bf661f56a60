package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Detail     string    `json:"detail"`
	StatusCode int       `json:"status_code"`
	Path       string    `json:"path"`
	Timestamp  time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusFor(err error) int {
	if domain.IsMissingRef(err) {
		return http.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps a service error onto its status code. Internal causes are
// logged and replaced with a generic detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := "Internal server error"
	var typed *domain.Error
	if errors.As(err, &typed) && typed.Msg != "" {
		detail = typed.Msg
	}
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err))
		detail = "Internal server error"
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	h.writeStatus(w, r, status, detail)
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, status, errorBody{
		Detail:     detail,
		StatusCode: status,
		Path:       r.URL.Path,
		Timestamp:  h.now().UTC(),
	})
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.Invalid("invalid JSON body: %v", err)
}
