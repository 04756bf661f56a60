package http

import (
	"errors"
	"net/http"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/go-chi/chi/v5"
)

const (
	// multipartMemory bounds the in-memory part of an upload; the rest
	// spills to temporary files.
	multipartMemory = 8 << 20
	// multipartOverhead allows for boundaries, part headers and the small
	// form fields next to the file.
	multipartOverhead = 64 << 10
)

func (h *Handler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var in application.CreateCommentInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	comment, err := h.services.Comments.Create(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	comments, err := h.services.Comments.ListByTestCase(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "test_case_id"), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *Handler) handleResolveComment(w http.ResponseWriter, r *http.Request) {
	comment, err := h.services.Comments.Resolve(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *Handler) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var in application.UpdateCommentInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	comment, err := h.services.Comments.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Comments.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.services.Attachments.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, domain.Invalid("file exceeds the %d byte limit", maxBytes))
			return
		}
		h.writeError(w, r, domain.Invalid("a multipart form with a file is required"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			h.writeError(w, r, domain.Invalid("file is required"))
			return
		}
		h.writeError(w, r, domain.Invalid("unreadable file: %v", err))
		return
	}
	defer file.Close()

	att, err := h.services.Attachments.Create(r.Context(), actorFromContext(r.Context()), application.UploadInput{
		Target: domain.AttachmentTarget{
			Kind: domain.AttachmentKind(r.FormValue("entity_type")),
			ID:   r.FormValue("entity_id"),
		},
		FileName:    header.Filename,
		Description: r.FormValue("description"),
		Body:        file,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

func (h *Handler) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	target := domain.AttachmentTarget{Kind: domain.AttachmentKind(q.Get("entity_type")), ID: q.Get("entity_id")}
	atts, err := h.services.Attachments.ListByTarget(r.Context(), actorFromContext(r.Context()), target, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, atts)
}

func (h *Handler) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	att, err := h.services.Attachments.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (h *Handler) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Attachments.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
