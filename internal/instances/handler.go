package instances

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

// maxImportBytes caps the accepted CSV upload size.
const maxImportBytes = 4 << 20

// ImportEnqueuer hands a CSV payload to the background worker.
type ImportEnqueuer interface {
	EnqueueInstanceImport(ctx context.Context, data []byte) error
}

// Handler wires the admin HTTP surface for instances and sections.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	importer  ImportEnqueuer
	validator *validator.Validate
	authz     authz.Middleware
}

// NewHandler constructs a Handler. importer may be nil; the import endpoint
// then responds 503.
func NewHandler(logger *slog.Logger, service *Service, importer ImportEnqueuer, mw authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		importer:  importer,
		validator: validator.New(),
		authz:     mw,
	}
}

// MountRoutes registers instance routes. The whole surface is admin-only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireAdmin)
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/import", h.importCSV)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/sections", h.listSections)
	r.Post("/{id}/sections", h.createSection)
	r.Delete("/{id}/sections/{sectionID}", h.deleteSection)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err, "list instances failed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"instances": result})
}

type instanceRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Code string `json:"code" validate:"required,max=64"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	var req instanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), principal, CreateInput{Name: req.Name, Code: req.Code})
	if err != nil {
		h.respondError(w, err, "create instance failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid instance id")
		return
	}
	instance, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get instance failed")
		return
	}
	httpx.JSON(w, http.StatusOK, instance)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid instance id")
		return
	}

	var req instanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), principal, id, CreateInput{Name: req.Name, Code: req.Code})
	if err != nil {
		h.respondError(w, err, "update instance failed")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid instance id")
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.respondError(w, err, "delete instance failed")
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) listSections(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid instance id")
		return
	}
	sections, err := h.service.ListSections(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "list sections failed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sections": sections})
}

type sectionRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *Handler) createSection(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid instance id")
		return
	}

	var req sectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	created, err := h.service.CreateSection(r.Context(), principal, id, req.Name)
	if err != nil {
		h.respondError(w, err, "create section failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deleteSection(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	sectionID, err := parseID(r, "sectionID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid section id")
		return
	}

	if err := h.service.DeleteSection(r.Context(), principal, sectionID); err != nil {
		h.respondError(w, err, "delete section failed")
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

// importCSV accepts a raw CSV body and queues it for the worker; parsing and
// row handling happen off the request path.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Import Unavailable", "background worker is not configured")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable request body")
		return
	}
	if len(data) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "empty csv body")
		return
	}
	if len(data) > maxImportBytes {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "csv exceeds the import size limit")
		return
	}

	if err := h.importer.EnqueueInstanceImport(r.Context(), data); err != nil {
		h.logger.Error("enqueue instance import failed", "error", err)
		httpx.Problem(w, http.StatusServiceUnavailable, "Import Unavailable", "could not queue the import")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(msg, "error", err)
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
