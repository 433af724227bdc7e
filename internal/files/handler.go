package files

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

// Handler wires HTTP endpoints for file metadata operations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	authz     authz.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		authz:     mw,
	}
}

// MountRoutes registers file routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireAuthenticated)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Patch("/{id}", h.rename)
	r.Post("/{id}/move", h.move)
	r.Delete("/{id}", h.delete)
}

type createRequest struct {
	FolderID  int64  `json:"folder_id" validate:"required"`
	Name      string `json:"name" validate:"required,max=255"`
	SizeBytes int64  `json:"size_bytes" validate:"min=0"`
	MimeType  string `json:"mime_type" validate:"max=255"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), principal, CreateInput{
		FolderID:  req.FolderID,
		Name:      req.Name,
		SizeBytes: req.SizeBytes,
		MimeType:  req.MimeType,
	})
	if err != nil {
		h.respondError(w, err, "create file failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid file id")
		return
	}

	file, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		h.respondError(w, err, "get file failed")
		return
	}
	httpx.JSON(w, http.StatusOK, file)
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid file id")
		return
	}

	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.Rename(r.Context(), principal, id, req.Name); err != nil {
		h.respondError(w, err, "rename file failed")
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type moveRequest struct {
	FolderID int64 `json:"folder_id" validate:"required"`
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid file id")
		return
	}

	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.Move(r.Context(), principal, id, req.FolderID); err != nil {
		h.respondError(w, err, "move file failed")
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid file id")
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.respondError(w, err, "delete file failed")
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, authz.ErrResourceNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, authz.ErrPermissionDenied):
		httpx.RespondError(w, httpx.ErrForbidden)
	default:
		h.logger.Error(msg, "error", err)
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
