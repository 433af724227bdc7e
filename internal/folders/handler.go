package folders

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

// Handler wires HTTP endpoints for folder operations.
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

// MountRoutes registers folder routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireAuthenticated)
	r.Get("/", h.listRoots)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/children", h.listChildren)
	r.Patch("/{id}", h.rename)
	r.Post("/{id}/move", h.move)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) listRoots(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	result, err := h.service.ListRoots(r.Context(), principal)
	if err != nil {
		h.logger.Error("list root folders failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"folders": result})
}

type createRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	ParentID *int64 `json:"parent_id"`
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

	created, err := h.service.Create(r.Context(), principal, CreateInput{Name: req.Name, ParentID: req.ParentID})
	if err != nil {
		h.respondError(w, err, "create folder failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid folder id")
		return
	}

	folder, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		h.respondError(w, err, "get folder failed")
		return
	}
	httpx.JSON(w, http.StatusOK, folder)
}

func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid folder id")
		return
	}

	children, err := h.service.ListChildren(r.Context(), principal, id)
	if err != nil {
		h.respondError(w, err, "list folder children failed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"folders": children})
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid folder id")
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
		h.respondError(w, err, "rename folder failed")
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type moveRequest struct {
	ParentID *int64 `json:"parent_id"`
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid folder id")
		return
	}

	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.service.Move(r.Context(), principal, id, req.ParentID); err != nil {
		h.respondError(w, err, "move folder failed")
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid folder id")
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.respondError(w, err, "delete folder failed")
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
