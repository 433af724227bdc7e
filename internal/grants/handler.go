package grants

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

// Handler wires HTTP endpoints for grant management.
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

// MountRoutes registers grant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireAuthenticated)
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Patch("/{id}", h.change)
	r.Delete("/{id}", h.revoke)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	kind := authz.ResourceKind(r.URL.Query().Get("resource_kind"))
	resourceID, err := strconv.ParseInt(r.URL.Query().Get("resource_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource_id")
		return
	}

	result, err := h.service.ListForResource(r.Context(), principal, authz.ResourceRef{Kind: kind, ID: resourceID})
	if err != nil {
		h.respondError(w, err, "list grants failed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": result})
}

type createRequest struct {
	UserID       int64  `json:"user_id" validate:"required"`
	ResourceKind string `json:"resource_kind" validate:"required"`
	ResourceID   int64  `json:"resource_id" validate:"required"`
	Action       string `json:"action" validate:"required"`
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
		UserID:       req.UserID,
		ResourceKind: authz.ResourceKind(req.ResourceKind),
		ResourceID:   req.ResourceID,
		Action:       authz.Action(req.Action),
	})
	if err != nil {
		h.respondError(w, err, "create grant failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type changeRequest struct {
	Action string `json:"action" validate:"required"`
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid grant id")
		return
	}

	var req changeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	updated, err := h.service.Change(r.Context(), principal, id, authz.Action(req.Action))
	if err != nil {
		h.respondError(w, err, "change grant failed")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid grant id")
		return
	}

	if err := h.service.Revoke(r.Context(), principal, id); err != nil {
		h.respondError(w, err, "revoke grant failed")
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
