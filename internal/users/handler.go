package users

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

// Handler wires HTTP endpoints for user administration.
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

// MountRoutes registers user routes. The whole surface is admin-only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireAdmin)
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}
	filters := ListFilters{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("instance_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.InstanceID = &id
		}
	}

	result, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"users":      result,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type createRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=8"`
	DisplayName  string   `json:"display_name" validate:"max=120"`
	Roles        []string `json:"roles"`
	IsSuperadmin bool     `json:"is_superadmin"`
	InstanceID   *int64   `json:"instance_id"`
	SectionID    *int64   `json:"section_id"`
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
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		Roles:        req.Roles,
		IsSuperadmin: req.IsSuperadmin,
		InstanceID:   req.InstanceID,
		SectionID:    req.SectionID,
	})
	if err != nil {
		h.logger.Error("create user failed", "error", err)
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type updateRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	DisplayName  string   `json:"display_name" validate:"max=120"`
	IsActive     bool     `json:"is_active"`
	Roles        []string `json:"roles"`
	IsSuperadmin bool     `json:"is_superadmin"`
	InstanceID   *int64   `json:"instance_id"`
	SectionID    *int64   `json:"section_id"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.Update(r.Context(), principal, id, UpdateInput{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		IsActive:     req.IsActive,
		Roles:        req.Roles,
		IsSuperadmin: req.IsSuperadmin,
		InstanceID:   req.InstanceID,
		SectionID:    req.SectionID,
	}); err != nil {
		h.logger.Error("update user failed", "error", err, "id", id)
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.logger.Error("delete user failed", "error", err, "id", id)
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.RespondError(w, err)
}
