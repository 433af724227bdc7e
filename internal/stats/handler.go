package stats

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
)

// Handler serves the admin statistics surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers stats routes. Admin-only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireAdmin)
	r.Get("/usage", h.usage)
	r.Post("/usage/refresh", h.refresh)
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.service.Get(r.Context())
	if err != nil {
		h.logger.Error("usage stats failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, usage)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	usage, err := h.service.Rebuild(r.Context())
	if err != nil {
		h.logger.Error("usage stats rebuild failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, usage)
}
