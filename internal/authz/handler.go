package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxis-sec/praxis/internal/platform/httpx"
	"github.com/praxis-sec/praxis/internal/shared"
)

// Handler exposes decision endpoints for the calling principal. UI and route
// code consume these instead of re-implementing permission logic inline.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers decision routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
	r.Get("/permissions", h.listPermissions)
	r.Get("/modules/{name}", h.moduleAccess)
}

type checkRequest struct {
	Module   string `json:"module" validate:"required"`
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	principalID, ok := CurrentPrincipalID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key, err := NewPermissionKey(req.Module, req.Resource, req.Action)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	allowed, err := h.service.HasPermission(r.Context(), principalID, key)
	if err != nil {
		h.logger.Error("authz check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

type permissionView struct {
	Module   string `json:"module"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Key      string `json:"key"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	principalID, ok := CurrentPrincipalID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	keys, err := h.service.ListPermissions(r.Context(), principalID)
	if err != nil {
		h.logger.Error("authz list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]permissionView, 0, len(keys))
	for _, key := range keys {
		views = append(views, permissionView{Module: key.Module, Resource: key.Resource, Action: key.Action, Key: key.String()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": views})
}

func (h *Handler) moduleAccess(w http.ResponseWriter, r *http.Request) {
	principalID, ok := CurrentPrincipalID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	name := chi.URLParam(r, "name")
	allowed, err := h.service.CanAccessModule(r.Context(), principalID, name)
	if err != nil {
		h.logger.Error("authz module access", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}
