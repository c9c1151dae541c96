package modules

import (
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxis-sec/praxis/internal/authz"
	"github.com/praxis-sec/praxis/internal/platform/httpx"
	"github.com/praxis-sec/praxis/internal/shared"
)

// Handler manages module registry endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers module routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermModulesManage))
		r.Get("/", h.listModules)
		r.Post("/", h.ensureModule)
		r.Patch("/{id}/active", h.setActive)
	})
}

type moduleView struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	DisplayName        string    `json:"display_name"`
	IsActive           bool      `json:"is_active"`
	RequiresEmployment bool      `json:"requires_employment"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toModuleView(m Module) moduleView {
	return moduleView{
		ID:                 m.ID,
		Name:               m.Name,
		DisplayName:        m.DisplayName,
		IsActive:           m.IsActive,
		RequiresEmployment: m.RequiresEmployment,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListModules(r.Context())
	if err != nil {
		h.logger.Error("list modules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]moduleView, 0, len(modules))
	for _, m := range modules {
		views = append(views, toModuleView(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": views})
}

type ensureModuleRequest struct {
	Name               string `json:"name" validate:"required,max=64"`
	DisplayName        string `json:"display_name" validate:"required,max=128"`
	RequiresEmployment bool   `json:"requires_employment"`
}

func (h *Handler) ensureModule(w http.ResponseWriter, r *http.Request) {
	var req ensureModuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	module, err := h.service.Ensure(r.Context(), EnsureInput{
		Name:               req.Name,
		DisplayName:        req.DisplayName,
		RequiresEmployment: req.RequiresEmployment,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toModuleView(module))
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	actorID, _ := authz.CurrentPrincipalID(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	module, err := h.service.SetActive(r.Context(), actorID, id, *req.IsActive)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toModuleView(module))
}
