package principals

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/praxis-sec/praxis/internal/authz"
	"github.com/praxis-sec/praxis/internal/platform/httpx"
	"github.com/praxis-sec/praxis/internal/roles"
	"github.com/praxis-sec/praxis/internal/shared"
)

// AssignmentsLister exposes the role assignments held by a principal.
type AssignmentsLister interface {
	ListAssignments(ctx context.Context, principalID int64) ([]roles.Assignment, error)
}

// Handler manages principal endpoints, including the IdP provisioning
// callback that establishes sessions.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	evaluator     *authz.Service
	assignments   AssignmentsLister
	guard         authz.Middleware
	sessions      *shared.SessionManager
	provisionHash []byte
	validator     *validator.Validate
}

// NewHandler builds a Handler instance. provisionHash is the bcrypt hash of
// the shared secret presented by the identity provider callback.
func NewHandler(logger *slog.Logger, service *Service, evaluator *authz.Service, assignments AssignmentsLister, guard authz.Middleware, sessions *shared.SessionManager, provisionHash string) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		evaluator:     evaluator,
		assignments:   assignments,
		guard:         guard,
		sessions:      sessions,
		provisionHash: []byte(provisionHash),
		validator:     validator.New(),
	}
}

// MountRoutes registers principal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/provision", h.provision)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermPrincipalsView, authz.PermPrincipalsEdit))
		r.Get("/", h.listPrincipals)
		r.Get("/{id}", h.getPrincipal)
		r.Get("/{id}/permissions", h.listPrincipalPermissions)
		r.Get("/{id}/assignments", h.listPrincipalAssignments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermPrincipalsEdit))
		r.Patch("/{id}/status", h.setStatus)
	})
}

type principalView struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	EmployeeRef *string   `json:"employee_ref"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPrincipalView(p Principal) principalView {
	return principalView{
		ID:          p.ID,
		Subject:     p.Subject,
		Email:       p.Email,
		Name:        p.Name,
		Status:      string(p.Status),
		EmployeeRef: p.EmployeeRef,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type provisionRequest struct {
	Subject     string  `json:"subject" validate:"required,max=255"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Name        string  `json:"name" validate:"max=255"`
	EmployeeRef *string `json:"employee_ref"`
}

// provision is called by the external identity provider after it has
// authenticated the user. Authentication itself is out of scope here; the
// callback only asserts who the caller is, and the engine decides what they
// may do from that point on.
func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	secret := bearerToken(r)
	if secret == "" || bcrypt.CompareHashAndPassword(h.provisionHash, []byte(secret)) != nil {
		h.logger.Warn("provision rejected", slog.String("remote", r.RemoteAddr))
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req provisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, err := h.service.Provision(r.Context(), ProvisionInput{
		Subject:     req.Subject,
		Email:       req.Email,
		Name:        req.Name,
		EmployeeRef: req.EmployeeRef,
	})
	if err != nil {
		h.logger.Error("provision principal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if principal.Status != StatusActive {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetPrincipal(strconv.FormatInt(principal.ID, 10))
	}
	httpx.JSON(w, http.StatusOK, toPrincipalView(principal))
}

func (h *Handler) listPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.ListPrincipals(r.Context())
	if err != nil {
		h.logger.Error("list principals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]principalView, 0, len(principals))
	for _, p := range principals {
		views = append(views, toPrincipalView(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"principals": views})
}

func (h *Handler) getPrincipal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, err := h.service.GetPrincipal(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPrincipalView(principal))
}

func (h *Handler) listPrincipalPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.GetPrincipal(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	keys, err := h.evaluator.ListPermissions(r.Context(), id)
	if err != nil {
		h.logger.Error("list principal permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rendered := make([]string, 0, len(keys))
	for _, key := range keys {
		rendered = append(rendered, key.String())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": rendered})
}

type assignmentView struct {
	RoleID     int64      `json:"role_id"`
	AssignedBy int64      `json:"assigned_by"`
	AssignedAt time.Time  `json:"assigned_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

func (h *Handler) listPrincipalAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.GetPrincipal(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	assignments, err := h.assignments.ListAssignments(r.Context(), id)
	if err != nil {
		h.logger.Error("list principal assignments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, assignmentView{
			RoleID:     a.RoleID,
			AssignedBy: a.AssignedBy,
			AssignedAt: a.AssignedAt,
			ExpiresAt:  a.ExpiresAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": views})
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _ := authz.CurrentPrincipalID(r)
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, err := h.service.SetStatus(r.Context(), actorID, id, Status(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPrincipalView(principal))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return 0, false
	}
	return id, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
