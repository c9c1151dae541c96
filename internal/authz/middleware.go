package authz

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/praxis-sec/praxis/internal/observability"
	"github.com/praxis-sec/praxis/internal/platform/httpx"
	"github.com/praxis-sec/praxis/internal/shared"
)

// Middleware guards HTTP routes with evaluator decisions. It establishes
// nothing about identity itself; the session gate has already resolved the
// principal by the time these run.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RequireAny admits the request when the principal holds at least one of the
// given permissions.
func (m Middleware) RequireAny(keys ...PermissionKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principalID, ok := m.currentPrincipalID(r)
			if !ok {
				m.deny(w, r, "anonymous")
				return
			}
			granted, err := m.Service.ListPermissions(r.Context(), principalID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require any", slog.Any("error", err), slog.String("request_id", chimw.GetReqID(r.Context())))
				}
				httpx.RespondError(w, err)
				return
			}
			set := make(map[PermissionKey]struct{}, len(granted))
			for _, key := range granted {
				set[key] = struct{}{}
			}
			for _, key := range keys {
				if _, ok := set[key]; ok {
					m.Metrics.AuthzDecision("allow")
					next.ServeHTTP(w, r)
					return
				}
			}
			m.deny(w, r, "insufficient")
		})
	}
}

// RequirePermission admits the request only when the principal holds the
// exact permission.
func (m Middleware) RequirePermission(key PermissionKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID, ok := m.currentPrincipalID(r)
			if !ok {
				m.deny(w, r, "anonymous")
				return
			}
			allowed, err := m.Service.HasPermission(r.Context(), principalID, key)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require permission",
						slog.String("permission", key.String()),
						slog.Any("error", err),
						slog.String("request_id", chimw.GetReqID(r.Context())))
				}
				httpx.RespondError(w, err)
				return
			}
			if !allowed {
				m.deny(w, r, "insufficient")
				return
			}
			m.Metrics.AuthzDecision("allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, reason string) {
	m.Metrics.AuthzDecision("deny")
	if m.Logger != nil {
		m.Logger.Warn("authorization denied",
			slog.String("path", r.URL.Path),
			slog.String("reason", reason),
			slog.String("request_id", chimw.GetReqID(r.Context())))
	}
	if reason == "anonymous" {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	httpx.RespondError(w, shared.ErrForbidden)
}

func (m Middleware) currentPrincipalID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.Principal())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse principal id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

// CurrentPrincipalID exposes the session principal for handlers that act on
// the caller's own identity.
func CurrentPrincipalID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(sess.Principal()), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
