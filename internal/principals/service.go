package principals

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/praxis-sec/praxis/internal/audit"
	"github.com/praxis-sec/praxis/internal/shared"
)

// Auditor records authorization state changes.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// SessionRevoker invalidates every live session held by a principal.
type SessionRevoker interface {
	RevokeForPrincipal(ctx context.Context, principalID string) error
}

// Service handles principal lifecycle logic.
type Service struct {
	repo     RepositoryPort
	auditor  Auditor
	sessions SessionRevoker
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, auditor Auditor, sessions SessionRevoker, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, sessions: sessions, logger: logger}
}

// ListPrincipals returns all principals.
func (s *Service) ListPrincipals(ctx context.Context) ([]Principal, error) {
	return s.repo.ListPrincipals(ctx)
}

// GetPrincipal fetches a principal by ID.
func (s *Service) GetPrincipal(ctx context.Context, id int64) (Principal, error) {
	return s.repo.GetPrincipal(ctx, id)
}

// Provision creates or refreshes the principal asserted by the external
// identity provider. First sight creates an active principal and records an
// audit entry; later sights only refresh identity attributes.
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (Principal, error) {
	input.Subject = strings.TrimSpace(input.Subject)
	if input.Subject == "" {
		return Principal{}, fmt.Errorf("%w: subject required", shared.ErrValidation)
	}
	principal, created, err := s.repo.UpsertBySubject(ctx, input)
	if err != nil {
		return Principal{}, err
	}
	if created {
		s.record(ctx, principal.ID, "principal.provisioned", principal, map[string]any{"subject": principal.Subject})
	}
	return principal, nil
}

// SetStatus transitions the principal's lifecycle state. Principals are
// soft-deactivated, never deleted.
func (s *Service) SetStatus(ctx context.Context, actorID, id int64, status Status) (Principal, error) {
	if !status.Valid() {
		return Principal{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	current, err := s.repo.GetPrincipal(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	if current.Status == status {
		return current, nil
	}
	principal, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return Principal{}, err
	}
	if status != StatusActive && s.sessions != nil {
		// Live cookies must stop resolving to an identity the moment the
		// principal leaves active status.
		if err := s.sessions.RevokeForPrincipal(ctx, strconv.FormatInt(id, 10)); err != nil && s.logger != nil {
			s.logger.Warn("revoke principal sessions", slog.Int64("principal_id", id), slog.Any("error", err))
		}
	}
	s.record(ctx, actorID, "principal.status_changed", principal, map[string]any{
		"before": string(current.Status),
		"after":  string(status),
	})
	return principal, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, principal Principal, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Module:   "global",
		Entity:   "principal",
		EntityID: strconv.FormatInt(principal.ID, 10),
		Meta:     meta,
	}
	if err := s.auditor.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record audit entry", slog.String("action", action), slog.Any("error", err))
	}
}
