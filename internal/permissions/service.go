package permissions

import (
	"context"
	"strconv"

	"log/slog"

	"github.com/praxis-sec/praxis/internal/audit"
	"github.com/praxis-sec/praxis/internal/authz"
)

// Auditor records authorization state changes.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service handles the permission catalog.
type Service struct {
	repo    RepositoryPort
	auditor Auditor
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// ListPermissions returns the catalog, optionally filtered by module name.
func (s *Service) ListPermissions(ctx context.Context, module string) ([]Permission, error) {
	return s.repo.ListPermissions(ctx, module)
}

// Ensure registers a permission at setup time. The key is validated through
// the canonical constructor so a malformed segment can never enter the
// catalog.
func (s *Service) Ensure(ctx context.Context, actorID int64, input EnsureInput) (Permission, error) {
	key, err := authz.NewPermissionKey(input.Module, input.Resource, input.Action)
	if err != nil {
		return Permission{}, err
	}
	input.Module = key.Module
	input.Resource = key.Resource
	input.Action = key.Action
	permission, err := s.repo.Ensure(ctx, input)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   "permission.ensured",
		Module:   permission.Module,
		Entity:   "permission",
		EntityID: strconv.FormatInt(permission.ID, 10),
		Meta:     map[string]any{"key": key.String()},
	})
	return permission, nil
}

// Delete removes a permission, cascading revocation from every role.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	permission, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return err
	}
	revoked, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   "permission.deleted",
		Module:   permission.Module,
		Entity:   "permission",
		EntityID: strconv.FormatInt(permission.ID, 10),
		Meta: map[string]any{
			"key":           permission.Module + "." + permission.Resource + "." + permission.Action,
			"roles_revoked": revoked,
		},
	})
	return nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record audit entry", slog.String("action", entry.Action), slog.Any("error", err))
	}
}
