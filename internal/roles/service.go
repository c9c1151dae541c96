package roles

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/praxis-sec/praxis/internal/audit"
	"github.com/praxis-sec/praxis/internal/authz"
	"github.com/praxis-sec/praxis/internal/shared"
)

// Auditor records authorization state changes.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service is the sole mutation entry point for roles, role-permission sets
// and assignments. Every invariant of the lifecycle lives here or in the
// repository transactions it delegates to.
type Service struct {
	repo    RepositoryPort
	auditor Auditor
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

var titleCaser = cases.Title(language.English)

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRolePermissions returns the permission IDs attached to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]int64, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.RolePermissionIDs(ctx, roleID)
}

// ListAssignments returns the assignments held by a principal.
func (s *Service) ListAssignments(ctx context.Context, principalID int64) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, principalID)
}

// CreateRole inserts a new role with an empty permission set.
func (s *Service) CreateRole(ctx context.Context, actorID int64, input CreateRoleInput) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	if !authz.ValidSegment(input.Name) {
		return Role{}, fmt.Errorf("%w: role name must start with a letter followed by lowercase alphanumerics or underscores", ErrInvalidName)
	}
	if input.Module != nil {
		trimmed := strings.TrimSpace(*input.Module)
		if trimmed == "" {
			input.Module = nil
		} else if !authz.ValidSegment(trimmed) {
			return Role{}, fmt.Errorf("%w: module scope %q", ErrInvalidName, trimmed)
		} else {
			input.Module = &trimmed
		}
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		input.DisplayName = titleCaser.String(strings.ReplaceAll(input.Name, "_", " "))
	}
	role, err := s.repo.CreateRole(ctx, input)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.created", role, map[string]any{
		"name":     role.Name,
		"module":   moduleLabel(role.Module),
		"priority": role.Priority,
	})
	return role, nil
}

// UpdateRole mutates the descriptive fields of a non-system role. System
// roles are fully locked: name, module scope, the system flag and the
// descriptive fields alike.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, input UpdateRoleInput) (Role, error) {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if current.IsSystem {
		return Role{}, fmt.Errorf("%w: system roles cannot be edited", shared.ErrForbidden)
	}
	role, err := s.repo.UpdateRole(ctx, id, input)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.updated", role, map[string]any{
		"before": map[string]any{"display_name": current.DisplayName, "description": current.Description, "priority": current.Priority},
		"after":  map[string]any{"display_name": role.DisplayName, "description": role.Description, "priority": role.Priority},
	})
	return role, nil
}

// DeleteRole removes a role. System roles can never be deleted; a role with
// any referencing assignment fails with a Conflict carrying the count.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system roles cannot be deleted", shared.ErrForbidden)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.deleted", role, map[string]any{
		"name":   role.Name,
		"module": moduleLabel(role.Module),
	})
	return nil
}

// ReplaceRolePermissions atomically establishes the role's permission set.
// This is the only way role permissions change; incremental add/remove
// endpoints are intentionally absent.
func (s *Service) ReplaceRolePermissions(ctx context.Context, actorID, roleID int64, permissionIDs []int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	diff, err := s.repo.ReplaceRolePermissions(ctx, role, permissionIDs)
	if err != nil {
		return err
	}
	meta := map[string]any{"added": diff.Added, "removed": diff.Removed}
	if diff.Empty() {
		meta = map[string]any{"change": "none"}
	}
	s.record(ctx, actorID, "role.permissions_replaced", role, meta)
	return nil
}

// AssignRole grants a role to a principal. Idempotent: re-assigning an
// already-held role succeeds and refreshes assigned-by/at and expiry.
func (s *Service) AssignRole(ctx context.Context, actorID, principalID, roleID int64, expiresAt *time.Time) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	err = s.repo.UpsertAssignment(ctx, Assignment{
		PrincipalID: principalID,
		RoleID:      roleID,
		AssignedBy:  actorID,
		AssignedAt:  time.Now().UTC(),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return err
	}
	meta := map[string]any{"principal_id": principalID, "role": role.Name}
	if expiresAt != nil {
		meta["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
	}
	s.record(ctx, actorID, "role.assigned", role, meta)
	return nil
}

// RevokeRole removes an assignment. Revoking an absent assignment is NotFound.
func (s *Service) RevokeRole(ctx context.Context, actorID, principalID, roleID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	existed, err := s.repo.DeleteAssignment(ctx, principalID, roleID)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("%w: assignment", shared.ErrNotFound)
	}
	s.record(ctx, actorID, "role.revoked", role, map[string]any{"principal_id": principalID, "role": role.Name})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, role Role, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Module:   moduleLabel(role.Module),
		Entity:   "role",
		EntityID: strconv.FormatInt(role.ID, 10),
		Meta:     meta,
	}
	if err := s.auditor.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record audit entry", slog.String("action", action), slog.Any("error", err))
	}
}

func moduleLabel(module *string) string {
	if module == nil {
		return "global"
	}
	return *module
}

// ErrInvalidName marks a malformed role or module name.
var ErrInvalidName = fmt.Errorf("%w: invalid name", shared.ErrValidation)
