package roles

import "time"

// SuperRoleName identifies the protected super-privileged system role. It is
// a constant of the engine, not a deployment setting.
const SuperRoleName = "super_admin"

// Role bundles permissions, optionally scoped to one module. A nil Module
// means the role is global and may attach any module's permissions.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Module      *string
	IsSystem    bool
	Priority    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Super reports whether this is the protected super-privileged role.
func (r Role) Super() bool {
	return r.IsSystem && r.Module == nil && r.Name == SuperRoleName
}

// Assignment ties a role to a principal. A past ExpiresAt makes the
// assignment invisible to the evaluator without requiring deletion.
type Assignment struct {
	PrincipalID int64
	RoleID      int64
	AssignedBy  int64
	AssignedAt  time.Time
	ExpiresAt   *time.Time
}

// Expired reports whether the assignment is past its expiry at the given time.
func (a Assignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// CreateRoleInput carries the fields accepted by CreateRole.
type CreateRoleInput struct {
	Name        string
	DisplayName string
	Description string
	Module      *string
	Priority    int
}

// UpdateRoleInput carries the mutable descriptive fields. Name, module scope
// and the system flag are never mutable after creation.
type UpdateRoleInput struct {
	DisplayName string
	Description string
	Priority    int
}

// PermissionDiff reports the outcome of a replace-set operation.
type PermissionDiff struct {
	Added   []int64
	Removed []int64
}

// Empty reports whether the replace was a no-op.
func (d PermissionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}
