package authz

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleAccess captures everything CanAccessModule needs in one round trip.
type ModuleAccess struct {
	Found              bool
	ModuleActive       bool
	RequiresEmployment bool
	HasEmployeeRef     bool
	PermissionCount    int64
}

// RepositoryPort defines the read queries behind the evaluator.
type RepositoryPort interface {
	PermissionExists(ctx context.Context, principalID int64, key PermissionKey) (bool, error)
	EffectivePermissions(ctx context.Context, principalID int64) ([]PermissionKey, error)
	ModuleAccess(ctx context.Context, principalID int64, moduleName string) (ModuleAccess, error)
}

// Repository provides PostgreSQL backed evaluation queries. Every operation is
// a single join over role_assignments, roles, role_permissions, permissions
// and modules; per-role round trips are deliberately not an option here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const effectiveJoin = `
FROM role_assignments ra
JOIN roles r ON r.id = ra.role_id
JOIN role_permissions rp ON rp.role_id = r.id
JOIN permissions p ON p.id = rp.permission_id
JOIN modules m ON m.id = p.module_id
WHERE ra.principal_id = $1
  AND (ra.expires_at IS NULL OR ra.expires_at > NOW())
  AND m.is_active`

// PermissionExists reports whether the principal holds the exact key through
// any non-expired assignment whose module is active.
func (r *Repository) PermissionExists(ctx context.Context, principalID int64, key PermissionKey) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 `+effectiveJoin+`
  AND m.name = $2 AND p.resource = $3 AND p.action = $4)`,
		principalID, key.Module, key.Resource, key.Action).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// EffectivePermissions returns the deduplicated effective permission set.
func (r *Repository) EffectivePermissions(ctx context.Context, principalID int64) ([]PermissionKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT m.name, p.resource, p.action `+effectiveJoin+`
ORDER BY m.name, p.resource, p.action`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []PermissionKey
	for rows.Next() {
		var key PermissionKey
		if err := rows.Scan(&key.Module, &key.Resource, &key.Action); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// ModuleAccess loads the module gate attributes plus the principal's
// permission count within the module.
func (r *Repository) ModuleAccess(ctx context.Context, principalID int64, moduleName string) (ModuleAccess, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.is_active, m.requires_employment,
       EXISTS (SELECT 1 FROM principals pr WHERE pr.id = $1 AND pr.employee_ref IS NOT NULL),
       (SELECT COUNT(*) FROM role_assignments ra
          JOIN role_permissions rp ON rp.role_id = ra.role_id
          JOIN permissions p ON p.id = rp.permission_id
         WHERE ra.principal_id = $1 AND p.module_id = m.id
           AND (ra.expires_at IS NULL OR ra.expires_at > NOW()))
FROM modules m WHERE m.name = $2`, principalID, moduleName)
	if err != nil {
		return ModuleAccess{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return ModuleAccess{}, rows.Err()
	}
	access := ModuleAccess{Found: true}
	if err := rows.Scan(&access.ModuleActive, &access.RequiresEmployment, &access.HasEmployeeRef, &access.PermissionCount); err != nil {
		return ModuleAccess{}, err
	}
	return access, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
