package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-sec/praxis/internal/platform/db"
	"github.com/praxis-sec/praxis/internal/shared"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// RepositoryPort defines data access for the role lifecycle.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, input CreateRoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	ReplaceRolePermissions(ctx context.Context, role Role, permissionIDs []int64) (PermissionDiff, error)
	UpsertAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, principalID, roleID int64) (bool, error)
	ListAssignments(ctx context.Context, principalID int64) ([]Assignment, error)
	EnsureSuperHolder(ctx context.Context) (int64, Role, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, display_name, description, module, is_system, priority, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.Module, &role.IsSystem, &role.Priority, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// ListRoles returns all roles ordered by priority then name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY priority DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role with an empty permission set.
func (r *Repository) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `INSERT INTO roles (name, display_name, description, module, is_system, priority, created_at, updated_at)
VALUES ($1, $2, $3, $4, FALSE, $5, NOW(), NOW()) RETURNING `+roleColumns,
		input.Name, input.DisplayName, input.Description, input.Module, input.Priority))
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return Role{}, shared.Conflict(fmt.Sprintf("role %q already exists in this module scope", input.Name))
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates the descriptive fields of a role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `UPDATE roles
SET display_name = $2, description = $3, priority = $4, updated_at = NOW()
WHERE id = $1 RETURNING `+roleColumns,
		id, input.DisplayName, input.Description, input.Priority))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role and cascades its permission rows. It refuses with
// a Conflict carrying the blocking count while any assignment references the
// role, expired or not.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var blocking int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM role_assignments WHERE role_id = $1`, id).Scan(&blocking); err != nil {
			return err
		}
		if blocking > 0 {
			return &shared.ConflictError{Reason: "role is still assigned", Blocking: blocking}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// RolePermissionIDs lists the permission IDs currently attached to a role.
func (r *Repository) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceRolePermissions atomically establishes "the role now has exactly set
// S". A concurrent evaluation observes either the old or the new set in full;
// the role row is locked for the duration so two replaces serialize.
func (r *Repository) ReplaceRolePermissions(ctx context.Context, role Role, permissionIDs []int64) (PermissionDiff, error) {
	var diff PermissionDiff
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM roles WHERE id = $1 FOR UPDATE`, role.ID); err != nil {
			return err
		}

		target := make(map[int64]struct{}, len(permissionIDs))
		for _, id := range permissionIDs {
			target[id] = struct{}{}
		}

		if role.Super() && len(target) == 0 {
			return fmt.Errorf("%w: the %s role cannot lose all permissions", shared.ErrForbidden, SuperRoleName)
		}

		if err := verifyPermissionScope(ctx, tx, role, permissionIDs); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, role.ID)
		if err != nil {
			return err
		}
		current := make(map[int64]struct{})
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			current[id] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for id := range target {
			if _, ok := current[id]; !ok {
				diff.Added = append(diff.Added, id)
			}
		}
		for id := range current {
			if _, ok := target[id]; !ok {
				diff.Removed = append(diff.Removed, id)
			}
		}

		for _, id := range diff.Added {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id, created_at) VALUES ($1, $2, NOW())`, role.ID, id); err != nil {
				if isPgErr(err, pgForeignKeyViolation) {
					return fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
				}
				return err
			}
		}
		for _, id := range diff.Removed {
			if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, role.ID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PermissionDiff{}, err
	}
	return diff, nil
}

// verifyPermissionScope enforces that every attached permission belongs to
// the role's module. Global roles may attach any module's permissions.
func verifyPermissionScope(ctx context.Context, tx pgx.Tx, role Role, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	var found int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, permissionIDs).Scan(&found); err != nil {
		return err
	}
	if found != len(permissionIDs) {
		return fmt.Errorf("%w: one or more permissions do not exist", shared.ErrNotFound)
	}
	if role.Module == nil {
		return nil
	}
	var foreign int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM permissions p JOIN modules m ON m.id = p.module_id
WHERE p.id = ANY($1) AND m.name <> $2`, permissionIDs, *role.Module).Scan(&foreign); err != nil {
		return err
	}
	if foreign > 0 {
		return shared.Conflict("permissions outside the role's module scope")
	}
	return nil
}

// UpsertAssignment grants a role to a principal. Re-assigning an already-held
// role overwrites assigned-by/at and expiry, so concurrent duplicate grants
// resolve last-write-wins without surfacing an error to either caller.
func (r *Repository) UpsertAssignment(ctx context.Context, a Assignment) error {
	assignedAt := a.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO role_assignments (principal_id, role_id, assigned_by, assigned_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (principal_id, role_id) DO UPDATE
SET assigned_by = EXCLUDED.assigned_by, assigned_at = EXCLUDED.assigned_at, expires_at = EXCLUDED.expires_at`,
		a.PrincipalID, a.RoleID, a.AssignedBy, assignedAt, a.ExpiresAt)
	if err != nil {
		if isPgErr(err, pgForeignKeyViolation) {
			return shared.ErrNotFound
		}
		return err
	}
	return nil
}

// DeleteAssignment revokes a role. The boolean reports whether a row existed.
func (r *Repository) DeleteAssignment(ctx context.Context, principalID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_assignments WHERE principal_id = $1 AND role_id = $2`, principalID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListAssignments returns all assignments held by a principal.
func (r *Repository) ListAssignments(ctx context.Context, principalID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT principal_id, role_id, assigned_by, assigned_at, expires_at
FROM role_assignments WHERE principal_id = $1 ORDER BY assigned_at`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.PrincipalID, &a.RoleID, &a.AssignedBy, &a.AssignedAt, &a.ExpiresAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// EnsureSuperHolder guarantees the super role has at least one current
// holder. When nobody holds it, the earliest-created active principal is
// elevated. Returns the elevated principal ID, zero when nothing changed.
func (r *Repository) EnsureSuperHolder(ctx context.Context) (int64, Role, error) {
	var elevated int64
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		role, err = scanRole(tx.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1 AND module IS NULL AND is_system FOR UPDATE`, SuperRoleName))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s role missing", shared.ErrNotFound, SuperRoleName)
			}
			return err
		}
		var held bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_assignments
WHERE role_id = $1 AND (expires_at IS NULL OR expires_at > NOW()))`, role.ID).Scan(&held); err != nil {
			return err
		}
		if held {
			return nil
		}
		var principalID int64
		err = tx.QueryRow(ctx, `SELECT id FROM principals WHERE status = 'active' ORDER BY created_at, id LIMIT 1`).Scan(&principalID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// No principals yet; nothing to reconcile.
				return nil
			}
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO role_assignments (principal_id, role_id, assigned_by, assigned_at, expires_at)
VALUES ($1, $2, $1, NOW(), NULL)
ON CONFLICT (principal_id, role_id) DO UPDATE SET expires_at = NULL`, principalID, role.ID); err != nil {
			return err
		}
		elevated = principalID
		return nil
	})
	if err != nil {
		return 0, Role{}, err
	}
	return elevated, role, nil
}

func isPgErr(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

var _ RepositoryPort = (*Repository)(nil)
