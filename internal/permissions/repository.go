package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-sec/praxis/internal/platform/db"
	"github.com/praxis-sec/praxis/internal/roles"
	"github.com/praxis-sec/praxis/internal/shared"
)

// RepositoryPort defines data access for the permission catalog.
type RepositoryPort interface {
	ListPermissions(ctx context.Context, module string) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	Ensure(ctx context.Context, input EnsureInput) (Permission, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionSelect = `SELECT p.id, p.module_id, m.name, p.resource, p.action, p.description, p.created_at
FROM permissions p JOIN modules m ON m.id = p.module_id`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.ModuleID, &p.Module, &p.Resource, &p.Action, &p.Description, &p.CreatedAt)
	return p, err
}

// ListPermissions returns the catalog, optionally filtered by module name.
func (r *Repository) ListPermissions(ctx context.Context, module string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, permissionSelect+`
WHERE ($1::text = '' OR m.name = $1)
ORDER BY m.name, p.resource, p.action`, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var permissions []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

// GetPermission fetches a permission by ID.
func (r *Repository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, permissionSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// Ensure upserts a permission by (module, resource, action). The description
// is refreshed; everything else is immutable.
func (r *Repository) Ensure(ctx context.Context, input EnsureInput) (Permission, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (module_id, resource, action, description, created_at)
SELECT m.id, $2, $3, $4, NOW() FROM modules m WHERE m.name = $1
ON CONFLICT (module_id, resource, action) DO UPDATE SET description = EXCLUDED.description
RETURNING id`, input.Module, input.Resource, input.Action, input.Description).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("%w: module %q", shared.ErrNotFound, input.Module)
		}
		return Permission{}, err
	}
	return r.GetPermission(ctx, id)
}

// Delete removes a permission and cascades revocation from every role in one
// transaction. It refuses when the cascade would leave the super role with an
// empty permission set. Returns the number of roles the permission was
// revoked from.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	var revoked int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var superAtRisk bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM roles r
WHERE r.name = $2 AND r.module IS NULL AND r.is_system
  AND EXISTS (SELECT 1 FROM role_permissions rp WHERE rp.role_id = r.id AND rp.permission_id = $1)
  AND NOT EXISTS (SELECT 1 FROM role_permissions rp WHERE rp.role_id = r.id AND rp.permission_id <> $1))`,
			id, roles.SuperRoleName).Scan(&superAtRisk)
		if err != nil {
			return err
		}
		if superAtRisk {
			return fmt.Errorf("%w: deleting this permission would empty the %s role", shared.ErrForbidden, roles.SuperRoleName)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id)
		if err != nil {
			return err
		}
		revoked = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

var _ RepositoryPort = (*Repository)(nil)
