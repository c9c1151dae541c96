package modules

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-sec/praxis/internal/shared"
)

// RepositoryPort defines data access for modules.
type RepositoryPort interface {
	ListModules(ctx context.Context) ([]Module, error)
	GetModuleByName(ctx context.Context, name string) (Module, error)
	Ensure(ctx context.Context, input EnsureInput) (Module, error)
	SetActive(ctx context.Context, id int64, active bool) (Module, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const moduleColumns = `id, name, display_name, is_active, requires_employment, created_at, updated_at`

func scanModule(row pgx.Row) (Module, error) {
	var m Module
	err := row.Scan(&m.ID, &m.Name, &m.DisplayName, &m.IsActive, &m.RequiresEmployment, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// ListModules returns all modules ordered by name.
func (r *Repository) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// GetModuleByName fetches a module by name.
func (r *Repository) GetModuleByName(ctx context.Context, name string) (Module, error) {
	m, err := scanModule(r.pool.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, shared.ErrNotFound
		}
		return Module{}, err
	}
	return m, nil
}

// Ensure upserts a module by name. Existing modules keep their active flag.
func (r *Repository) Ensure(ctx context.Context, input EnsureInput) (Module, error) {
	m, err := scanModule(r.pool.QueryRow(ctx, `INSERT INTO modules (name, display_name, is_active, requires_employment, created_at, updated_at)
VALUES ($1, $2, TRUE, $3, NOW(), NOW())
ON CONFLICT (name) DO UPDATE
SET display_name = EXCLUDED.display_name, requires_employment = EXCLUDED.requires_employment, updated_at = NOW()
RETURNING `+moduleColumns,
		input.Name, input.DisplayName, input.RequiresEmployment))
	if err != nil {
		return Module{}, err
	}
	return m, nil
}

// SetActive toggles the module's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (Module, error) {
	m, err := scanModule(r.pool.QueryRow(ctx, `UPDATE modules SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING `+moduleColumns, id, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, shared.ErrNotFound
		}
		return Module{}, err
	}
	return m, nil
}

var _ RepositoryPort = (*Repository)(nil)
