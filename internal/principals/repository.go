package principals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-sec/praxis/internal/shared"
)

// RepositoryPort defines data access for principals.
type RepositoryPort interface {
	ListPrincipals(ctx context.Context) ([]Principal, error)
	GetPrincipal(ctx context.Context, id int64) (Principal, error)
	UpsertBySubject(ctx context.Context, input ProvisionInput) (Principal, bool, error)
	SetStatus(ctx context.Context, id int64, status Status) (Principal, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const principalColumns = `id, subject, email, name, status, employee_ref, created_at, updated_at`

func scanPrincipal(row pgx.Row) (Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Subject, &p.Email, &p.Name, &p.Status, &p.EmployeeRef, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListPrincipals returns all principals ordered by creation.
func (r *Repository) ListPrincipals(ctx context.Context) ([]Principal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+principalColumns+` FROM principals ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var principals []Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}

// GetPrincipal fetches a principal by ID.
func (r *Repository) GetPrincipal(ctx context.Context, id int64) (Principal, error) {
	p, err := scanPrincipal(r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, shared.ErrNotFound
		}
		return Principal{}, err
	}
	return p, nil
}

// UpsertBySubject creates the principal on first sight of the IdP subject and
// refreshes its identity attributes on later sights. The boolean reports
// whether the row was newly created.
func (r *Repository) UpsertBySubject(ctx context.Context, input ProvisionInput) (Principal, bool, error) {
	rows, err := r.pool.Query(ctx, `INSERT INTO principals (subject, email, name, status, employee_ref, created_at, updated_at)
VALUES ($1, $2, $3, 'active', $4, NOW(), NOW())
ON CONFLICT (subject) DO UPDATE
SET email = EXCLUDED.email, name = EXCLUDED.name, employee_ref = COALESCE(EXCLUDED.employee_ref, principals.employee_ref), updated_at = NOW()
RETURNING `+principalColumns+`, (xmax = 0)`,
		input.Subject, input.Email, input.Name, input.EmployeeRef)
	if err != nil {
		return Principal{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Principal{}, false, err
		}
		return Principal{}, false, shared.ErrNotFound
	}
	var p Principal
	var created bool
	if err := rows.Scan(&p.ID, &p.Subject, &p.Email, &p.Name, &p.Status, &p.EmployeeRef, &p.CreatedAt, &p.UpdatedAt, &created); err != nil {
		return Principal{}, false, err
	}
	return p, created, rows.Err()
}

// SetStatus updates the lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) (Principal, error) {
	p, err := scanPrincipal(r.pool.QueryRow(ctx, `UPDATE principals SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+principalColumns, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, shared.ErrNotFound
		}
		return Principal{}, err
	}
	return p, nil
}

var _ RepositoryPort = (*Repository)(nil)
