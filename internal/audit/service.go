package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines the read queries behind the audit API.
type RepositoryPort interface {
	Window(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error)
}

// Repository provides PostgreSQL backed audit reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Window returns entries matching the filters, newest first.
func (r *Repository) Window(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, action, module, entity, entity_id, meta, occurred_at
FROM audit_entries
WHERE ($1::bigint = 0 OR actor_id = $1)
  AND ($2::text = '' OR entity = $2)
  AND ($3::text = '' OR entity_id = $3)
  AND ($4::text = '' OR action = $4)
  AND ($5::timestamptz IS NULL OR occurred_at >= $5)
  AND ($6::timestamptz IS NULL OR occurred_at <= $6)
ORDER BY occurred_at DESC, id DESC
OFFSET $7 LIMIT $8`,
		filters.Actor,
		strings.TrimSpace(filters.Entity),
		strings.TrimSpace(filters.EntityID),
		strings.TrimSpace(filters.Action),
		toPgTime(filters.From),
		toPgTime(filters.To),
		offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	var metaJSON []byte
	if err := row.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Module, &entry.Entity, &entry.EntityID, &metaJSON, &entry.At); err != nil {
		return Entry{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &entry.Meta); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// Service coordinates paged audit reads for compliance surfaces.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Query fetches a page of entries. It requests one extra row to detect
// whether a next page exists.
func (s *Service) Query(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	entries, err := s.repo.Window(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

var _ RepositoryPort = (*Repository)(nil)
