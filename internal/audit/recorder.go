package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-sec/praxis/internal/shared"
)

// Recorder appends entries to audit_entries.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists the entry. A write failure surfaces as StoreFailure and is
// never silently swallowed.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	occurredAt := entry.At
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_entries (actor_id, action, module, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ActorID, entry.Action, entry.Module, entry.Entity, entry.EntityID, metaJSON, occurredAt)
	if err != nil {
		return fmt.Errorf("%w: audit insert: %v", shared.ErrStoreFailure, err)
	}
	return nil
}
