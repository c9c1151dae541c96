package roles

import (
	"context"
	"strconv"

	"log/slog"

	"github.com/praxis-sec/praxis/internal/audit"
)

// Bootstrap reconciles the super role on startup. Safe to invoke on every
// process start: once a current holder exists it does nothing, and it never
// reassigns the role away from an existing holder.
type Bootstrap struct {
	repo    RepositoryPort
	auditor Auditor
	logger  *slog.Logger
}

// NewBootstrap builds a Bootstrap instance.
func NewBootstrap(repo RepositoryPort, auditor Auditor, logger *slog.Logger) *Bootstrap {
	return &Bootstrap{repo: repo, auditor: auditor, logger: logger}
}

// EnsureSuperAdmin elevates the earliest-created active principal when the
// super role has no current holder.
func (b *Bootstrap) EnsureSuperAdmin(ctx context.Context) error {
	elevated, role, err := b.repo.EnsureSuperHolder(ctx)
	if err != nil {
		return err
	}
	if elevated == 0 {
		return nil
	}
	if b.logger != nil {
		b.logger.Info("bootstrap elevated initial administrator",
			slog.Int64("principal_id", elevated),
			slog.String("role", role.Name))
	}
	if b.auditor != nil {
		entry := audit.Entry{
			ActorID:  elevated,
			Action:   "bootstrap.super_admin_assigned",
			Module:   "global",
			Entity:   "role",
			EntityID: strconv.FormatInt(role.ID, 10),
			Meta:     map[string]any{"principal_id": elevated},
		}
		if err := b.auditor.Record(ctx, entry); err != nil && b.logger != nil {
			b.logger.Error("record bootstrap audit entry", slog.Any("error", err))
		}
	}
	return nil
}
