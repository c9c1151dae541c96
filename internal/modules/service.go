package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/praxis-sec/praxis/internal/audit"
	"github.com/praxis-sec/praxis/internal/authz"
	"github.com/praxis-sec/praxis/internal/shared"
)

// Auditor records authorization state changes.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service handles module registry logic.
type Service struct {
	repo    RepositoryPort
	auditor Auditor
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// ListModules returns all modules.
func (s *Service) ListModules(ctx context.Context) ([]Module, error) {
	return s.repo.ListModules(ctx)
}

// Ensure registers a module at setup time. Idempotent.
func (s *Service) Ensure(ctx context.Context, input EnsureInput) (Module, error) {
	input.Name = strings.TrimSpace(input.Name)
	if !authz.ValidSegment(input.Name) {
		return Module{}, fmt.Errorf("%w: module name %q", shared.ErrValidation, input.Name)
	}
	return s.repo.Ensure(ctx, input)
}

// SetActive toggles the module's active flag. Deactivation voids all the
// module's permissions at evaluation time without touching any role data.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) (Module, error) {
	module, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return Module{}, err
	}
	if s.auditor != nil {
		entry := audit.Entry{
			ActorID:  actorID,
			Action:   "module.active_changed",
			Module:   module.Name,
			Entity:   "module",
			EntityID: strconv.FormatInt(module.ID, 10),
			Meta:     map[string]any{"is_active": active},
		}
		if err := s.auditor.Record(ctx, entry); err != nil && s.logger != nil {
			s.logger.Error("record audit entry", slog.Any("error", err))
		}
	}
	return module, nil
}
