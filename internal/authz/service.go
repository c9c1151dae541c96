package authz

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/praxis-sec/praxis/internal/shared"
)

// Service renders allow/deny decisions. It is a pure read layer: absence of
// the principal, an inactive module, or no matching permission all evaluate
// to false. Infrastructure failures surface as ErrEvaluatorUnavailable so the
// call site can decide its own fail-open/fail-closed policy instead of
// receiving a silent false.
type Service struct {
	repo  RepositoryPort
	group singleflight.Group
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// HasPermission reports whether the principal holds (module, resource, action)
// through a non-expired assignment with the module active.
func (s *Service) HasPermission(ctx context.Context, principalID int64, key PermissionKey) (bool, error) {
	ok, err := s.repo.PermissionExists(ctx, principalID, key)
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// CanAccessModule reports whether the principal may use a module at all. The
// employment-linkage requirement is a hard gate checked before any permission
// lookup; a missing module or an inactive one evaluates to false.
func (s *Service) CanAccessModule(ctx context.Context, principalID int64, moduleName string) (bool, error) {
	access, err := s.repo.ModuleAccess(ctx, principalID, moduleName)
	if err != nil {
		return false, unavailable(err)
	}
	if !access.Found || !access.ModuleActive {
		return false, nil
	}
	if access.RequiresEmployment && !access.HasEmployeeRef {
		return false, nil
	}
	return access.PermissionCount > 0, nil
}

// ListPermissions enumerates the principal's effective permission set,
// deduplicated across roles with the same expiry and module-active filters as
// HasPermission. Concurrent lookups for one principal collapse into a single
// query.
func (s *Service) ListPermissions(ctx context.Context, principalID int64) ([]PermissionKey, error) {
	resultChan := s.group.DoChan(strconv.FormatInt(principalID, 10), func() (any, error) {
		return s.repo.EffectivePermissions(context.WithoutCancel(ctx), principalID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, unavailable(res.Err)
		}
		keys, _ := res.Val.([]PermissionKey)
		return keys, nil
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", shared.ErrEvaluatorUnavailable, err)
}
