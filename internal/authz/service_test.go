package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-sec/praxis/internal/shared"
)

type stubRepo struct {
	exists       bool
	existsErr    error
	effective    []PermissionKey
	effectiveErr error
	access       ModuleAccess
	accessErr    error

	effectiveCalls int
}

func (s *stubRepo) PermissionExists(ctx context.Context, principalID int64, key PermissionKey) (bool, error) {
	return s.exists, s.existsErr
}

func (s *stubRepo) EffectivePermissions(ctx context.Context, principalID int64) ([]PermissionKey, error) {
	s.effectiveCalls++
	return s.effective, s.effectiveErr
}

func (s *stubRepo) ModuleAccess(ctx context.Context, principalID int64, moduleName string) (ModuleAccess, error) {
	return s.access, s.accessErr
}

func TestHasPermission(t *testing.T) {
	svc := NewService(&stubRepo{exists: true})
	ok, err := svc.HasPermission(context.Background(), 7, MustKey("cms", "articles", "publish"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasPermissionDenies(t *testing.T) {
	svc := NewService(&stubRepo{exists: false})
	ok, err := svc.HasPermission(context.Background(), 7, MustKey("cms", "articles", "publish"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionStoreFailure(t *testing.T) {
	svc := NewService(&stubRepo{existsErr: errors.New("connection refused")})
	ok, err := svc.HasPermission(context.Background(), 7, MustKey("cms", "articles", "publish"))
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEvaluatorUnavailable)
}

func TestCanAccessModule(t *testing.T) {
	cases := []struct {
		name   string
		access ModuleAccess
		want   bool
	}{
		{"unknown module", ModuleAccess{Found: false}, false},
		{"inactive module", ModuleAccess{Found: true, ModuleActive: false, PermissionCount: 3}, false},
		{"employment gate closed", ModuleAccess{Found: true, ModuleActive: true, RequiresEmployment: true, HasEmployeeRef: false, PermissionCount: 3}, false},
		{"employment gate open", ModuleAccess{Found: true, ModuleActive: true, RequiresEmployment: true, HasEmployeeRef: true, PermissionCount: 3}, true},
		{"no permissions in module", ModuleAccess{Found: true, ModuleActive: true, PermissionCount: 0}, false},
		{"allowed", ModuleAccess{Found: true, ModuleActive: true, PermissionCount: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(&stubRepo{access: tc.access})
			got, err := svc.CanAccessModule(context.Background(), 7, "hr")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanAccessModuleStoreFailure(t *testing.T) {
	svc := NewService(&stubRepo{accessErr: errors.New("timeout")})
	_, err := svc.CanAccessModule(context.Background(), 7, "hr")
	assert.ErrorIs(t, err, shared.ErrEvaluatorUnavailable)
}

func TestListPermissions(t *testing.T) {
	repo := &stubRepo{effective: []PermissionKey{
		MustKey("cms", "articles", "view"),
		MustKey("cms", "articles", "publish"),
	}}
	svc := NewService(repo)
	keys, err := svc.ListPermissions(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, 1, repo.effectiveCalls)
}

func TestListPermissionsStoreFailure(t *testing.T) {
	svc := NewService(&stubRepo{effectiveErr: errors.New("connection reset")})
	_, err := svc.ListPermissions(context.Background(), 7)
	assert.ErrorIs(t, err, shared.ErrEvaluatorUnavailable)
}
