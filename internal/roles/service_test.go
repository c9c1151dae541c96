package roles

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-sec/praxis/internal/audit"
	"github.com/praxis-sec/praxis/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	roles       map[int64]*Role
	rolePerms   map[int64]map[int64]struct{}
	assignments map[string]*Assignment
	nextRoleID  int64

	// All permission IDs the catalog knows about.
	knownPermissions map[int64]struct{}

	createErr error
	upsertErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:            make(map[int64]*Role),
		rolePerms:        make(map[int64]map[int64]struct{}),
		assignments:      make(map[string]*Assignment),
		knownPermissions: make(map[int64]struct{}),
		nextRoleID:       1,
	}
}

func assignmentKey(principalID, roleID int64) string {
	return fmt.Sprintf("%d:%d", principalID, roleID)
}

func (m *mockRepository) addRole(role Role) *Role {
	role.ID = m.nextRoleID
	m.nextRoleID++
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	m.roles[role.ID] = &role
	m.rolePerms[role.ID] = make(map[int64]struct{})
	return m.roles[role.ID]
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return *r, nil
}

func (m *mockRepository) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	if m.createErr != nil {
		return Role{}, m.createErr
	}
	for _, r := range m.roles {
		if r.Name == input.Name && moduleLabel(r.Module) == moduleLabel(input.Module) {
			return Role{}, shared.Conflict("role name already exists in scope")
		}
	}
	role := m.addRole(Role{
		Name:        input.Name,
		DisplayName: input.DisplayName,
		Description: input.Description,
		Module:      input.Module,
		Priority:    input.Priority,
	})
	return *role, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	r.DisplayName = input.DisplayName
	r.Description = input.Description
	r.Priority = input.Priority
	r.UpdatedAt = time.Now().UTC()
	return *r, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	blocking := 0
	for _, a := range m.assignments {
		if a.RoleID == id {
			blocking++
		}
	}
	if blocking > 0 {
		return &shared.ConflictError{Reason: "role is assigned", Blocking: blocking}
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	return nil
}

func (m *mockRepository) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	ids := make([]int64, 0, len(m.rolePerms[roleID]))
	for id := range m.rolePerms[roleID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockRepository) ReplaceRolePermissions(ctx context.Context, role Role, permissionIDs []int64) (PermissionDiff, error) {
	if role.Super() && len(permissionIDs) == 0 {
		return PermissionDiff{}, fmt.Errorf("%w: %s cannot be stripped of all permissions", shared.ErrForbidden, SuperRoleName)
	}
	for _, id := range permissionIDs {
		if _, ok := m.knownPermissions[id]; !ok {
			return PermissionDiff{}, fmt.Errorf("%w: permission %d", shared.ErrNotFound, id)
		}
	}
	current := m.rolePerms[role.ID]
	next := make(map[int64]struct{}, len(permissionIDs))
	var diff PermissionDiff
	for _, id := range permissionIDs {
		next[id] = struct{}{}
		if _, ok := current[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range current {
		if _, ok := next[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}
	m.rolePerms[role.ID] = next
	return diff, nil
}

func (m *mockRepository) UpsertAssignment(ctx context.Context, a Assignment) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	stored := a
	m.assignments[assignmentKey(a.PrincipalID, a.RoleID)] = &stored
	return nil
}

func (m *mockRepository) DeleteAssignment(ctx context.Context, principalID, roleID int64) (bool, error) {
	key := assignmentKey(principalID, roleID)
	if _, ok := m.assignments[key]; !ok {
		return false, nil
	}
	delete(m.assignments, key)
	return true, nil
}

func (m *mockRepository) ListAssignments(ctx context.Context, principalID int64) ([]Assignment, error) {
	out := []Assignment{}
	for _, a := range m.assignments {
		if a.PrincipalID == principalID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockRepository) EnsureSuperHolder(ctx context.Context) (int64, Role, error) {
	return 0, Role{}, nil
}

var _ RepositoryPort = (*mockRepository)(nil)

type recordingAuditor struct {
	entries []audit.Entry
	err     error
}

func (a *recordingAuditor) Record(ctx context.Context, entry audit.Entry) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAuditor) last(t *testing.T) audit.Entry {
	t.Helper()
	require.NotEmpty(t, a.entries)
	return a.entries[len(a.entries)-1]
}

func strPtr(s string) *string { return &s }

// ============================================================================
// TESTS
// ============================================================================

func TestCreateRoleDefaultsDisplayName(t *testing.T) {
	repo := newMockRepository()
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)

	role, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "content_editor", Module: strPtr("cms")})
	require.NoError(t, err)
	assert.Equal(t, "Content Editor", role.DisplayName)
	assert.False(t, role.IsSystem)

	entry := auditor.last(t)
	assert.Equal(t, "role.created", entry.Action)
	assert.Equal(t, "cms", entry.Module)
}

func TestCreateRoleRejectsMalformedName(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)
	for _, name := range []string{"", "2fast", "has space", "UPPER_case"} {
		_, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: name})
		assert.ErrorIs(t, err, shared.ErrValidation, "name %q", name)
	}
}

func TestCreateRoleRejectsMalformedModuleScope(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)
	_, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "editor", Module: strPtr("c m s")})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRoleBlankModuleBecomesGlobal(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)
	role, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "auditor", Module: strPtr("   ")})
	require.NoError(t, err)
	assert.Nil(t, role.Module)
}

func TestCreateRoleDuplicateNameConflicts(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)
	_, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "editor", Module: strPtr("cms")})
	require.NoError(t, err)
	_, err = svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "editor", Module: strPtr("cms")})
	assert.True(t, shared.IsConflict(err))
}

func TestUpdateSystemRoleForbidden(t *testing.T) {
	repo := newMockRepository()
	system := repo.addRole(Role{Name: SuperRoleName, DisplayName: "Super Administrator", IsSystem: true})
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdateRole(context.Background(), 1, system.ID, UpdateRoleInput{DisplayName: "Renamed"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateRoleAuditsBeforeAndAfter(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "editor", DisplayName: "Editor", Priority: 1})
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)

	updated, err := svc.UpdateRole(context.Background(), 9, role.ID, UpdateRoleInput{DisplayName: "Senior Editor", Priority: 5})
	require.NoError(t, err)
	assert.Equal(t, "Senior Editor", updated.DisplayName)

	entry := auditor.last(t)
	assert.Equal(t, "role.updated", entry.Action)
	before, ok := entry.Meta["before"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Editor", before["display_name"])
}

func TestDeleteSystemRoleForbidden(t *testing.T) {
	repo := newMockRepository()
	system := repo.addRole(Role{Name: SuperRoleName, IsSystem: true})
	svc := NewService(repo, nil, nil)

	err := svc.DeleteRole(context.Background(), 1, system.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeleteAssignedRoleConflictsWithBlockingCount(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "editor"})
	svc := NewService(repo, &recordingAuditor{}, nil)
	require.NoError(t, svc.AssignRole(context.Background(), 1, 101, role.ID, nil))
	require.NoError(t, svc.AssignRole(context.Background(), 1, 102, role.ID, nil))

	err := svc.DeleteRole(context.Background(), 1, role.ID)
	require.Error(t, err)
	var conflict *shared.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 2, conflict.Blocking)

	// Still present.
	_, err = svc.GetRole(context.Background(), role.ID)
	assert.NoError(t, err)
}

func TestDeleteRole(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "editor"})
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)

	require.NoError(t, svc.DeleteRole(context.Background(), 1, role.ID))
	_, err := svc.GetRole(context.Background(), role.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, "role.deleted", auditor.last(t).Action)
}

func TestReplaceRolePermissionsAuditsDiff(t *testing.T) {
	repo := newMockRepository()
	repo.knownPermissions[10] = struct{}{}
	repo.knownPermissions[11] = struct{}{}
	repo.knownPermissions[12] = struct{}{}
	role := repo.addRole(Role{Name: "editor"})
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)

	require.NoError(t, svc.ReplaceRolePermissions(context.Background(), 1, role.ID, []int64{10, 11}))
	entry := auditor.last(t)
	assert.Equal(t, "role.permissions_replaced", entry.Action)
	assert.ElementsMatch(t, []int64{10, 11}, entry.Meta["added"])

	require.NoError(t, svc.ReplaceRolePermissions(context.Background(), 1, role.ID, []int64{11, 12}))
	entry = auditor.last(t)
	assert.ElementsMatch(t, []int64{12}, entry.Meta["added"])
	assert.ElementsMatch(t, []int64{10}, entry.Meta["removed"])

	ids, err := svc.ListRolePermissions(context.Background(), role.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, ids)
}

func TestReplaceRolePermissionsIdempotent(t *testing.T) {
	repo := newMockRepository()
	repo.knownPermissions[10] = struct{}{}
	role := repo.addRole(Role{Name: "editor"})
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)

	require.NoError(t, svc.ReplaceRolePermissions(context.Background(), 1, role.ID, []int64{10}))
	require.NoError(t, svc.ReplaceRolePermissions(context.Background(), 1, role.ID, []int64{10}))
	entry := auditor.last(t)
	assert.Equal(t, "none", entry.Meta["change"])
}

func TestReplaceRolePermissionsUnknownPermission(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "editor"})
	svc := NewService(repo, nil, nil)
	err := svc.ReplaceRolePermissions(context.Background(), 1, role.ID, []int64{999})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReplaceSuperRolePermissionsNeverEmpty(t *testing.T) {
	repo := newMockRepository()
	repo.knownPermissions[10] = struct{}{}
	super := repo.addRole(Role{Name: SuperRoleName, IsSystem: true})
	repo.rolePerms[super.ID][10] = struct{}{}
	svc := NewService(repo, nil, nil)

	err := svc.ReplaceRolePermissions(context.Background(), 1, super.ID, nil)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	ids, err := svc.ListRolePermissions(context.Background(), super.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)
}

func TestAssignRoleIdempotentRefresh(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "viewer"})
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)

	require.NoError(t, svc.AssignRole(context.Background(), 1, 101, role.ID, nil))
	expiry := time.Now().Add(24 * time.Hour).UTC()
	require.NoError(t, svc.AssignRole(context.Background(), 2, 101, role.ID, &expiry))

	assignments, err := svc.ListAssignments(context.Background(), 101)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, int64(2), assignments[0].AssignedBy)
	require.NotNil(t, assignments[0].ExpiresAt)
	assert.True(t, assignments[0].ExpiresAt.Equal(expiry))
	assert.Equal(t, "role.assigned", auditor.last(t).Action)
}

func TestAssignRoleUnknownRole(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)
	err := svc.AssignRole(context.Background(), 1, 101, 42, nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRevokeRole(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "viewer"})
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)
	require.NoError(t, svc.AssignRole(context.Background(), 1, 101, role.ID, nil))

	require.NoError(t, svc.RevokeRole(context.Background(), 1, 101, role.ID))
	assert.Equal(t, "role.revoked", auditor.last(t).Action)

	err := svc.RevokeRole(context.Background(), 1, 101, role.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAuditFailureDoesNotBlockMutation(t *testing.T) {
	repo := newMockRepository()
	auditor := &recordingAuditor{err: fmt.Errorf("%w: audit insert", shared.ErrStoreFailure)}
	svc := NewService(repo, auditor, nil)

	role, err := svc.CreateRole(context.Background(), 1, CreateRoleInput{Name: "editor"})
	require.NoError(t, err)
	_, err = svc.GetRole(context.Background(), role.ID)
	assert.NoError(t, err)
}
