package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-sec/praxis/internal/audit"
	"github.com/praxis-sec/praxis/internal/shared"
)

type mockRepo struct {
	byID   map[int64]*Permission
	nextID int64

	// Number of role grants cascaded away by the last delete.
	revokePerDelete int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: make(map[int64]*Permission), nextID: 1}
}

func (m *mockRepo) ListPermissions(ctx context.Context, module string) ([]Permission, error) {
	out := []Permission{}
	for _, p := range m.byID {
		if module == "" || p.Module == module {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, ok := m.byID[id]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	return *p, nil
}

func (m *mockRepo) Ensure(ctx context.Context, input EnsureInput) (Permission, error) {
	for _, p := range m.byID {
		if p.Module == input.Module && p.Resource == input.Resource && p.Action == input.Action {
			p.Description = input.Description
			return *p, nil
		}
	}
	p := &Permission{
		ID:          m.nextID,
		Module:      input.Module,
		Resource:    input.Resource,
		Action:      input.Action,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}
	m.nextID++
	m.byID[p.ID] = p
	return *p, nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) (int64, error) {
	if _, ok := m.byID[id]; !ok {
		return 0, shared.ErrNotFound
	}
	delete(m.byID, id)
	return m.revokePerDelete, nil
}

var _ RepositoryPort = (*mockRepo)(nil)

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Record(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func TestEnsureCanonicalizesKey(t *testing.T) {
	svc := NewService(newMockRepo(), &recordingAuditor{}, nil)
	p, err := svc.Ensure(context.Background(), 1, EnsureInput{Module: " cms ", Resource: "articles", Action: "publish "})
	require.NoError(t, err)
	assert.Equal(t, "cms", p.Module)
	assert.Equal(t, "publish", p.Action)
}

func TestEnsureRejectsMalformedKey(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil)
	_, err := svc.Ensure(context.Background(), 1, EnsureInput{Module: "cms", Resource: "art icles", Action: "publish"})
	assert.Error(t, err)
}

func TestEnsureUpsertsByKey(t *testing.T) {
	svc := NewService(newMockRepo(), &recordingAuditor{}, nil)
	first, err := svc.Ensure(context.Background(), 1, EnsureInput{Module: "cms", Resource: "articles", Action: "publish"})
	require.NoError(t, err)
	second, err := svc.Ensure(context.Background(), 1, EnsureInput{Module: "cms", Resource: "articles", Action: "publish", Description: "Publish articles"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Publish articles", second.Description)
}

func TestDeleteAuditsRevokedCount(t *testing.T) {
	repo := newMockRepo()
	repo.revokePerDelete = 3
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil)
	p, err := svc.Ensure(context.Background(), 1, EnsureInput{Module: "cms", Resource: "articles", Action: "publish"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 9, p.ID))
	last := auditor.entries[len(auditor.entries)-1]
	assert.Equal(t, "permission.deleted", last.Action)
	assert.Equal(t, "cms.articles.publish", last.Meta["key"])
	assert.Equal(t, int64(3), last.Meta["roles_revoked"])
}

func TestDeleteUnknownPermission(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil)
	err := svc.Delete(context.Background(), 9, 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
