package principals

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
	bySubject map[string]*Principal
	byID      map[int64]*Principal
	nextID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		bySubject: make(map[string]*Principal),
		byID:      make(map[int64]*Principal),
		nextID:    1,
	}
}

func (m *mockRepo) ListPrincipals(ctx context.Context) ([]Principal, error) {
	out := make([]Principal, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepo) GetPrincipal(ctx context.Context, id int64) (Principal, error) {
	p, ok := m.byID[id]
	if !ok {
		return Principal{}, shared.ErrNotFound
	}
	return *p, nil
}

func (m *mockRepo) UpsertBySubject(ctx context.Context, input ProvisionInput) (Principal, bool, error) {
	if existing, ok := m.bySubject[input.Subject]; ok {
		existing.Email = input.Email
		existing.Name = input.Name
		if input.EmployeeRef != nil {
			existing.EmployeeRef = input.EmployeeRef
		}
		existing.UpdatedAt = time.Now().UTC()
		return *existing, false, nil
	}
	p := &Principal{
		ID:          m.nextID,
		Subject:     input.Subject,
		Email:       input.Email,
		Name:        input.Name,
		Status:      StatusActive,
		EmployeeRef: input.EmployeeRef,
		CreatedAt:   time.Now().UTC(),
	}
	m.nextID++
	m.bySubject[p.Subject] = p
	m.byID[p.ID] = p
	return *p, true, nil
}

func (m *mockRepo) SetStatus(ctx context.Context, id int64, status Status) (Principal, error) {
	p, ok := m.byID[id]
	if !ok {
		return Principal{}, shared.ErrNotFound
	}
	p.Status = status
	return *p, nil
}

var _ RepositoryPort = (*mockRepo)(nil)

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Record(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

type recordingRevoker struct {
	revoked []string
}

func (r *recordingRevoker) RevokeForPrincipal(ctx context.Context, principalID string) error {
	r.revoked = append(r.revoked, principalID)
	return nil
}

func TestProvisionCreatesActivePrincipal(t *testing.T) {
	auditor := &recordingAuditor{}
	svc := NewService(newMockRepo(), auditor, nil, nil)

	p, err := svc.Provision(context.Background(), ProvisionInput{Subject: "idp|u-100", Email: "ada@example.test", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, p.Status)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "principal.provisioned", auditor.entries[0].Action)
}

func TestProvisionRefreshWithoutAudit(t *testing.T) {
	auditor := &recordingAuditor{}
	svc := NewService(newMockRepo(), auditor, nil, nil)

	first, err := svc.Provision(context.Background(), ProvisionInput{Subject: "idp|u-100", Name: "Ada"})
	require.NoError(t, err)
	second, err := svc.Provision(context.Background(), ProvisionInput{Subject: "idp|u-100", Name: "Ada L."})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada L.", second.Name)
	assert.Len(t, auditor.entries, 1, "refresh must not re-audit provisioning")
}

func TestProvisionRequiresSubject(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)
	_, err := svc.Provision(context.Background(), ProvisionInput{Subject: "   "})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetStatus(t *testing.T) {
	repo := newMockRepo()
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil, nil)
	p, err := svc.Provision(context.Background(), ProvisionInput{Subject: "idp|u-100"})
	require.NoError(t, err)

	updated, err := svc.SetStatus(context.Background(), 9, p.ID, StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, updated.Status)

	last := auditor.entries[len(auditor.entries)-1]
	assert.Equal(t, "principal.status_changed", last.Action)
	assert.Equal(t, "active", last.Meta["before"])
	assert.Equal(t, "suspended", last.Meta["after"])
}

func TestSuspensionRevokesLiveSessions(t *testing.T) {
	repo := newMockRepo()
	revoker := &recordingRevoker{}
	svc := NewService(repo, nil, revoker, nil)
	p, err := svc.Provision(context.Background(), ProvisionInput{Subject: "idp|u-100"})
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), 9, p.ID, StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, revoker.revoked)

	_, err = svc.SetStatus(context.Background(), 9, p.ID, StatusActive)
	require.NoError(t, err)
	assert.Len(t, revoker.revoked, 1, "reactivation must not revoke sessions")
}

func TestSetStatusNoOpWhenUnchanged(t *testing.T) {
	repo := newMockRepo()
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor, nil, nil)
	p, err := svc.Provision(context.Background(), ProvisionInput{Subject: "idp|u-100"})
	require.NoError(t, err)
	before := len(auditor.entries)

	_, err = svc.SetStatus(context.Background(), 9, p.ID, StatusActive)
	require.NoError(t, err)
	assert.Len(t, auditor.entries, before)
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)
	_, err := svc.SetStatus(context.Background(), 9, 1, Status("deleted"))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetStatusUnknownPrincipal(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)
	_, err := svc.SetStatus(context.Background(), 9, 404, StatusInactive)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
