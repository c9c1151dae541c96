package roles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleSuper(t *testing.T) {
	assert.True(t, Role{Name: SuperRoleName, IsSystem: true}.Super())
	assert.False(t, Role{Name: SuperRoleName, IsSystem: false}.Super())
	assert.False(t, Role{Name: "admin", IsSystem: true}.Super())

	scoped := "cms"
	assert.False(t, Role{Name: SuperRoleName, IsSystem: true, Module: &scoped}.Super())
}

func TestAssignmentExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, Assignment{}.Expired(now), "no expiry never expires")
	assert.True(t, Assignment{ExpiresAt: &past}.Expired(now))
	assert.True(t, Assignment{ExpiresAt: &now}.Expired(now), "boundary instant counts as expired")
	assert.False(t, Assignment{ExpiresAt: &future}.Expired(now))
}

func TestPermissionDiffEmpty(t *testing.T) {
	assert.True(t, PermissionDiff{}.Empty())
	assert.False(t, PermissionDiff{Added: []int64{1}}.Empty())
	assert.False(t, PermissionDiff{Removed: []int64{1}}.Empty())
}
