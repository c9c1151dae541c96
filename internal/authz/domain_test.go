package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPermissionKey(t *testing.T) {
	key, err := NewPermissionKey("finance", "invoices", "approve")
	require.NoError(t, err)
	assert.Equal(t, "finance.invoices.approve", key.String())
}

func TestNewPermissionKeyTrimsWhitespace(t *testing.T) {
	key, err := NewPermissionKey(" finance ", "invoices", " approve")
	require.NoError(t, err)
	assert.Equal(t, "finance", key.Module)
	assert.Equal(t, "approve", key.Action)
}

func TestNewPermissionKeyRejectsMalformedSegments(t *testing.T) {
	cases := []struct {
		name   string
		module string
		res    string
		action string
	}{
		{"empty module", "", "invoices", "view"},
		{"leading digit", "2finance", "invoices", "view"},
		{"dots inside segment", "fin.ance", "invoices", "view"},
		{"spaces inside segment", "fin ance", "invoices", "view"},
		{"uppercase tail", "finance", "inVoices", "view"},
		{"empty action", "finance", "invoices", ""},
		{"hyphen", "finance", "in-voices", "view"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPermissionKey(tc.module, tc.res, tc.action)
			assert.Error(t, err)
		})
	}
}

func TestMustKeyPanicsOnMalformedInput(t *testing.T) {
	assert.Panics(t, func() {
		MustKey("", "roles", "view")
	})
}

func TestValidSegment(t *testing.T) {
	assert.True(t, ValidSegment("content_editor"))
	assert.True(t, ValidSegment("cms"))
	assert.False(t, ValidSegment("_editor"))
	assert.False(t, ValidSegment("editor!"))
	assert.False(t, ValidSegment(""))
}
