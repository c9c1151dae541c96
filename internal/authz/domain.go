package authz

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentPattern constrains every key segment: a leading letter followed by
// lowercase alphanumerics or underscores.
var segmentPattern = regexp.MustCompile(`^[a-zA-Z][a-z0-9_]*$`)

// PermissionKey identifies an atomic capability as (module, resource, action).
// Keys are always built through NewPermissionKey so that a malformed segment
// cannot silently match zero permissions at evaluation time.
type PermissionKey struct {
	Module   string
	Resource string
	Action   string
}

// NewPermissionKey validates and canonicalizes a permission key.
func NewPermissionKey(module, resource, action string) (PermissionKey, error) {
	key := PermissionKey{
		Module:   strings.TrimSpace(module),
		Resource: strings.TrimSpace(resource),
		Action:   strings.TrimSpace(action),
	}
	for _, segment := range []string{key.Module, key.Resource, key.Action} {
		if !segmentPattern.MatchString(segment) {
			return PermissionKey{}, fmt.Errorf("authz: invalid permission segment %q", segment)
		}
	}
	return key, nil
}

// MustKey builds a PermissionKey from compile-time constants and panics on
// malformed input. Reserved for package-level scope declarations.
func MustKey(module, resource, action string) PermissionKey {
	key, err := NewPermissionKey(module, resource, action)
	if err != nil {
		panic(err)
	}
	return key
}

// String renders the canonical dotted form module.resource.action.
func (k PermissionKey) String() string {
	return k.Module + "." + k.Resource + "." + k.Action
}

// ValidSegment reports whether a single name segment (role name, module name)
// satisfies the shared naming rule.
func ValidSegment(name string) bool {
	return segmentPattern.MatchString(name)
}
