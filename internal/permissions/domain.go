package permissions

import "time"

// Permission is an atomic capability keyed by (module, resource, action).
// Permissions are immutable once created; removal cascades revocation from
// every role holding them.
type Permission struct {
	ID          int64
	ModuleID    int64
	Module      string
	Resource    string
	Action      string
	Description string
	CreatedAt   time.Time
}

// EnsureInput carries the attributes for the setup-time upsert.
type EnsureInput struct {
	Module      string
	Resource    string
	Action      string
	Description string
}
