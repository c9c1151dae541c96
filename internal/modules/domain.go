package modules

import "time"

// Module is a named feature area that permissions and roles scope to.
// RequiresEmployment marks modules whose access demands an employment
// linkage on the principal, checked before any permission lookup.
type Module struct {
	ID                 int64
	Name               string
	DisplayName        string
	IsActive           bool
	RequiresEmployment bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EnsureInput carries the attributes for the setup-time upsert.
type EnsureInput struct {
	Name               string
	DisplayName        string
	RequiresEmployment bool
}
