package principals

import "time"

// Status enumerates the lifecycle states of a principal. Principals are never
// hard-deleted; deactivation happens through status alone.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Principal is an authenticated identity the engine makes decisions about.
// Subject is the external identity provider's stable identifier. EmployeeRef
// links the principal to an external employment record; modules may require
// this linkage as a hard access gate.
type Principal struct {
	ID          int64
	Subject     string
	Email       string
	Name        string
	Status      Status
	EmployeeRef *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProvisionInput carries the identity attributes asserted by the IdP.
type ProvisionInput struct {
	Subject     string
	Email       string
	Name        string
	EmployeeRef *string
}
