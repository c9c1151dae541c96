package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAssignmentsSweep removes role assignment rows whose expiry passed
	// longer than the grace window ago.
	TaskAssignmentsSweep = "assignments:sweep"
	// TaskBootstrapReconcile re-runs the super admin holder check so a
	// deactivated last holder is replaced without a restart.
	TaskBootstrapReconcile = "bootstrap:reconcile"
	// TaskAuditRetention trims audit entries older than the retention horizon.
	TaskAuditRetention = "audit:retention"
)

// AssignmentsSweepPayload parameterises the sweep window.
type AssignmentsSweepPayload struct {
	GraceHours int `json:"grace_hours"`
}

// NewAssignmentsSweepTask constructs an Asynq task for the expiry sweep.
func NewAssignmentsSweepTask(payload AssignmentsSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentsSweep, data), nil
}

// NewBootstrapReconcileTask constructs an Asynq task for the holder check.
func NewBootstrapReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskBootstrapReconcile, nil)
}

// AuditRetentionPayload parameterises the retention horizon.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditRetentionTask constructs an Asynq task for the audit trim.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
