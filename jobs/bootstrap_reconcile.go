package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/praxis-sec/praxis/internal/jobs"
	"github.com/praxis-sec/praxis/internal/roles"
)

// BootstrapReconcileJob re-checks that the super admin role has a live holder.
// Suspending or expiring the last holder between restarts would otherwise
// leave role management unreachable until the next boot.
type BootstrapReconcileJob struct {
	Bootstrap *roles.Bootstrap
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewBootstrapReconcileJob initialises the reconcile handler.
func NewBootstrapReconcileJob(bootstrap *roles.Bootstrap, logger *slog.Logger, metrics *jobmetrics.Metrics) *BootstrapReconcileJob {
	return &BootstrapReconcileJob{Bootstrap: bootstrap, Logger: logger, Metrics: metrics}
}

// Handle executes the holder check.
func (j *BootstrapReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Bootstrap == nil {
		return errors.New("bootstrap reconcile: handler not configured")
	}

	tracker := j.metrics().Track(TaskBootstrapReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	if err = j.Bootstrap.EnsureSuperAdmin(ctx); err != nil {
		j.logger().Error("reconcile failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (j *BootstrapReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBootstrapReconcile))
	}
	return slog.Default().With(slog.String("job", TaskBootstrapReconcile))
}

func (j *BootstrapReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
