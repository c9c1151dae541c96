package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/praxis-sec/praxis/internal/jobs"
)

// AuditRetentionJob trims audit entries older than the retention horizon.
// The application itself never updates or deletes audit rows; only this job
// removes them, and only past the horizon.
type AuditRetentionJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditRetentionJob initialises the retention handler.
func NewAuditRetentionJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the trim.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if jsonErr := json.Unmarshal(t.Payload(), &payload); jsonErr != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 2 * 365 * 24
	}

	tracker := j.metrics().Track(TaskAuditRetention)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.Int("retention_hours", payload.RetentionHours))
	logger.Info("starting audit retention trim")

	trimmed, err := j.trim(ctx, payload)
	if err != nil {
		logger.Error("retention trim failed", slog.Any("error", err))
		return err
	}
	j.metrics().AddTrimmed(trimmed)

	logger.Info("completed audit retention trim", slog.Int64("trimmed", trimmed))
	return nil
}

func (j *AuditRetentionJob) trim(ctx context.Context, payload AuditRetentionPayload) (int64, error) {
	if j.Pool == nil {
		return 0, errors.New("audit retention: pool not configured")
	}
	horizon := j.now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	tag, err := j.Pool.Exec(ctx,
		`DELETE FROM audit_entries WHERE occurred_at < $1`, horizon)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRetention))
	}
	return slog.Default().With(slog.String("job", TaskAuditRetention))
}

func (j *AuditRetentionJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *AuditRetentionJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
