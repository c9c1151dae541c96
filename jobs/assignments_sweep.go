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

// AssignmentsSweepJob removes role assignment rows that expired longer than
// the grace window ago. Expired rows never grant access; the sweep only keeps
// the table from accumulating dead weight while leaving a window for
// inspection and re-grants.
type AssignmentsSweepJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAssignmentsSweepJob initialises the sweep handler.
func NewAssignmentsSweepJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AssignmentsSweepJob {
	return &AssignmentsSweepJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *AssignmentsSweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("assignments sweep: handler not configured")
	}
	var payload AssignmentsSweepPayload
	if jsonErr := json.Unmarshal(t.Payload(), &payload); jsonErr != nil {
		return asynq.SkipRetry
	}
	if payload.GraceHours <= 0 {
		payload.GraceHours = 30 * 24
	}

	tracker := j.metrics().Track(TaskAssignmentsSweep)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.Int("grace_hours", payload.GraceHours))
	logger.Info("starting assignment sweep")

	swept, err := j.sweep(ctx, payload)
	if err != nil {
		logger.Error("sweep failed", slog.Any("error", err))
		return err
	}
	j.metrics().AddSwept(swept)

	logger.Info("completed assignment sweep", slog.Int64("swept", swept))
	return nil
}

func (j *AssignmentsSweepJob) sweep(ctx context.Context, payload AssignmentsSweepPayload) (int64, error) {
	if j.Pool == nil {
		return 0, errors.New("assignments sweep: pool not configured")
	}
	cutoff := j.now().Add(-time.Duration(payload.GraceHours) * time.Hour)
	tag, err := j.Pool.Exec(ctx,
		`DELETE FROM role_assignments WHERE expires_at IS NOT NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (j *AssignmentsSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAssignmentsSweep))
	}
	return slog.Default().With(slog.String("job", TaskAssignmentsSweep))
}

func (j *AssignmentsSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *AssignmentsSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
