package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/facturio/facturio/internal/jobs"
)

// idempotencyRetention is how long processed request keys are kept. A POST
// retried after this window re-executes instead of conflicting, which is the
// acceptable trade-off for a bounded table.
const idempotencyRetention = 24 * time.Hour

type idempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob prunes processed idempotency keys past the retention
// window. Conversion endpoints only ever insert keys, so without this scan
// the table grows without bound.
type IdempotencyCleanupJob struct {
	Store   idempotencyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewIdempotencyCleanupJob(store idempotencyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}

	tracker := j.metrics().Track(TaskTypeIdempotencyCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting idempotency key cleanup")

	if err := j.Store.Cleanup(ctx, idempotencyRetention); err != nil {
		resultErr = err
		logger.Error("cleanup failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed idempotency key cleanup")
	return resultErr
}

func (j *IdempotencyCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeIdempotencyCleanup))
	}
	return slog.Default().With(slog.String("job", TaskTypeIdempotencyCleanup))
}

func (j *IdempotencyCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
