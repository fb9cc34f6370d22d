package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/facturio/facturio/internal/jobs"
)

// QuoteReminderScanJob finds quotes awaiting acceptance whose reminder window
// has opened and enqueues a reminder email per quote. Quotes already past
// their expiry date are skipped; the state machine reports those as expired
// on read.
type QuoteReminderScanJob struct {
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Enqueuer *Client
	clock    func() time.Time
}

func NewQuoteReminderScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics, enqueuer *Client) *QuoteReminderScanJob {
	return &QuoteReminderScanJob{
		Pool:     pool,
		Logger:   logger,
		Metrics:  metrics,
		Enqueuer: enqueuer,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type reminderCandidate struct {
	QuoteID     int64
	DocNumber   string
	ClientName  string
	ClientEmail string
	ExpiryDate  time.Time
}

// Handle executes the reminder scan.
func (j *QuoteReminderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("reminder scan: handler not configured")
	}

	tracker := j.metrics().Track(TaskTypeQuoteReminderScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	logger := j.logger()
	logger.Info("starting quote reminder scan")

	candidates, err := j.scan(ctx, now)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	sent := 0
	for _, c := range candidates {
		payload := SendEmailPayload{
			To:      c.ClientEmail,
			Subject: fmt.Sprintf("Quote %s expires on %s", c.DocNumber, c.ExpiryDate.Format("2006-01-02")),
			Body: fmt.Sprintf("Hello %s,\n\nyour quote %s is awaiting acceptance and expires on %s.",
				c.ClientName, c.DocNumber, c.ExpiryDate.Format("2006-01-02")),
		}
		if _, err := j.Enqueuer.EnqueueSendEmail(ctx, payload); err != nil {
			logger.Warn("enqueue reminder failed",
				slog.Int64("quote_id", c.QuoteID),
				slog.Any("error", err))
			continue
		}
		sent++
	}
	j.metrics().AddDocuments(TaskTypeQuoteReminderScan, sent)

	logger.Info("completed quote reminder scan",
		slog.Int("candidates", len(candidates)),
		slog.Int("reminders_sent", sent))
	return resultErr
}

func (j *QuoteReminderScanJob) scan(ctx context.Context, now time.Time) ([]reminderCandidate, error) {
	rows, err := j.Pool.Query(ctx, `SELECT q.id, q.doc_number, c.name, c.email, q.expiry_date
FROM quotes q
JOIN clients c ON c.id = q.client_id
WHERE q.status = 'AWAITING_ACCEPTANCE'
  AND q.reminder_enabled
  AND q.expiry_date - (q.reminder_days || ' days')::interval <= $1
  AND q.expiry_date >= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []reminderCandidate
	for rows.Next() {
		var c reminderCandidate
		if err := rows.Scan(&c.QuoteID, &c.DocNumber, &c.ClientName, &c.ClientEmail, &c.ExpiryDate); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (j *QuoteReminderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeQuoteReminderScan))
	}
	return slog.Default().With(slog.String("job", TaskTypeQuoteReminderScan))
}

func (j *QuoteReminderScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *QuoteReminderScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
