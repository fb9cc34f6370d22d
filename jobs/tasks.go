package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeQuoteReminderScan scans for quotes whose expiry reminder is due.
	TaskTypeQuoteReminderScan = "quotes:reminder-scan"
	// TaskTypeInvoiceOverdueScan flips unpaid invoices past their due date.
	TaskTypeInvoiceOverdueScan = "invoices:overdue-scan"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "idempotency:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewQuoteReminderScanTask constructs the periodic reminder scan task.
func NewQuoteReminderScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeQuoteReminderScan, nil)
}

// NewInvoiceOverdueScanTask constructs the periodic overdue scan task.
func NewInvoiceOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeInvoiceOverdueScan, nil)
}

// NewIdempotencyCleanupTask constructs the periodic key cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// TODO: wire the SMTP relay once the provider account exists.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}
