package quotes

import (
	"time"

	"github.com/facturio/facturio/internal/billing/vat"
)

type QuoteStatus string

const (
	StatusDraft              QuoteStatus = "DRAFT"
	StatusPendingValidation  QuoteStatus = "PENDING_VALIDATION"
	StatusAwaitingAcceptance QuoteStatus = "AWAITING_ACCEPTANCE"
	StatusAccepted           QuoteStatus = "ACCEPTED"
	StatusRejected           QuoteStatus = "REJECTED"
	StatusExpired            QuoteStatus = "EXPIRED"
	StatusConverted          QuoteStatus = "CONVERTED"
)

// Terminal reports whether the status closes this version of the quote.
// Further changes to a terminal quote require a new version; ACCEPTED is
// terminal for edits but still allows conversion.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusExpired, StatusConverted:
		return true
	}
	return false
}

type Quote struct {
	ID              int64       `json:"id" db:"id"`
	DocNumber       string      `json:"doc_number" db:"doc_number"`
	CompanyID       int64       `json:"company_id" db:"company_id"`
	ClientID        int64       `json:"client_id" db:"client_id"`
	QuoteDate       time.Time   `json:"quote_date" db:"quote_date"`
	ExpiryDate      time.Time   `json:"expiry_date" db:"expiry_date"`
	Status          QuoteStatus `json:"status" db:"status"`
	Currency        string      `json:"currency" db:"currency"`
	Subtotal        float64     `json:"subtotal" db:"subtotal"`
	VATAmount       float64     `json:"vat_amount" db:"vat_amount"`
	TotalAmount     float64     `json:"total_amount" db:"total_amount"`
	Notes           *string     `json:"notes,omitempty" db:"notes"`
	OriginalQuoteID *int64      `json:"original_quote_id,omitempty" db:"original_quote_id"`
	VersionNumber   int         `json:"version_number" db:"version_number"`
	IsLatestVersion bool        `json:"is_latest_version" db:"is_latest_version"`
	ReminderEnabled bool        `json:"reminder_enabled" db:"reminder_enabled"`
	ReminderDays    int         `json:"reminder_days" db:"reminder_days"`
	ValidationNotes *string     `json:"validation_notes,omitempty" db:"validation_notes"`
	ValidatedAt     *time.Time  `json:"validated_at,omitempty" db:"validated_at"`
	AcceptedAt      *time.Time  `json:"accepted_at,omitempty" db:"accepted_at"`
	RejectedAt      *time.Time  `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectionReason *string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
	Lines           []QuoteLine `json:"lines,omitempty" db:"-"`
}

type QuoteLine struct {
	ID          int64     `json:"id" db:"id"`
	QuoteID     int64     `json:"quote_id" db:"quote_id"`
	Description string    `json:"description" db:"description"`
	Quantity    float64   `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
	VATRate     float64   `json:"vat_rate" db:"vat_rate"`
	LineOrder   int       `json:"line_order" db:"line_order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ChainRootID identifies the version chain the quote belongs to. The original
// quote carries no back-reference, so its own id is the root.
func (q Quote) ChainRootID() int64 {
	if q.OriginalQuoteID != nil {
		return *q.OriginalQuoteID
	}
	return q.ID
}

// VATLines projects the quote lines into the shape the VAT calculator consumes.
func (q Quote) VATLines() []vat.Line {
	lines := make([]vat.Line, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, vat.Line{Base: l.Quantity * l.UnitPrice, Rate: l.VATRate})
	}
	return lines
}

// ReminderDate returns the date an expiry reminder should be dispatched, if
// reminders are enabled. Dispatch itself belongs to the notification system;
// the core only produces the date.
func (q Quote) ReminderDate() (time.Time, bool) {
	if !q.ReminderEnabled || q.ReminderDays <= 0 {
		return time.Time{}, false
	}
	return q.ExpiryDate.AddDate(0, 0, -q.ReminderDays), true
}
