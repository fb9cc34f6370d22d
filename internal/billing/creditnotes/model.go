package creditnotes

import "time"

type CreditNoteStatus string

const (
	StatusDraft     CreditNoteStatus = "DRAFT"
	StatusIssued    CreditNoteStatus = "ISSUED"
	StatusApplied   CreditNoteStatus = "APPLIED"
	StatusCancelled CreditNoteStatus = "CANCELLED"
)

func (s CreditNoteStatus) Terminal() bool {
	return s == StatusApplied || s == StatusCancelled
}

// CreditNote reverses part of an invoice. RemainingAmount tracks how much of
// the note is still unapplied; the note flips to APPLIED when it reaches
// zero.
type CreditNote struct {
	ID              int64            `json:"id" db:"id"`
	DocNumber       string           `json:"doc_number" db:"doc_number"`
	CompanyID       int64            `json:"company_id" db:"company_id"`
	ClientID        int64            `json:"client_id" db:"client_id"`
	InvoiceID       int64            `json:"invoice_id" db:"invoice_id"`
	Status          CreditNoteStatus `json:"status" db:"status"`
	Currency        string           `json:"currency" db:"currency"`
	TotalAmount     float64          `json:"total_amount" db:"total_amount"`
	RemainingAmount float64          `json:"remaining_amount" db:"remaining_amount"`
	Reason          string           `json:"reason" db:"reason"`
	IssueDate       time.Time        `json:"issue_date" db:"issue_date"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}
