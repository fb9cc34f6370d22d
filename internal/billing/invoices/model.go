package invoices

import (
	"time"

	"github.com/facturio/facturio/internal/billing/vat"
)

type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "DRAFT"
	StatusSent      InvoiceStatus = "SENT"
	StatusPartial   InvoiceStatus = "PARTIAL"
	StatusPaid      InvoiceStatus = "PAID"
	StatusOverdue   InvoiceStatus = "OVERDUE"
	StatusCancelled InvoiceStatus = "CANCELLED"
)

// Terminal reports whether the invoice can no longer change.
func (s InvoiceStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type Invoice struct {
	ID               int64         `json:"id" db:"id"`
	DocNumber        string        `json:"doc_number" db:"doc_number"`
	CompanyID        int64         `json:"company_id" db:"company_id"`
	ClientID         int64         `json:"client_id" db:"client_id"`
	SourceQuoteID    *int64        `json:"source_quote_id,omitempty" db:"source_quote_id"`
	IsDeposit        bool          `json:"is_deposit" db:"is_deposit"`
	DepositPercent   *float64      `json:"deposit_percent,omitempty" db:"deposit_percent"`
	BalanceInvoiceID *int64        `json:"balance_invoice_id,omitempty" db:"balance_invoice_id"`
	Status           InvoiceStatus `json:"status" db:"status"`
	Currency         string        `json:"currency" db:"currency"`
	Subtotal         float64       `json:"subtotal" db:"subtotal"`
	VATAmount        float64       `json:"vat_amount" db:"vat_amount"`
	TotalAmount      float64       `json:"total_amount" db:"total_amount"`
	PaidAmount       float64       `json:"paid_amount" db:"paid_amount"`
	IssueDate        time.Time     `json:"issue_date" db:"issue_date"`
	DueDate          time.Time     `json:"due_date" db:"due_date"`
	Notes            *string       `json:"notes,omitempty" db:"notes"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
	Lines            []InvoiceLine `json:"lines,omitempty" db:"-"`
}

type InvoiceLine struct {
	ID          int64     `json:"id" db:"id"`
	InvoiceID   int64     `json:"invoice_id" db:"invoice_id"`
	Description string    `json:"description" db:"description"`
	Quantity    float64   `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
	VATRate     float64   `json:"vat_rate" db:"vat_rate"`
	LineOrder   int       `json:"line_order" db:"line_order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Payment struct {
	ID        int64         `json:"id" db:"id"`
	InvoiceID int64         `json:"invoice_id" db:"invoice_id"`
	Reference string        `json:"reference" db:"reference"`
	Amount    float64       `json:"amount" db:"amount"`
	PaidAt    time.Time     `json:"paid_at" db:"paid_at"`
	Method    string        `json:"method" db:"method"`
	Status    PaymentStatus `json:"status" db:"status"`
	Note      *string       `json:"note,omitempty" db:"note"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// VATLines projects invoice lines into the calculator's shape.
func (inv Invoice) VATLines() []vat.Line {
	lines := make([]vat.Line, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, vat.Line{Base: l.Quantity * l.UnitPrice, Rate: l.VATRate})
	}
	return lines
}
