package invoices

import "time"

type CreateInvoiceRequest struct {
	CompanyID int64                  `json:"company_id" validate:"required,gt=0"`
	ClientID  int64                  `json:"client_id" validate:"required,gt=0"`
	IssueDate time.Time              `json:"issue_date" validate:"required"`
	DueDate   time.Time              `json:"due_date" validate:"required"`
	Currency  string                 `json:"currency" validate:"required,len=3"`
	Notes     *string                `json:"notes,omitempty"`
	Lines     []CreateInvoiceLineReq `json:"lines" validate:"required,min=1,dive"`
}

type CreateInvoiceLineReq struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"required,gte=0"`
	VATRate     float64 `json:"vat_rate" validate:"gte=0,lte=100"`
	LineOrder   int     `json:"line_order" validate:"gte=0"`
}

type ConvertQuoteRequest struct {
	QuoteID        int64          `json:"quote_id" validate:"required,gt=0"`
	Mode           ConversionMode `json:"mode" validate:"required,oneof=full partial"`
	DepositPercent *float64       `json:"deposit_percent,omitempty"`
	DepositAmount  *float64       `json:"deposit_amount,omitempty"`
	DueDate        time.Time      `json:"due_date" validate:"required"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" validate:"omitempty,max=64"`
}

type CreateBalanceInvoiceRequest struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

type RecordPaymentRequest struct {
	InvoiceID int64     `json:"invoice_id" validate:"required,gt=0"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	PaidAt    time.Time `json:"paid_at" validate:"required"`
	Method    string    `json:"method" validate:"required,max=30"`
	Note      *string   `json:"note,omitempty"`
}

type ListInvoicesRequest struct {
	CompanyID   int64          `json:"company_id" validate:"required,gt=0"`
	ClientID    *int64         `json:"client_id,omitempty"`
	Status      *InvoiceStatus `json:"status,omitempty"`
	QuoteID     *int64         `json:"quote_id,omitempty"`
	OverdueOnly bool           `json:"overdue_only"`
	Limit       int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset      int            `json:"offset" validate:"gte=0"`
}

type VATSummaryRequest struct {
	CompanyID int64     `json:"company_id" validate:"required,gt=0"`
	DateFrom  time.Time `json:"date_from" validate:"required"`
	DateTo    time.Time `json:"date_to" validate:"required"`
}

// VATSummary is the per-rate VAT report over a period. Totals are computed
// with the same rounding policy as invoice totals so the two reconcile.
type VATSummary struct {
	CompanyID int64              `json:"company_id"`
	DateFrom  time.Time          `json:"date_from"`
	DateTo    time.Time          `json:"date_to"`
	ByRate    map[string]float64 `json:"by_rate"`
	VATTotal  float64            `json:"vat_total"`
	BaseTotal float64            `json:"base_total"`
}
