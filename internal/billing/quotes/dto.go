package quotes

import "time"

type CreateQuoteRequest struct {
	CompanyID       int64                `json:"company_id" validate:"required,gt=0"`
	ClientID        int64                `json:"client_id" validate:"required,gt=0"`
	QuoteDate       time.Time            `json:"quote_date" validate:"required"`
	ExpiryDate      time.Time            `json:"expiry_date" validate:"required"`
	Currency        string               `json:"currency" validate:"required,len=3"`
	Notes           *string              `json:"notes,omitempty"`
	ReminderEnabled bool                 `json:"reminder_enabled"`
	ReminderDays    int                  `json:"reminder_days" validate:"gte=0,lte=365"`
	Lines           []CreateQuoteLineReq `json:"lines" validate:"required,min=1,dive"`
}

type CreateQuoteLineReq struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"required,gte=0"`
	VATRate     float64 `json:"vat_rate" validate:"gte=0,lte=100"`
	LineOrder   int     `json:"line_order" validate:"gte=0"`
}

type UpdateQuoteRequest struct {
	QuoteDate       *time.Time            `json:"quote_date,omitempty"`
	ExpiryDate      *time.Time            `json:"expiry_date,omitempty"`
	Notes           *string               `json:"notes,omitempty"`
	ReminderEnabled *bool                 `json:"reminder_enabled,omitempty"`
	ReminderDays    *int                  `json:"reminder_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	Lines           *[]CreateQuoteLineReq `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

type ApproveQuoteRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type RejectQuoteRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ListQuotesRequest struct {
	CompanyID  int64        `json:"company_id" validate:"required,gt=0"`
	ClientID   *int64       `json:"client_id,omitempty"`
	Status     *QuoteStatus `json:"status,omitempty"`
	LatestOnly bool         `json:"latest_only"`
	DateFrom   *time.Time   `json:"date_from,omitempty"`
	DateTo     *time.Time   `json:"date_to,omitempty"`
	Limit      int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int          `json:"offset" validate:"gte=0"`
}
