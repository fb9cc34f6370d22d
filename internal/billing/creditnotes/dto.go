package creditnotes

type CreateCreditNoteRequest struct {
	InvoiceID int64   `json:"invoice_id" validate:"required,gt=0"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reason    string  `json:"reason" validate:"required,max=500"`
}

type ApplyCreditNoteRequest struct {
	// Amount to apply now; omitted or zero applies the full remainder.
	Amount float64 `json:"amount" validate:"gte=0"`
}

type ListCreditNotesRequest struct {
	CompanyID int64             `json:"company_id" validate:"required,gt=0"`
	InvoiceID *int64            `json:"invoice_id,omitempty"`
	Status    *CreditNoteStatus `json:"status,omitempty"`
	Limit     int               `json:"limit" validate:"gte=0,lte=1000"`
	Offset    int               `json:"offset" validate:"gte=0"`
}
