package clients

type CreateClientRequest struct {
	CompanyID        int64   `json:"company_id" validate:"required,gt=0"`
	Name             string  `json:"name" validate:"required,max=200"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	VATNumber        *string `json:"vat_number,omitempty" validate:"omitempty,max=20"`
	SIRET            *string `json:"siret,omitempty" validate:"omitempty,len=14"`
	PaymentTermsDays int     `json:"payment_terms_days" validate:"gte=0,lte=120"`
	AddressLine1     *string `json:"address_line1,omitempty"`
	AddressLine2     *string `json:"address_line2,omitempty"`
	City             *string `json:"city,omitempty"`
	PostalCode       *string `json:"postal_code,omitempty"`
	Country          string  `json:"country" validate:"required,len=2"`
	Notes            *string `json:"notes,omitempty"`
}

type UpdateClientRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	VATNumber        *string `json:"vat_number,omitempty" validate:"omitempty,max=20"`
	PaymentTermsDays *int    `json:"payment_terms_days,omitempty" validate:"omitempty,gte=0,lte=120"`
	AddressLine1     *string `json:"address_line1,omitempty"`
	AddressLine2     *string `json:"address_line2,omitempty"`
	City             *string `json:"city,omitempty"`
	PostalCode       *string `json:"postal_code,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

type ListClientsRequest struct {
	CompanyID int64  `json:"company_id" validate:"required,gt=0"`
	IsActive  *bool  `json:"is_active,omitempty"`
	Search    string `json:"search,omitempty"`
	Limit     int    `json:"limit" validate:"gte=0,lte=1000"`
	Offset    int    `json:"offset" validate:"gte=0"`
}
