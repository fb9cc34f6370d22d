package vatrates

// VATRate is a configured VAT rate, e.g. the French standard 20% or the
// reduced 5.5%.
type VATRate struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Rate      float64 `json:"rate"`
	IsDefault bool    `json:"is_default"`
}
