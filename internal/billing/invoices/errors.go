package invoices

import "fmt"

// OverConversionError reports an invoice creation that would push the sum of
// invoices sourced from a quote past the quote's total.
type OverConversionError struct {
	QuoteID   int64
	Requested float64
	Remaining float64
}

func (e *OverConversionError) Error() string {
	return fmt.Sprintf("invoices: quote %d has %.2f left to convert, requested %.2f",
		e.QuoteID, e.Remaining, e.Requested)
}

// ValidationRangeError reports a numeric input outside its allowed bounds.
// It is raised before any record is written.
type ValidationRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *ValidationRangeError) Error() string {
	return fmt.Sprintf("invoices: %s %.2f out of range [%.2f, %.2f]", e.Field, e.Value, e.Min, e.Max)
}
