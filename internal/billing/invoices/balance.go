package invoices

import (
	"time"

	"github.com/facturio/facturio/internal/billing/vat"
)

// RemainingBalance returns what is still owed on the invoice.
func RemainingBalance(inv Invoice) float64 {
	return vat.Round(inv.TotalAmount - inv.PaidAmount)
}

// Overpayment reports by how much recorded payments exceed the invoice
// total. A positive value is an anomaly the caller must surface, never
// silently clamp.
func Overpayment(inv Invoice) float64 {
	if over := vat.Round(inv.PaidAmount - inv.TotalAmount); over > 0 {
		return over
	}
	return 0
}

// IsOverdue reports whether the invoice is past due with money outstanding.
// Drafts and cancelled invoices never count.
func IsOverdue(inv Invoice, now time.Time) bool {
	if inv.Status == StatusDraft || inv.Status == StatusCancelled {
		return false
	}
	return now.After(inv.DueDate) && RemainingBalance(inv) > 0
}

// DeriveStatus recomputes the payment status from (record, now). It is called
// after every payment creation, payment deletion, and credit-note
// application. Drafts and cancelled invoices keep their status; overdue takes
// precedence over sent and partial whenever money is outstanding past the
// due date.
func DeriveStatus(inv Invoice, now time.Time) InvoiceStatus {
	if inv.Status == StatusDraft || inv.Status == StatusCancelled {
		return inv.Status
	}
	if inv.PaidAmount >= inv.TotalAmount {
		return StatusPaid
	}
	if IsOverdue(inv, now) {
		return StatusOverdue
	}
	if inv.PaidAmount > 0 {
		return StatusPartial
	}
	return StatusSent
}
