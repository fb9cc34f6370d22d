package invoices

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.List)
	r.Post("/invoices", h.Create)
	r.Post("/invoices/convert", h.Convert)
	r.Get("/invoices/vat-summary", h.VATSummary)
	r.Get("/invoices/{id}", h.Show)
	r.Post("/invoices/{id}/send", h.Send)
	r.Post("/invoices/{id}/cancel", h.Cancel)
	r.Post("/invoices/{id}/balance", h.CreateBalance)
	r.Get("/invoices/{id}/payments", h.ListPayments)
	r.Post("/invoices/{id}/payments", h.RecordPayment)
	r.Delete("/invoices/{id}/payments/{paymentID}", h.DeletePayment)
}
