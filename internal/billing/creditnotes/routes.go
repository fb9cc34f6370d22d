package creditnotes

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/credit-notes", h.List)
	r.Post("/credit-notes", h.Create)
	r.Get("/credit-notes/{id}", h.Show)
	r.Post("/credit-notes/{id}/issue", h.Issue)
	r.Post("/credit-notes/{id}/apply", h.Apply)
	r.Post("/credit-notes/{id}/cancel", h.Cancel)
}
