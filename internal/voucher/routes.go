package voucher

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Post("/reverse", h.Reverse)
	r.Get("/trial-balance", h.TrialBalance)
}
