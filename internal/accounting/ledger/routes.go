package ledger

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/source/{type}/{id}", h.EntriesForSource)
	r.Get("/accounts/{id}/entries", h.EntriesForAccount)
	r.Get("/accounts/{id}/balance", h.Balance)
	r.Get("/trial-balance", h.TrialBalance)
}
