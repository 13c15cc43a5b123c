package api

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the problem, execution and profile routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/problems", h.ListProblems)
	r.Get("/api/problems/{problemID}", h.GetProblem)
	r.Get("/api/problems/{problemID}/submissions", h.ListSubmissions)
	r.Post("/api/run", h.Run)
	r.Post("/api/submit", h.Submit)
	r.Get("/api/me", h.Me)
	r.Get("/api/config", h.Config)
}
