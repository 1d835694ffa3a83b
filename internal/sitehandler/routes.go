package sitehandler

import "github.com/go-chi/chi/v5"

// RegisterRoutes installs the handler as the router's fallback. Register it
// last; it uses NotFound and MethodNotAllowed so the API and health routes
// other registrars add still match first.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.NotFound(h.ServeHTTP)
	r.MethodNotAllowed(h.ServeHTTP)
}
