package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records.
	r.Get("/candidates", h.Candidates)
	r.Get("/records/{key}", h.GetRecord)
	r.Get("/records/{key}/resources", h.Resources)
	r.Get("/crossref", h.Crossref)

	// Search.
	r.Get("/search", h.Search)

	// Notes.
	r.Post("/notes/{key}", h.CreateNote)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
