package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paperchat/internal/handlers"
	"paperchat/internal/service"
)

const (
	ownerHeader = handlers.OwnerHeader
	healthPath  = "/api/health"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Documents service.DocumentService
	Chat      service.ChatService
	// HealthChecks are reported by /api/health under their keys.
	HealthChecks map[string]handlers.Pinger
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	docs := handlers.NewDocumentHandler(deps.Documents)
	history := handlers.NewHistoryHandler(deps.Chat)

	r.Method(http.MethodGet, healthPath, handlers.NewHealthHandler(deps.HealthChecks))

	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Post("/", docs.Upload)
		r.Get("/", docs.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", docs.Get)
			r.Delete("/", docs.Delete)
			r.Post("/reindex", docs.Reindex)
			r.Method(http.MethodPost, "/ask", handlers.NewAskHandler(deps.Chat))
			r.Get("/history", history.Get)
			r.Delete("/history", history.Delete)
		})
	})

	return r
}
