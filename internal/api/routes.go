package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/import", func(r chi.Router) {
			r.Post("/analyze", h.AnalyzeImport)
			r.Post("/execute", h.ExecuteImport)
		})

		r.Route("/feed", func(r chi.Router) {
			r.Post("/sync", h.SyncFeed)
			r.Post("/upload", h.UploadFeed)
		})

		r.Route("/vendors", func(r chi.Router) {
			r.Get("/duplicates", h.VendorDuplicates)
			r.Post("/merge", h.MergeVendors)
			r.Post("/", h.SaveVendor)
			r.Get("/{id}", h.GetVendor)
		})

		r.Get("/sync-log", h.SyncLog)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errRouteNotFound)
	})
	return r
}
