package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smukkama/sentinel-server/internal/database"
)

// Routes builds the chi router for the whole API
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.With(s.optionalAuth).Post("/logout", s.handleLogout)
			r.With(s.requireAuth).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/health", func(r chi.Router) {
				r.Post("/readings", s.handleCreateHealthReading)
				r.Get("/readings", s.handleListHealthReadings)
				r.Get("/vitals", s.handleLatestVitals)
				r.Get("/history", s.handleHealthHistory)
			})

			r.Route("/system", func(r chi.Router) {
				r.Post("/readings", s.handleCreateSystemReading)
				r.Get("/readings", s.handleListSystemReadings)
				r.Get("/status", s.handleSystemStatus)
				r.Get("/alerts", s.handleActiveAlerts)
				r.Get("/alerts/all", s.handleAllAlerts)
				r.Patch("/alerts/{alertId}/resolve", s.handleResolveAlert)
			})

			r.With(requireRoles(database.RoleAdmin, database.RoleMissionControl)).
				Get("/admin/alerts/export", s.handleExportAlerts)

			r.Get("/ws", s.handleStream)
		})
	})

	return r
}
