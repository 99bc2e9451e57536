package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nerrad567/factory-data-core/internal/auth"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// databaseCheck is the component that decides overall health.
const databaseCheck = "database"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/factory-data", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermFactoryDataRead)).Get("/", s.handleSearch)
				r.With(s.requirePermission(auth.PermFactoryDataRead)).Get("/count", s.handleCount)
				r.With(s.requirePermission(auth.PermFactoryDataRead)).Get("/state-count", s.handleStateCount)
				r.With(s.requirePermission(auth.PermFactoryDataRead)).Get("/{serial}/history", s.handleHistory)

				r.With(s.requirePermission(auth.PermFactoryDataCreate)).Post("/", s.handleCreate)
				r.With(s.requirePermission(auth.PermFactoryDataCreate)).Post("/guest", s.handleCreateGuest)
			})

			r.Route("/vehicles/{vin}", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermVehicleManage))
				r.Put("/", s.handleUpdateVehicle)
				r.Delete("/", s.handleDeleteVehicle)
			})
		})
	})

	return otelhttp.NewHandler(r, "factorydata-api",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

// handleHealth reports each registered component. The response is 503 only
// when the database check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			components[name] = "unhealthy: " + err.Error()
			if name == databaseCheck {
				status = http.StatusServiceUnavailable
			}
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"version":    s.version,
		"components": components,
	})
}
