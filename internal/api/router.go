package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.With(s.authMiddleware).Get("/audit", s.handleListAudit)

		r.Route("/protocol", func(r chi.Router) {
			r.Get("/", s.handleGetProtocol)

			r.Route("/transports", func(r chi.Router) {
				r.Get("/", s.handleListTransports)

				r.Route("/{transport}", func(r chi.Router) {
					r.Get("/config", s.handleGetConfigMetadata)
					r.Get("/metadata", s.handleGetDefaultMetadata)
					r.Get("/expands", s.handleGetExpands)
				})
			})

			r.Get("/devices/{id}/state", s.handleGetDeviceState)

			// Mutating endpoints
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)

				r.Post("/authenticate", s.handleAuthenticate)
				r.Post("/init", s.handleInit)
				r.Post("/devices/{id}/token", s.handleIssueToken)
			})
		})
	})

	return r
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Protocol   string            `json:"protocol"`
	Disposed   bool              `json:"disposed"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports the server and component health.
// Any failing component or a disposed support makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Protocol: s.support.ID(),
		Disposed: s.support.IsDisposed(),
	}
	if resp.Disposed {
		resp.Status = "degraded"
	}

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name].HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
