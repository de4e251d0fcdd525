package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/busmap-core/internal/auth"
)

const healthCheckTimeout = 3 * time.Second

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{name}", s.handleGetDevice)
		})
		r.Get("/strategies", s.handleListStrategies)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetRecord)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermRecordWrite))
					r.Put("/", s.handleWriteRecord)
					r.Post("/process", s.handleProcessRecord)
				})
			})
		})

		r.Get("/audit", s.handleListAudit)

		wsPath := s.wsCfg.Path
		if wsPath == "" {
			wsPath = "/ws"
		}
		r.Get(wsPath, s.handleWebSocket)
	})

	return r
}

// handleHealth runs every configured health check. Any failure turns the
// response into 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.healthChecks))
	for name := range s.healthChecks {
		names = append(names, name)
	}
	slices.Sort(names)

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.healthChecks[name].HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
