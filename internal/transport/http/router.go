// Package httptransport assembles the HTTP surface: module handlers, health
// and metrics endpoints, and the request-scoped context middleware.
package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"biogate/internal/stats"
	"biogate/pkg/platform/httputil"
	"biogate/pkg/requestcontext"
)

// RequestTimeout bounds every request end to end, above any per-operation
// budgets the services enforce themselves.
const RequestTimeout = 60 * time.Second

// Registrar is anything that mounts its routes on the router. Every module
// handler satisfies it.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router mounts.
type Deps struct {
	Handlers  []Registrar
	Collector *stats.Collector
	Health    func() error
}

// NewRouter builds the service router with the standard middleware chain.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(requestScope)

	r.Get("/healthz", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if deps.Collector != nil {
		r.Get("/statistics", snapshotHandler(deps.Collector))
		r.Post("/statistics/reset", resetHandler(deps.Collector))
	}

	r.Route("/v1", func(r chi.Router) {
		for _, h := range deps.Handlers {
			h.Register(r)
		}
	})
	return r
}

// requestScope copies transport metadata into the HTTP-independent request
// context so services and audit fields can read it without net/http.
func requestScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = requestcontext.WithClientMetadata(ctx, r.RemoteAddr, r.UserAgent())
		ctx = requestcontext.WithTime(ctx, time.Now())
		if deviceID := r.Header.Get("X-Capture-Device"); deviceID != "" {
			ctx = requestcontext.WithDeviceID(ctx, deviceID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func healthHandler(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func snapshotHandler(collector *stats.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, collector.Snapshot())
	}
}

func resetHandler(collector *stats.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collector.Reset()
		w.WriteHeader(http.StatusNoContent)
	}
}
