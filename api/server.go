/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests, origins from configuration
  5. Detail:     Developer mode only, one [API] line per request with the
                 query string, status, size and request ID

ROUTE GROUPS:
  /api/quotes/*         Import and range queries
  /metrics              Prometheus exposition (optional)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/serve.go: Server startup
*/
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the surface around the handlers.
type RouterOptions struct {
	// AllowedOrigins defaults to "*" when empty.
	AllowedOrigins []string

	// Metrics is served at MetricsPath when non-nil.
	Metrics     prometheus.Gatherer
	MetricsPath string

	// Developer adds a detailed [API] log line per request.
	Developer bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	if opts.Developer {
		r.Use(requestDetail)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/quotes", func(r chi.Router) {
			r.Post("/import", h.Import)
			r.Get("/period", h.Period)
			r.Get("/imports", h.ListImports)
			r.Get("/ping", h.Ping)
		})
	})

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}

	return r
}

// requestDetail logs each request with its query string and outcome.
func requestDetail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Printf("[API] %s %s query=%q status=%d bytes=%d req_id=%s in %v",
				r.Method, r.URL.Path, r.URL.RawQuery, ww.Status(), ww.BytesWritten(),
				middleware.GetReqID(r.Context()), time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}
