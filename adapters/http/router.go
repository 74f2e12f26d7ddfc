package http

import (
	"context"
	"net/http"
	"time"

	"github.com/artpar/svcroute/adapters/metrics"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // defaults to promhttp.Handler()
	MetricsPath    string       // empty disables /metrics

	AdminHandler http.Handler
	AdminPath    string

	OpenAPIHandler http.Handler
	OpenAPIPath    string

	Readiness []ReadinessCheck
	Version   string
	Timeout   time.Duration
}

// NewRouter creates the front router. Built-in endpoints are matched first;
// everything else is handed to the gateway.
func NewRouter(gateway http.Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	health := &HealthHandler{checks: cfg.Readiness}
	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", versionHandler(cfg.Version))

	if cfg.MetricsPath != "" {
		h := cfg.MetricsHandler
		if h == nil {
			h = promhttp.Handler()
		}
		r.Handle(cfg.MetricsPath, h)
	}
	if cfg.OpenAPIHandler != nil && cfg.OpenAPIPath != "" {
		r.Handle(cfg.OpenAPIPath, cfg.OpenAPIHandler)
	}
	if cfg.AdminHandler != nil && cfg.AdminPath != "" {
		r.Mount(cfg.AdminPath, cfg.AdminHandler)
	}

	r.NotFound(gateway.ServeHTTP)
	r.MethodNotAllowed(gateway.ServeHTTP)
	return r
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks []ReadinessCheck
}

// Liveness returns OK while the process is running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness runs every readiness check.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, check := range h.checks {
		if err := check(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionResponse is the body of /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

func versionHandler(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "svcroute"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
