package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	disputehandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/handlers"
	disputerouter "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/router"
	registrationhandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/handlers"
	registrationrouter "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/router"
	settlementhandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/handlers"
	settlementrouter "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/router"
	tournamenthandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/handlers"
	tournamentrouter "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/router"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	APIBasePath         = "/api/v1"
	correlationIDHeader = "X-Correlation-ID"
	healthCheckTimeout  = 2 * time.Second
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterDeps is everything the root router mounts.
type RouterDeps struct {
	Guard         httpx.Guard
	CORS          func(http.Handler) http.Handler
	Tournaments   tournamenthandlers.Handlers
	Registrations registrationhandlers.Handlers
	Settlement    settlementhandlers.Handlers
	Disputes      disputehandlers.Handlers
	Health        map[string]HealthCheck
	Metrics       http.Handler
	Logger        *slog.Logger
}

// NewRouter mounts every module under the API base path, plus /healthz and
// /metrics at the root.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlation)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if d.CORS != nil {
		r.Use(d.CORS)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, r, logger, apperr.NotFound("no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusMethodNotAllowed, map[string]any{"error": map[string]string{
			"code":    "METHOD_NOT_ALLOWED",
			"message": r.Method + " is not allowed on " + r.URL.Path,
		}})
	})

	r.Get("/healthz", healthHandler(d.Health, logger))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route(APIBasePath, func(r chi.Router) {
		tournamentrouter.Mount(r, d.Guard, d.Tournaments)
		registrationrouter.Mount(r, d.Guard, d.Registrations)
		settlementrouter.Mount(r, d.Guard, d.Settlement)
		disputerouter.Mount(r, d.Guard, d.Disputes)
	})
	return r
}

// MetricsHandler serves the registry in the Prometheus text format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// correlation carries the caller's correlation id, or chi's request id, into
// the request context for log lines and published events.
func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationIDHeader)
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		w.Header().Set(correlationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(attr.WithCorrelationID(r.Context(), id)))
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "HTTP request",
				attr.ExtractCorrelationID(r.Context()),
				attr.String("method", r.Method),
				attr.String("path", r.URL.Path),
				attr.Int("status", ww.Status()),
				attr.Int("bytes", ww.BytesWritten()),
				attr.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "Health check failed", attr.String("check", name), attr.Error(err))
				resp.Checks[name] = err.Error()
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httpx.JSON(w, status, resp)
	}
}
