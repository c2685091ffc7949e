package debugserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/transitcache/auth"
	"github.com/jonwraymond/transitcache/buscache"
	"github.com/jonwraymond/transitcache/health"
	"github.com/jonwraymond/transitcache/observe"
)

// ErrNoService is returned by NewRouter without a Service.
var ErrNoService = errors.New("debugserver: service is required")

// Options configures the router.
type Options struct {
	// Service is required.
	Service *buscache.Service

	// Health backs /health, /health/{name} and /readyz. Nil registers only
	// the buscache checker.
	Health *health.Aggregator

	// Gatherer backs /metrics. Nil leaves /metrics out.
	Gatherer prometheus.Gatherer

	// Authenticator guards every non-probe route. Nil leaves them open.
	Authenticator auth.Authenticator

	// Authorizer checks actions. Nil uses the viewer/operator roles.
	Authorizer auth.Authorizer

	Logger observe.Logger
}

// NewRouter builds the debug HTTP surface.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Service == nil {
		return nil, ErrNoService
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.Health == nil {
		opts.Health = health.NewAggregator()
		opts.Health.Register("buscache", opts.Service.HealthChecker())
	}
	if opts.Authorizer == nil {
		opts.Authorizer = auth.NewRoleAuthorizer(nil, "")
	}

	h := &handlers{
		svc:    opts.Service,
		health: opts.Health,
		logger: opts.Logger.With(observe.F("component", "debugserver")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(opts.Health))

	r.Group(func(r chi.Router) {
		if opts.Authenticator != nil {
			r.Use(auth.Authenticate(opts.Authenticator, h.logger))
			r.Use(requireFor(opts.Authorizer))
		}

		r.Get("/stats", h.stats)
		r.Get("/status", h.status)
		r.Get("/status/{key}", h.keyStatus)
		r.Get("/readiness", h.readiness)
		r.Get("/health", health.Handler(opts.Health))
		r.Get("/health/{name}", h.check)
		if opts.Gatherer != nil {
			r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
		}
		r.Get("/data/{dataset}", h.data)
		r.Post("/refresh/{dataset}", h.refresh)
		r.Post("/clear", h.clear)
	})

	return r, nil
}

// requireFor maps safe methods to the read action and everything else to
// write.
func requireFor(authz auth.Authorizer) func(http.Handler) http.Handler {
	read := auth.Require(authz, auth.ActionRead)
	write := auth.Require(authz, auth.ActionWrite)
	return func(next http.Handler) http.Handler {
		readNext, writeNext := read(next), write(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				readNext.ServeHTTP(w, r)
			default:
				writeNext.ServeHTTP(w, r)
			}
		})
	}
}

func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug(r.Context(), "http request",
				observe.F("method", r.Method),
				observe.F("path", r.URL.Path),
				observe.F("status", ww.Status()),
				observe.F("request_id", middleware.GetReqID(r.Context())),
				observe.F("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
