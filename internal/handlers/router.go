package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopmart/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

const (
	defaultAPIPrefix    = "/api/v1"
	defaultTimeout      = 60 * time.Second
	defaultMaxBodyBytes = 1 << 20
	errorNotFoundCode   = "route_not_found"
)

// routeGroups lists the API groups in mount order.
var routeGroups = []string{"orders", "vendors", "admin"}

type routerConfig struct {
	basePath     string
	timeout      time.Duration
	maxBodyBytes int64
	middlewares  []func(http.Handler) http.Handler
	health       *HealthHandlers

	metricsPath    string
	metricsHandler http.Handler

	groups map[string]RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// NewRouter builds the HTTP surface: probes and metrics at the root, the JSON API under
// /api/v1. Groups without a registrar answer 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath:     defaultAPIPrefix,
		timeout:      defaultTimeout,
		maxBodyBytes: defaultMaxBodyBytes,
		groups:       make(map[string]RouteRegistrar, len(routeGroups)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(cfg.timeout))
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, cfg.metricsPath, cfg.metricsHandler)
	}

	r.Route(cfg.basePath, func(api chi.Router) {
		api.Use(middleware.RequestSize(cfg.maxBodyBytes), requireJSONBody)
		for _, name := range routeGroups {
			registrar := cfg.groups[name]
			api.Route("/"+name, func(group chi.Router) {
				if registrar == nil {
					unavailableGroup(group, name)
					return
				}
				registrar(group)
			})
		}
	})

	return r
}

// requireJSONBody rejects request bodies that are not declared as JSON.
func requireJSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				httpx.WriteError(r.Context(), w, httpx.NewError("unsupported_media_type", "request body must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// WithMiddlewares appends global middleware, applied after request IDs and the timeout.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithRequestTimeout bounds handler execution; non-positive values keep the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithMaxBodyBytes caps request bodies on API routes.
func WithMaxBodyBytes(n int64) Option {
	return func(cfg *routerConfig) {
		if n > 0 {
			cfg.maxBodyBytes = n
		}
	}
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithMetricsHandler exposes the scrape endpoint outside the API prefix.
func WithMetricsHandler(path string, handler http.Handler) Option {
	return func(cfg *routerConfig) {
		if path == "" {
			path = "/metrics"
		}
		cfg.metricsPath = path
		cfg.metricsHandler = handler
	}
}

func WithOrderRoutes(reg RouteRegistrar) Option  { return withGroup("orders", reg) }
func WithVendorRoutes(reg RouteRegistrar) Option { return withGroup("vendors", reg) }
func WithAdminRoutes(reg RouteRegistrar) Option  { return withGroup("admin", reg) }

func withGroup(name string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.groups[name] = reg
	}
}

func unavailableGroup(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
