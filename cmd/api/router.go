package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/kasir-kopi/internal/alerts"
	"github.com/noah-isme/kasir-kopi/internal/analytics"
	"github.com/noah-isme/kasir-kopi/internal/app"
	"github.com/noah-isme/kasir-kopi/internal/audit"
	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/checkout"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/health"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/obs"
	"github.com/noah-isme/kasir-kopi/internal/ratelimit"
	"github.com/noah-isme/kasir-kopi/internal/sales"
	"github.com/noah-isme/kasir-kopi/internal/security"
	"github.com/noah-isme/kasir-kopi/internal/tabs"
)

type routerOptions struct {
	Metrics        *obs.HTTPMetrics
	Tracing        bool
	ExposeMetrics  bool
	Limiter        ratelimit.Limiter
	AllowedOrigins []string
}

func newRouter(d *app.Dependencies, opts routerOptions) http.Handler {
	cfg := d.Config

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: d.Catalog})
	inventoryHandler := inventory.NewHandler(inventory.HandlerConfig{Service: d.Inventory})
	cartHandler := &cart.Handler{Sessions: d.Sessions, Products: d.Catalog}
	checkoutHandler := &checkout.Handler{Engine: d.Engine, Sessions: d.Sessions, Tabs: d.Tabs, Log: d.Logger}
	tabsHandler := &tabs.Handler{Manager: d.Tabs, Sessions: d.Sessions}
	salesHandler := &sales.Handler{Svc: d.Sales}
	analyticsHandler := &analytics.Handler{Svc: d.Analytics}
	alertsHandler := &alerts.Handler{Svc: d.Alerts}
	auditService := audit.Service{Store: d.Store, Enabled: cfg.AuditEnabled}
	auditHandler := audit.Handler{Service: auditService}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("audit entry not recorded") },
	}
	healthHandler := health.Handler{Checker: health.Probe{Store: d.Store, Redis: d.Redis}}

	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	writeLimit := ratelimit.Handler{
		Limiter: opts.Limiter,
		Config:  ratelimit.Config{Window: time.Minute, Max: cfg.WriteLimitPerMinute, WritesOnly: true},
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{HSTSMaxAge: cfg.HSTSMaxAge}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(common.StationMiddleware)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(opts.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", common.StationHeader},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if opts.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(writeLimit.Middleware)

		v.Route("/products", func(p chi.Router) {
			p.Use(auditRecorder.Middleware)
			catalogHandler.Routes(p)
		})
		v.Route("/ingredients", func(i chi.Router) {
			i.Use(auditRecorder.Middleware)
			inventoryHandler.Routes(i)
		})
		v.Route("/sessions/{"+cart.SessionParam+"}", func(s chi.Router) {
			s.Use(idem.Middleware)
			cartHandler.Routes(s)
			checkoutHandler.Routes(s)
			tabsHandler.SessionRoutes(s)
		})
		v.Route("/tabs", func(t chi.Router) {
			t.Use(idem.Middleware)
			tabsHandler.Routes(t)
		})
		v.Route("/transactions", salesHandler.Routes)
		v.Route("/analytics", analyticsHandler.Routes)
		v.Route("/alerts", alertsHandler.Routes)
		v.Route("/audit-logs", auditHandler.Routes)
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
