package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/kasir-kopi/internal/app"
	"github.com/noah-isme/kasir-kopi/internal/config"
	"github.com/noah-isme/kasir-kopi/internal/health"
	"github.com/noah-isme/kasir-kopi/internal/obs"
	"github.com/noah-isme/kasir-kopi/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, nil, nil)
	}

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kasir-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
			StoreTimezone: cfg.StoreTimezone,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.New(startCtx, cfg, logger, cfg.Obs.EnablePrometheus)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	limiter, err := ratelimit.NewRedisLimiter(deps.Redis, "kasir:ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr(),
		Handler: newRouter(deps, routerOptions{
			Metrics:        httpMetrics,
			Tracing:        tracingEnabled,
			ExposeMetrics:  cfg.Obs.EnablePrometheus,
			Limiter:        limiter,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Listen(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return
	}
	logger.Info().Msg("server shutdown complete")
}
