package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/kasir-kopi/internal/alerts"
	"github.com/noah-isme/kasir-kopi/internal/app"
	"github.com/noah-isme/kasir-kopi/internal/config"
	"github.com/noah-isme/kasir-kopi/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	if cfg.Obs.EnablePrometheus {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.New(startCtx, cfg, logger, false)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn().Msg("memory store is private to this process; alerts recorded here are not visible to the api")
	}

	processor := &alerts.Processor{Inventory: deps.Inventory, Alerts: deps.Alerts, Log: logger}
	sweeper := &alerts.Sweeper{
		Inventory: deps.Inventory,
		Enqueuer:  deps.Enqueuer,
		Locker:    deps.Locker,
		LockTTL:   cfg.LowStockSweepEvery,
		Log:       logger,
	}
	mux := asynq.NewServeMux()
	alerts.Register(mux, processor, sweeper)

	srv := asynq.NewServerFromRedisClient(deps.Redis, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{alerts.DefaultQueue: 1},
		Logger:      asynqLogger{logger},
	})
	scheduler := asynq.NewSchedulerFromRedisClient(deps.Redis, &asynq.SchedulerOpts{Location: cfg.Location, Logger: asynqLogger{logger}})
	if _, err := scheduler.Register(fmt.Sprintf("@every %s", cfg.LowStockSweepEvery), alerts.NewSweepTask(),
		asynq.Queue(alerts.DefaultQueue), asynq.Unique(cfg.LowStockSweepEvery)); err != nil {
		logger.Fatal().Err(err).Msg("register low stock sweep")
	}

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Dur("sweep_every", cfg.LowStockSweepEvery).Msg("worker starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Listen(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		scheduler.Shutdown()
		srv.Shutdown()
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
