package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"NewsPulse/internal/domain/repository"
	"NewsPulse/internal/scheduler"
	"NewsPulse/pkg/cache"
	pkgch "NewsPulse/pkg/clickhouse"
	"NewsPulse/pkg/config"
	xhttp "NewsPulse/pkg/http"
	applogger "NewsPulse/pkg/logger"
	pkgqueue "NewsPulse/pkg/queue"
)

// App encapsulates the application lifecycle: the HTTP push surface, the
// wall-clock scheduler, and the anomaly work queue.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	sched      *scheduler.Scheduler
	queue      *pkgqueue.RedisQueue
	handler    xhttp.Handler
	httpServer *xhttp.Server
	chClient   *pkgch.Client
	bus        repository.SignalBus
	cacheSvc   cache.Service
}

// New creates an App with all dependencies. Optional subsystems (queue,
// ClickHouse, Kafka bus) may be nil.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	sched *scheduler.Scheduler,
	q *pkgqueue.RedisQueue,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	bus repository.SignalBus,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:      cfg,
		logger:   lgr,
		sched:    sched,
		queue:    q,
		handler:  handler,
		chClient: chClient,
		bus:      bus,
		cacheSvc: cacheSvc,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := a.cfg.Metrics.Path
	if !a.cfg.Metrics.Enabled {
		metricsPath = ""
	}
	a.httpServer = xhttp.NewServer(a.handler, a.logger,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.logger.Error("queue start error", applogger.Error(err))
			return err
		}
		a.logger.Info("anomaly queue started", applogger.Int("workers", a.cfg.Queue.Workers))
	}

	go func() {
		if err := a.sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("scheduler error", applogger.Error(err))
		}
	}()

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops all subsystems in reverse start order, best effort.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn("signal bus close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.cacheSvc != nil {
		if closer, ok := a.cacheSvc.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				a.logger.Warn("cache close error", applogger.Error(err))
			}
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
