package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-desk/internal/api/http"
	"github.com/spec-kit/ticket-desk/internal/api/http/handlers"
	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/projection"
	"github.com/spec-kit/ticket-desk/internal/realtime"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func runServe(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	d, err := loadDesk(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	logger := d.logger

	dispatcher := events.NewInMemoryDispatcher()
	reconciler := events.NewReconciler(events.ReconcilerDependencies{
		Dispatcher: dispatcher,
		Reloader:   d.snapshots,
		Cache:      d.cache,
		Resolver:   d.directory,
		Logger:     logger.Named("reconciler"),
		Metrics:    d.metrics,
	})
	activity := service.NewActivityService(service.ActivityDependencies{
		Dispatcher: dispatcher,
		Repo:       d.activity,
		Cache:      d.cache,
		Logger:     logger.Named("activity"),
	})
	worker.StartActivityWorker(activity)

	live := projection.NewLiveView(d.projector, d.cache, d.identities)
	defer live.Close()

	if err := d.snapshots.Reload(ctx); err != nil {
		logger.Warn("initial snapshot failed; serving empty board until the next reload", zap.Error(err))
	}

	var connection handlers.Connection
	poll := pollTarget{snapshots: d.snapshots}
	if d.cfg.Push.Enabled {
		opts := realtime.OptionsFromConfig(d.cfg.Push)
		opts.OnFrame = reconciler.HandleFrame
		opts.OnOpen = d.snapshots.Trigger
		opts.Logger = logger.Named("push")
		opts.Metrics = d.metrics
		manager := realtime.NewManager(opts)
		manager.Connect("")
		defer manager.Disconnect()
		connection = manager
		poll.push = manager
	} else {
		logger.Info("push channel disabled")
	}

	pollDone := worker.StartReloadWorker(ctx, d.cfg.Sync.PollInterval(), poll, logger.Named("poller"))

	app := fiber.New(fiber.Config{
		AppName:               d.cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, d.metrics, d.cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(d.cfg.App.Name, d.cfg.App.Version, readinessChecks(d)),
		Board: handlers.NewBoardHandler(handlers.BoardDependencies{
			Live:       live,
			Snapshots:  d.snapshots,
			Cache:      d.cache,
			Connection: connection,
		}),
		Tickets: handlers.NewTicketsHandler(handlers.TicketsDependencies{
			Mutations: d.mutations,
			Snapshots: d.snapshots,
			Live:      live,
			Cache:     d.cache,
		}),
		Distribution: handlers.NewDistributionHandler(handlers.DistributionDependencies{
			Mutations:  d.mutations,
			Remote:     d.remote,
			Translator: d.translator,
			Resolver:   d.directory,
		}),
		Identity:     handlers.NewIdentityHandler(d.identities),
		Activity:     handlers.NewActivityHandler(activity),
		IdentityAuth: auth.NewIdentityMiddleware(d.identities),
		Metrics:      promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("desk listening", zap.String("addr", d.cfg.App.Addr()))
		listenErr <- app.Listen(d.cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
			return err
		}
	case <-waitForShutdown(ctx, logger):
	}

	cancel()
	<-pollDone
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

// pollTarget is what the poller drives each tick: a coalesced reload, and a
// restart of the push channel if it gave up.
type pollTarget struct {
	snapshots *service.SnapshotService
	push      *realtime.Manager
}

func (p pollTarget) Trigger() {
	if p.push != nil {
		p.push.Retry()
	}
	p.snapshots.Trigger()
}

func readinessChecks(d *desk) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if d.postgres != nil {
		checks["postgres"] = d.postgres
	}
	if d.redis != nil {
		checks["redis"] = d.redis
	}
	return checks
}

// waitForShutdown closes the returned channel on SIGINT, SIGTERM or when ctx ends.
func waitForShutdown(ctx context.Context, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
			logger.Info("shutting down", zap.Error(ctx.Err()))
		}
	}()
	return done
}
