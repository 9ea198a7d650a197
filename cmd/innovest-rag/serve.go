package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/innovest/innovest-rag/internal/adapters/driving/http"
	"github.com/innovest/innovest-rag/internal/adapters/driving/watcher"
	"github.com/innovest/innovest-rag/internal/config"
	"github.com/innovest/innovest-rag/internal/core/services"
	"github.com/innovest/innovest-rag/internal/observability"
	"github.com/innovest/innovest-rag/internal/worker"
)

func serveCMD(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "serve [api|worker|all]",
		Short:     "Run the HTTP API, the ingestion worker, or both",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{config.ModeAPI, config.ModeWorker, config.ModeAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Mode = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	switch cfg.Mode {
	case config.ModeAPI, config.ModeWorker, config.ModeAll:
	default:
		return fmt.Errorf("unknown mode: %s (use: api, worker, or all)", cfg.Mode)
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	a.logger.Info("innovest-rag starting", "version", version, "mode", cfg.Mode)

	var uploads *watcher.Watcher
	if cfg.Uploads.Watch && cfg.Mode != config.ModeWorker {
		uploads, err = watcher.New(watcher.Config{Keys: a.blobs, Ingestion: a.ingestion, Logger: a.logger})
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Mode == config.ModeWorker || cfg.Mode == config.ModeAll {
		g.Go(func() error { return runWorker(ctx, a) })
	}

	if cfg.Mode == config.ModeAPI || cfg.Mode == config.ModeAll {
		server := http.NewServer(http.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			Version:        version,
			Backend:        cfg.Vector.Backend,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, http.Dependencies{
			Ingestion: a.ingestion,
			Retrieval: a.retrieval,
			Store:     a.store,
			TaskQueue: a.taskQueue,
			Auth:      a.auth,
			Metrics:   a.metrics,
			Checks:    a.checks(),
			Logger:    a.logger,
		})
		g.Go(func() error { return server.Start(ctx) })
	}

	if uploads != nil {
		g.Go(func() error { return uploads.Run(ctx) })
	}

	return g.Wait()
}

func runWorker(ctx context.Context, a *app) error {
	var janitor *services.Janitor
	if a.cfg.Worker.Janitor.Enabled {
		janitor = services.NewJanitor(services.JanitorConfig{
			TaskQueue: a.taskQueue,
			Lock:      a.lock,
			Logger:    a.logger,
			Interval:  a.cfg.Worker.Janitor.Interval,
			Retention: a.cfg.Worker.Janitor.Retention,
		})
	}

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.taskQueue,
		Ingestion:      a.ingestion,
		Janitor:        janitor,
		Logger:         a.logger,
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeout,
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("stopping worker")
	w.Stop()
	return nil
}

// checks lists the backends probed by the readiness endpoint.
func (a *app) checks() map[string]http.Pinger {
	checks := map[string]http.Pinger{
		"task_queue":   a.taskQueue,
		"vector_store": a.store,
	}
	if a.db != nil {
		checks["database"] = a.db
	}
	if a.lock != nil {
		checks["lock"] = a.lock
	}
	return checks
}
