package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/researchtldr/internal/runner"
	"github.com/ryosukesatoh/researchtldr/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled ingest and summarization",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg, log := c.cfg, c.logger
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := cron.New()
	if cfg.Ingest.Schedule != "" {
		if _, err := sched.AddFunc(cfg.Ingest.Schedule, func() { runIngest(ctx, a) }); err != nil {
			return fmt.Errorf("invalid ingest.schedule %q: %w", cfg.Ingest.Schedule, err)
		}
		log.Info("scheduled ingest", zap.String("schedule", cfg.Ingest.Schedule))
	}
	if cfg.Pipeline.Schedule != "" {
		if _, err := sched.AddFunc(cfg.Pipeline.Schedule, func() { runBatch(ctx, a) }); err != nil {
			return fmt.Errorf("invalid pipeline.schedule %q: %w", cfg.Pipeline.Schedule, err)
		}
		log.Info("scheduled summarization", zap.String("schedule", cfg.Pipeline.Schedule))
	}
	sched.Start()

	if cfg.Pipeline.RunOnStart {
		go runBatch(ctx, a)
	}

	api := server.New(server.Options{
		Store:    a.store,
		Auth:     a.auth,
		Runner:   a.runner,
		Ingester: a.ingester,
		Reports:  a.web,
		Logger:   log,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}

	// Wait for running jobs; batches finish the papers they started.
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduled jobs still running at shutdown")
	}
	log.Info("shutdown complete")
	return serveErr
}

func runIngest(ctx context.Context, a *app) {
	n, err := a.ingester.Run(ctx)
	if err != nil {
		a.logger.Error("scheduled ingest failed", zap.Error(err))
		return
	}
	a.logger.Info("scheduled ingest finished", zap.Int("stored", n))
}

func runBatch(ctx context.Context, a *app) {
	report, err := a.runner.Run(ctx)
	switch {
	case errors.Is(err, runner.ErrBatchInProgress):
		a.logger.Info("previous batch still running, skipping this tick")
	case err != nil:
		a.logger.Error("scheduled batch failed", zap.Error(err))
	default:
		a.logger.Info("scheduled batch finished", zap.String("summary", describe(report)))
	}
}
