package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ryosukesatoh/researchtldr/internal/auth"
	"github.com/ryosukesatoh/researchtldr/internal/config"
	"github.com/ryosukesatoh/researchtldr/internal/extract"
	"github.com/ryosukesatoh/researchtldr/internal/fetcher"
	"github.com/ryosukesatoh/researchtldr/internal/lock"
	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
	"github.com/ryosukesatoh/researchtldr/internal/publisher"
	"github.com/ryosukesatoh/researchtldr/internal/runner"
	"github.com/ryosukesatoh/researchtldr/internal/store"
	"github.com/ryosukesatoh/researchtldr/internal/summarizer"
)

// batchLockTTL bounds how long a crashed instance can block other batches.
const batchLockTTL = 2 * time.Hour

// app holds the long-lived components built from config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	redis    *redis.Client
	runner   *runner.Runner
	ingester *runner.Ingester
	web      *publisher.WebPublisher
	auth     *auth.Manager
}

func openStore(cfg *config.Config) (*store.Store, error) {
	level := gormlogger.Warn
	if cfg.Env == "test" {
		level = gormlogger.Silent
	}
	return store.Open(cfg.Database, level)
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	var err error
	if a.store, err = openStore(cfg); err != nil {
		return err
	}
	if a.auth, err = auth.NewManager(cfg.Server.JWTSecret, cfg.Server.SessionTTL); err != nil {
		return err
	}

	model, err := summarizer.New(cfg.Summarizer)
	if err != nil {
		return err
	}
	pipe := pipeline.New(
		fetcher.NewPDFFetcher(cfg.PDF),
		pipeline.ExtractorFunc(extract.Extract),
		summarizer.NewClient(model),
		cfg.Summarizer.MaxCharsPerChunk,
		log,
	)

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.URL != "" {
		if a.redis, err = lock.Connect(ctx, cfg.Redis.URL); err != nil {
			return err
		}
		locker = lock.NewRedis(a.redis, batchLockTTL)
		log.Info("using redis batch lock")
	}

	pub, err := publisher.New(cfg.Publisher)
	if err != nil {
		return err
	}
	// The in-memory report always backs /api/summaries/latest.
	var pubs []publisher.Publisher
	if web, ok := pub.(*publisher.WebPublisher); ok {
		a.web = web
	} else {
		a.web = publisher.NewWebPublisher()
		if pub != nil {
			pubs = append(pubs, pub)
		}
	}
	pubs = append(pubs, a.web)

	a.runner = runner.New(a.store, pipe, runner.Options{
		BatchSize:   cfg.Pipeline.BatchSize,
		Concurrency: cfg.Pipeline.Concurrency,
		Locker:      locker,
		Publishers:  pubs,
	}, log)

	a.ingester = runner.NewIngester(fetcher.NewArxivFetcher(cfg.Ingest.BaseURL), a.store, runner.IngestOptions{
		Categories:   cfg.Ingest.Categories,
		LookbackDays: cfg.Ingest.LookbackDays,
		MaxResults:   cfg.Ingest.MaxResults,
	}, log)

	log.Info("application initialized",
		zap.String("env", cfg.Env),
		zap.String("database", cfg.Database.Driver),
		zap.String("model", model.Name()),
		zap.String("publisher", cfg.Publisher.Type),
	)
	return nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("database close failed", zap.Error(err))
		}
	}
}

func describe(report *pipeline.BatchReport) string {
	return fmt.Sprintf("run %s: %d updated, %d skipped, %d failed in %s",
		report.RunID, report.Updated(), report.Skipped(), report.Failed(), report.Duration().Round(time.Millisecond))
}
