package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/handler"
	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/internal/middleware"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/internal/router"
	"github.com/DYArchive/distributed-youtube-tracker/internal/service"
	"github.com/DYArchive/distributed-youtube-tracker/internal/telemetry"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context())
		},
	}
}

func serveRun(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, programName, cfg.Environment, version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	pool, err := openPool(ctx)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.InstallSchema(ctx, pool); err != nil {
		return err
	}

	cache := service.NewCacheService(cfg.RedisURL)
	defer cache.Close()

	metrics.Register(pool)

	// Services
	store := repository.NewStore()
	reconciler := service.NewReconciler(pool, store, cfg.ChunkSize)
	querySvc := service.NewQueryService(pool, store, cache)
	ledgerSvc := service.NewLedgerService(pool, store, cache)
	contributorSvc := service.NewContributorService(pool, store)
	authSvc := service.NewAuthService(pool, store)
	submissionSvc := service.NewSubmissionService(reconciler)

	// Workers
	invalidation := service.NewInvalidationWorker(pool, store, cache)
	statsWorker := service.NewStatsWorker(pool, store, cache, cfg.StatsInterval)

	defaultLimiter := middleware.NewDefaultRateLimiter(cfg.RateLimit.DefaultPerMinute)
	defer defaultLimiter.Stop()
	strictLimiter := middleware.NewStrictRateLimiter(cfg.RateLimit.StrictPerMinute)
	defer strictLimiter.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "DYT API",
		ErrorHandler: middleware.ErrorHandler,
	})
	router.Setup(app, &router.Handlers{
		Query:        handler.NewQueryHandler(querySvc),
		Contribution: handler.NewContributionHandler(submissionSvc, querySvc, ledgerSvc),
		Contributor:  handler.NewContributorHandler(contributorSvc, authSvc),
		Health:       handler.NewHealthHandler(pool, cache.Client(), version),
	}, router.Options{
		CORSOrigins:    cfg.CORSOrigins,
		Resolver:       authSvc,
		DefaultLimiter: defaultLimiter,
		StrictLimiter:  strictLimiter,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		invalidation.Start(gctx)
		return nil
	})
	g.Go(func() error {
		statsWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		return app.ShutdownWithTimeout(cfg.ShutdownTimeout)
	})

	return g.Wait()
}
