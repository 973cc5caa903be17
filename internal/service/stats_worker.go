package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
)

// StatsWorker periodically recomputes the stats snapshot and stores it in
// the cache, so GET /api/stats never scans the ledger on the request path.
type StatsWorker struct {
	pool     Pool
	store    *repository.Store
	cache    *CacheService
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewStatsWorker creates a worker that ticks every interval.
func NewStatsWorker(pool Pool, store *repository.Store, cache *CacheService, interval time.Duration) *StatsWorker {
	return &StatsWorker{
		pool:     pool,
		store:    store,
		cache:    cache,
		interval: interval,
		logger:   log.With().Str("component", "stats-worker").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start runs one tick immediately, then every interval.
func (w *StatsWorker) Start(ctx context.Context) {
	if !w.cache.Enabled() {
		w.logger.Info().Msg("cache disabled, stats are computed per request")
		return
	}
	w.logger.Info().Dur("interval", w.interval).Msg("starting")

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			w.logger.Info().Msg("stopping (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info().Msg("stopping (stop signal)")
			return
		}
	}
}

// Stop signals the worker to stop.
func (w *StatsWorker) Stop() {
	close(w.stopCh)
}

func (w *StatsWorker) tick(ctx context.Context) {
	start := time.Now()

	stats, err := w.store.Stats.Compute(ctx, w.pool)
	if err != nil {
		w.logger.Error().Err(err).Msg("compute stats")
		return
	}
	// Keep the snapshot past one missed tick.
	w.cache.SetStats(ctx, stats, 2*w.interval)

	elapsed := time.Since(start)
	metrics.StatsRefreshDuration.Observe(elapsed.Seconds())
	w.logger.Info().
		Int64("videos", stats.Videos).
		Int64("channels", stats.Channels).
		Dur("took", elapsed.Round(time.Millisecond)).
		Msg("tick complete")
}
