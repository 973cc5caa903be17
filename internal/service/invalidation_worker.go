package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
)

// InvalidationWorker listens on the ledger_changes channel and drops cached
// third-party views for the touched videos and channels. Notifications are
// batched so a large reconciliation costs one flush per window.
type InvalidationWorker struct {
	pool   *pgxpool.Pool
	store  *repository.Store
	cache  *CacheService
	window time.Duration
	logger zerolog.Logger

	mu       sync.Mutex
	videos   map[string]struct{}
	channels map[string]struct{}
}

func NewInvalidationWorker(pool *pgxpool.Pool, store *repository.Store, cache *CacheService) *InvalidationWorker {
	return &InvalidationWorker{
		pool:     pool,
		store:    store,
		cache:    cache,
		window:   2 * time.Second,
		logger:   log.With().Str("component", "invalidation-worker").Logger(),
		videos:   make(map[string]struct{}),
		channels: make(map[string]struct{}),
	}
}

// Start listens until ctx is cancelled, reconnecting after errors.
func (w *InvalidationWorker) Start(ctx context.Context) {
	if !w.cache.Enabled() {
		w.logger.Info().Msg("cache disabled, not starting")
		return
	}
	w.logger.Info().Dur("window", w.window).Msg("starting")

	for {
		if err := w.listenLoop(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info().Msg("stopping (context cancelled)")
				return
			}
			w.logger.Warn().Err(err).Msg("listen error, reconnecting in 5s")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				w.logger.Info().Msg("stopping (context cancelled)")
				return
			}
		}
	}
}

func (w *InvalidationWorker) listenLoop(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+repository.LedgerChannel); err != nil {
		return err
	}
	w.logger.Info().Str("channel", repository.LedgerChannel).Msg("listening")

	flushCtx, flushCancel := context.WithCancel(ctx)
	defer flushCancel()
	go w.flushLoop(flushCtx)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		w.Record(n.Payload)
	}
}

// Record queues one notification payload.
func (w *InvalidationWorker) Record(payload string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case strings.HasPrefix(payload, repository.VideoKeyPrefix):
		w.videos[strings.TrimPrefix(payload, repository.VideoKeyPrefix)] = struct{}{}
	case strings.HasPrefix(payload, repository.ChannelKeyPrefix):
		w.channels[strings.TrimPrefix(payload, repository.ChannelKeyPrefix)] = struct{}{}
	}
}

func (w *InvalidationWorker) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(w.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush(ctx)
		case <-ctx.Done():
			w.Flush(context.Background())
			return
		}
	}
}

// Flush drains the pending sets. Channel views embed video data, so the
// channels of changed videos are invalidated too.
func (w *InvalidationWorker) Flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.videos) == 0 && len(w.channels) == 0 {
		w.mu.Unlock()
		return
	}
	videos, channels := keysOf(w.videos), w.channels
	w.videos = make(map[string]struct{})
	w.channels = make(map[string]struct{})
	w.mu.Unlock()

	n, err := invalidateViews(ctx, w.pool, w.store, w.cache, videos, keysOf(channels))
	if err != nil {
		w.logger.Warn().Err(err).Msg("flush")
	}

	w.logger.Debug().Int("videos", len(videos)).Int("keys", n).Msg("flushed")
}

// viewInvalidator drops cached third-party views. *CacheService implements it.
type viewInvalidator interface {
	InvalidateVideos(ctx context.Context, videoIDs ...string) error
	InvalidateChannels(ctx context.Context, channelIDs ...string) error
}

// invalidateViews drops the cached views of videos and channels, plus the
// views of the channels the videos belong to. It returns how many IDs were
// invalidated.
func invalidateViews(ctx context.Context, q db.Querier, store *repository.Store, cache viewInvalidator, videos, channels []string) (int, error) {
	var errs []error
	channels = append([]string(nil), channels...)
	if len(videos) > 0 {
		owners, err := store.Queries.ChannelsOfVideos(ctx, q, videos)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve channels of videos: %w", err))
		}
		channels = append(channels, owners...)
		if err := cache.InvalidateVideos(ctx, videos...); err != nil {
			errs = append(errs, fmt.Errorf("invalidate videos: %w", err))
		}
	}
	if len(channels) > 0 {
		if err := cache.InvalidateChannels(ctx, channels...); err != nil {
			errs = append(errs, fmt.Errorf("invalidate channels: %w", err))
		}
	}

	n := len(videos) + len(channels)
	metrics.CacheInvalidations.Add(float64(n))
	return n, errors.Join(errs...)
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
