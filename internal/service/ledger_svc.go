package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

// LedgerService removes contribution edges on behalf of their owner.
type LedgerService struct {
	pool  Pool
	store *repository.Store
	cache viewInvalidator
}

// NewLedgerService drops cached views itself after each removal commits, so a
// removed contributor disappears even when the invalidation worker missed the
// notification. cache may be nil or disabled.
func NewLedgerService(pool Pool, store *repository.Store, cache *CacheService) *LedgerService {
	s := &LedgerService{pool: pool, store: store}
	if cache.Enabled() {
		s.cache = cache
	}
	return s
}

// RemoveVideo deletes the contributor's own edge for the referenced video.
// Removing an edge that does not exist succeeds with removed=false.
func (s *LedgerService) RemoveVideo(ctx context.Context, contributorID int64, ref string) (bool, error) {
	id, err := ytid.Video(ref)
	if err != nil {
		return false, err
	}

	var removed bool
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		removed, err = s.store.Contributions.RemoveVideoContribution(ctx, tx, id, contributorID)
		if err != nil || !removed {
			return err
		}
		return repository.NotifyLedgerChanges(ctx, tx, repository.VideoKeys(string(id)))
	})
	if err != nil {
		return false, storageErr(err)
	}
	if removed {
		metrics.ContributionsRemoved.WithLabelValues("video").Inc()
		s.dropViews(ctx, []string{string(id)}, nil)
	}
	return removed, nil
}

// RemoveChannel deletes the contributor's own edge for the referenced channel.
func (s *LedgerService) RemoveChannel(ctx context.Context, contributorID int64, ref string) (bool, error) {
	id, err := ytid.Channel(ref)
	if err != nil {
		return false, err
	}

	var removed bool
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		removed, err = s.store.Contributions.RemoveChannelContribution(ctx, tx, id, contributorID)
		if err != nil || !removed {
			return err
		}
		return repository.NotifyLedgerChanges(ctx, tx, repository.ChannelKeys(string(id)))
	})
	if err != nil {
		return false, storageErr(err)
	}
	if removed {
		metrics.ContributionsRemoved.WithLabelValues("channel").Inc()
		s.dropViews(ctx, nil, []string{string(id)})
	}
	return removed, nil
}

// Purge removes every edge the contributor owns in one transaction. It
// refuses to run unless confirm is set.
func (s *LedgerService) Purge(ctx context.Context, contributorID int64, confirm bool) (model.PurgeResult, error) {
	if !confirm {
		return model.PurgeResult{}, apperr.Forbidden("`confirm` is not `true`")
	}

	var res model.PurgeResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		res, err = s.store.Contributions.PurgeContributor(ctx, tx, contributorID)
		if err != nil {
			return err
		}
		keys := repository.VideoKeys(res.Videos...)
		keys = append(keys, repository.ChannelKeys(res.Channels...)...)
		return repository.NotifyLedgerChanges(ctx, tx, keys)
	})
	if err != nil {
		return model.PurgeResult{}, storageErr(err)
	}

	s.dropViews(ctx, res.Videos, res.Channels)
	metrics.ContributionsRemoved.WithLabelValues("video").Add(float64(res.VideoEdges))
	metrics.ContributionsRemoved.WithLabelValues("channel").Add(float64(res.ChannelEdges))
	log.Info().
		Int64("contributor", contributorID).
		Int64("video_edges", res.VideoEdges).
		Int64("channel_edges", res.ChannelEdges).
		Msg("ledger: contributor purged")
	return res, nil
}

func (s *LedgerService) dropViews(ctx context.Context, videos, channels []string) {
	if s.cache == nil {
		return
	}
	if _, err := invalidateViews(ctx, s.pool, s.store, s.cache, videos, channels); err != nil {
		log.Warn().Err(err).Msg("ledger: invalidate cached views")
	}
}
