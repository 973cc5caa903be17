package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

// QueryService serves permission-scoped reads. Third-party views go through
// the cache; self-scoped listings always hit the database.
type QueryService struct {
	pool  Pool
	store *repository.Store
	cache *CacheService
}

func NewQueryService(pool Pool, store *repository.Store, cache *CacheService) *QueryService {
	return &QueryService{pool: pool, store: store, cache: cache}
}

// Video returns a video with its visible contributions.
func (s *QueryService) Video(ctx context.Context, ref string) (*model.VideoResponse, error) {
	id, err := ytid.Video(ref)
	if err != nil {
		return nil, err
	}

	var resp model.VideoResponse
	if s.cache.GetVideo(ctx, string(id), &resp) {
		return &resp, nil
	}

	err = db.WithReadTx(ctx, s.pool, func(tx pgx.Tx) error {
		key, summary, err := s.store.Queries.VideoSummary(ctx, tx, id)
		if err != nil {
			return err
		}
		contributions, err := s.store.Queries.VisibleVideoContributions(ctx, tx, key)
		if err != nil {
			return err
		}
		resp = model.VideoResponse{Video: summary, Contributions: contributions}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "video not in db")
	}

	s.cache.SetVideo(ctx, string(id), resp)
	return &resp, nil
}

// ChannelMaintainers returns a channel with its visible channel contributions.
func (s *QueryService) ChannelMaintainers(ctx context.Context, ref string) (*model.ChannelMaintainersResponse, error) {
	id, err := ytid.Channel(ref)
	if err != nil {
		return nil, err
	}

	var resp model.ChannelMaintainersResponse
	if s.cache.GetMaintainers(ctx, string(id), &resp) {
		return &resp, nil
	}

	err = db.WithReadTx(ctx, s.pool, func(tx pgx.Tx) error {
		key, summary, err := s.store.Queries.ChannelSummary(ctx, tx, id)
		if err != nil {
			return err
		}
		maintainers, err := s.store.Queries.VisibleMaintainers(ctx, tx, key)
		if err != nil {
			return err
		}
		resp = model.ChannelMaintainersResponse{Channel: summary, Contributions: maintainers}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "channel not in db")
	}

	s.cache.SetMaintainers(ctx, string(id), resp)
	return &resp, nil
}

// ChannelVideos returns one page of a channel's videos that have at least one
// visible contributor.
func (s *QueryService) ChannelVideos(ctx context.Context, ref string, page model.Page) (*model.ChannelVideosResponse, error) {
	id, err := ytid.Channel(ref)
	if err != nil {
		return nil, err
	}

	var resp model.ChannelVideosResponse
	if s.cache.GetChannelVideos(ctx, string(id), page.Limit, page.Offset, &resp) {
		return &resp, nil
	}

	err = db.WithReadTx(ctx, s.pool, func(tx pgx.Tx) error {
		key, summary, err := s.store.Queries.ChannelSummary(ctx, tx, id)
		if err != nil {
			return err
		}
		videos, err := s.store.Queries.ChannelVideos(ctx, tx, key, page)
		if err != nil {
			return err
		}
		resp = model.ChannelVideosResponse{
			Channel:    summary,
			Count:      len(videos),
			NextOffset: page.NextOffset(len(videos)),
			Videos:     videos,
		}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "channel not in db")
	}

	s.cache.SetChannelVideos(ctx, string(id), page.Limit, page.Offset, resp)
	return &resp, nil
}

// MyVideos lists the contributor's own video contributions, visible or not.
func (s *QueryService) MyVideos(ctx context.Context, contributorID int64, page model.Page) (*model.MyVideosResponse, error) {
	videos, err := s.store.Queries.MyVideos(ctx, s.pool, contributorID, page)
	if err != nil {
		return nil, storageErr(err)
	}
	return &model.MyVideosResponse{
		Count:      len(videos),
		NextOffset: page.NextOffset(len(videos)),
		Videos:     videos,
	}, nil
}

// MyChannels lists the contributor's own channel contributions.
func (s *QueryService) MyChannels(ctx context.Context, contributorID int64, page model.Page) (*model.MyChannelsResponse, error) {
	channels, err := s.store.Queries.MyChannels(ctx, s.pool, contributorID, page)
	if err != nil {
		return nil, storageErr(err)
	}
	return &model.MyChannelsResponse{
		Count:      len(channels),
		NextOffset: page.NextOffset(len(channels)),
		Channels:   channels,
	}, nil
}

// Stats returns the latest snapshot, computing it live when none is cached.
func (s *QueryService) Stats(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	if s.cache.GetStats(ctx, &stats) {
		return &stats, nil
	}
	stats, err := s.store.Stats.Compute(ctx, s.pool)
	if err != nil {
		return nil, storageErr(err)
	}
	return &stats, nil
}
