package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
)

const (
	VideoCacheTTL         = 5 * time.Minute
	MaintainersCacheTTL   = 15 * time.Minute
	ChannelVideosCacheTTL = 5 * time.Minute
)

const statsKey = "stats:snapshot"

// CacheService is a Redis cache-aside layer for third-party reads. A nil
// client disables caching and every call becomes a no-op miss.
type CacheService struct {
	rdb *redis.Client
}

// NewCacheService connects to redisURL. If the URL is empty or the server is
// unreachable it returns a disabled CacheService.
func NewCacheService(redisURL string) *CacheService {
	if redisURL == "" {
		log.Info().Msg("redis: no URL configured, caching disabled")
		return &CacheService{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return &CacheService{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		_ = rdb.Close()
		return &CacheService{}
	}

	log.Info().Msg("redis: connected, caching enabled")
	return &CacheService{rdb: rdb}
}

// NewCacheServiceWithClient wraps an existing client. rdb may be nil.
func NewCacheServiceWithClient(rdb *redis.Client) *CacheService {
	return &CacheService{rdb: rdb}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	return c.rdb
}

func (c *CacheService) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetVideo decodes a cached video response into dst. Reports whether it hit.
func (c *CacheService) GetVideo(ctx context.Context, videoID string, dst any) bool {
	return c.get(ctx, videoKey(videoID), dst)
}

func (c *CacheService) SetVideo(ctx context.Context, videoID string, v any) {
	c.set(ctx, videoKey(videoID), v, VideoCacheTTL)
}

func (c *CacheService) GetMaintainers(ctx context.Context, channelID string, dst any) bool {
	return c.get(ctx, maintainersKey(channelID), dst)
}

func (c *CacheService) SetMaintainers(ctx context.Context, channelID string, v any) {
	c.set(ctx, maintainersKey(channelID), v, MaintainersCacheTTL)
}

// GetChannelVideos reads one cached page. Pages of a channel share a hash so
// invalidation drops them together.
func (c *CacheService) GetChannelVideos(ctx context.Context, channelID string, limit, offset int, dst any) bool {
	if !c.Enabled() {
		return false
	}
	data, err := c.rdb.HGet(ctx, channelVideosKey(channelID), pageField(limit, offset)).Bytes()
	return c.decode(data, err, dst)
}

func (c *CacheService) SetChannelVideos(ctx context.Context, channelID string, limit, offset int, v any) {
	if !c.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("cache: encode channel videos")
		return
	}
	key := channelVideosKey(channelID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, pageField(limit, offset), b)
	pipe.Expire(ctx, key, ChannelVideosCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: set channel videos")
	}
}

// GetStats reads the periodic stats snapshot.
func (c *CacheService) GetStats(ctx context.Context, dst any) bool {
	return c.get(ctx, statsKey, dst)
}

// SetStats stores the stats snapshot for ttl.
func (c *CacheService) SetStats(ctx context.Context, v any, ttl time.Duration) {
	c.set(ctx, statsKey, v, ttl)
}

// InvalidateVideos drops cached video responses.
func (c *CacheService) InvalidateVideos(ctx context.Context, videoIDs ...string) error {
	keys := make([]string, len(videoIDs))
	for i, id := range videoIDs {
		keys[i] = videoKey(id)
	}
	return c.del(ctx, keys)
}

// InvalidateChannels drops cached maintainer lists and channel video pages.
func (c *CacheService) InvalidateChannels(ctx context.Context, channelIDs ...string) error {
	keys := make([]string, 0, 2*len(channelIDs))
	for _, id := range channelIDs {
		keys = append(keys, maintainersKey(id), channelVideosKey(id))
	}
	return c.del(ctx, keys)
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

func (c *CacheService) get(ctx context.Context, key string, dst any) bool {
	if !c.Enabled() {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	return c.decode(data, err, dst)
}

func (c *CacheService) decode(data []byte, err error, dst any) bool {
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.Inc()
		return false
	}
	if err != nil {
		log.Warn().Err(err).Msg("cache: read")
		metrics.CacheMisses.Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Warn().Err(err).Msg("cache: decode")
		metrics.CacheMisses.Inc()
		return false
	}
	metrics.CacheHits.Inc()
	return true
}

func (c *CacheService) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: encode")
		return
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: set")
	}
}

func (c *CacheService) del(ctx context.Context, keys []string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func videoKey(videoID string) string {
	return "video:" + videoID
}

func maintainersKey(channelID string) string {
	return "maintainers:" + channelID
}

func channelVideosKey(channelID string) string {
	return "channelvideos:" + channelID
}

func pageField(limit, offset int) string {
	return fmt.Sprintf("%d:%d", limit, offset)
}
