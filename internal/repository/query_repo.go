package repository

import (
	"context"
	"fmt"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

// QueryRepo composes the read side. Third-party reads only see contributions
// from contributors with allow_channel_queries; self-scoped reads see all of
// the caller's own rows. Listings are ordered by surrogate key.
type QueryRepo struct{}

func NewQueryRepo() *QueryRepo {
	return &QueryRepo{}
}

const (
	latestVideoTitle = `(SELECT t.title FROM video_titles t WHERE t.video_id = %s ORDER BY t.time_added DESC, t.id DESC LIMIT 1)`
	latestChanTitle  = `(SELECT t.title FROM channel_titles t WHERE t.channel_id = %s ORDER BY t.time_added DESC, t.id DESC LIMIT 1)`
)

func videoTitleOf(col string) string   { return fmt.Sprintf(latestVideoTitle, col) }
func channelTitleOf(col string) string { return fmt.Sprintf(latestChanTitle, col) }

// VideoSummary returns the video's surrogate key and public summary.
// Returns pgx.ErrNoRows when the video is unknown.
func (r *QueryRepo) VideoSummary(ctx context.Context, q db.Querier, id ytid.VideoID) (int64, model.VideoSummary, error) {
	var (
		key int64
		s   = model.VideoSummary{ID: string(id)}
	)
	err := q.QueryRow(ctx, `
		SELECT v.id, c.channel_id, `+videoTitleOf("v.id")+`, `+channelTitleOf("v.channel_id")+`
		FROM videos v
		LEFT JOIN channels c ON c.id = v.channel_id
		WHERE v.video_id = $1`, string(id)).
		Scan(&key, &s.ChannelID, &s.Title, &s.ChannelTitle)
	return key, s, err
}

// VisibleVideoContributions lists a video's contributions from visible contributors.
func (r *QueryRepo) VisibleVideoContributions(ctx context.Context, q db.Querier, videoKey int64) ([]model.VideoContributionView, error) {
	rows, err := q.Query(ctx, `
		SELECT f.format_string, vc.filesize, ct.name, ct.discord_id
		FROM video_contributions vc
		JOIN contributors ct ON ct.id = vc.contributor_id
		LEFT JOIN formats f ON f.id = vc.format_id
		WHERE vc.video_id = $1 AND ct.allow_channel_queries
		ORDER BY ct.id ASC`, videoKey)
	if err != nil {
		return nil, fmt.Errorf("query video contributions: %w", err)
	}
	defer rows.Close()

	out := []model.VideoContributionView{}
	for rows.Next() {
		var v model.VideoContributionView
		if err := rows.Scan(&v.FormatString, &v.Filesize, &v.Contributor.Name, &v.Contributor.DiscordID); err != nil {
			return nil, fmt.Errorf("scan video contribution: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ChannelSummary returns the channel's surrogate key and public summary.
// Returns pgx.ErrNoRows when the channel is unknown.
func (r *QueryRepo) ChannelSummary(ctx context.Context, q db.Querier, id ytid.ChannelID) (int64, model.ChannelSummary, error) {
	var (
		key int64
		s   = model.ChannelSummary{ID: string(id)}
	)
	err := q.QueryRow(ctx, `
		SELECT c.id, `+channelTitleOf("c.id")+`
		FROM channels c
		WHERE c.channel_id = $1`, string(id)).
		Scan(&key, &s.Title)
	return key, s, err
}

// VisibleMaintainers lists a channel's contributions from visible contributors.
func (r *QueryRepo) VisibleMaintainers(ctx context.Context, q db.Querier, channelKey int64) ([]model.MaintainerView, error) {
	rows, err := q.Query(ctx, `
		SELECT cc.note, ct.name, ct.discord_id
		FROM channel_contributions cc
		JOIN contributors ct ON ct.id = cc.contributor_id
		WHERE cc.channel_id = $1 AND ct.allow_channel_queries
		ORDER BY ct.id ASC`, channelKey)
	if err != nil {
		return nil, fmt.Errorf("query maintainers: %w", err)
	}
	defer rows.Close()

	out := []model.MaintainerView{}
	for rows.Next() {
		var m model.MaintainerView
		if err := rows.Scan(&m.Note, &m.Contributor.Name, &m.Contributor.DiscordID); err != nil {
			return nil, fmt.Errorf("scan maintainer: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ChannelVideos returns one page of the channel's videos that have at least
// one visible contributor, with those contributors attached. Videos with only
// hidden contributors are filtered before LIMIT/OFFSET so they never occupy
// a page slot.
func (r *QueryRepo) ChannelVideos(ctx context.Context, q db.Querier, channelKey int64, page model.Page) ([]model.ChannelVideo, error) {
	rows, err := q.Query(ctx, `
		SELECT v.id, v.video_id, `+videoTitleOf("v.id")+`
		FROM videos v
		WHERE v.channel_id = $1
		  AND EXISTS (
			SELECT 1 FROM video_contributions vc
			JOIN contributors ct ON ct.id = vc.contributor_id
			WHERE vc.video_id = v.id AND ct.allow_channel_queries
		  )
		ORDER BY v.id ASC
		LIMIT $2 OFFSET $3`, channelKey, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("query channel videos: %w", err)
	}

	var (
		keys  []int64
		index = make(map[int64]int)
		out   = []model.ChannelVideo{}
	)
	for rows.Next() {
		var (
			key int64
			v   = model.ChannelVideo{Contributors: []model.ContributorRef{}}
		)
		if err := rows.Scan(&key, &v.ID, &v.Title); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan channel video: %w", err)
		}
		index[key] = len(out)
		keys = append(keys, key)
		out = append(out, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query channel videos: %w", err)
	}
	if len(keys) == 0 {
		return out, nil
	}

	crows, err := q.Query(ctx, `
		SELECT vc.video_id, ct.name, ct.discord_id
		FROM video_contributions vc
		JOIN contributors ct ON ct.id = vc.contributor_id
		WHERE vc.video_id = ANY($1::bigint[]) AND ct.allow_channel_queries
		ORDER BY vc.video_id ASC, ct.id ASC`, keys)
	if err != nil {
		return nil, fmt.Errorf("query channel video contributors: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var (
			key int64
			ref model.ContributorRef
		)
		if err := crows.Scan(&key, &ref.Name, &ref.DiscordID); err != nil {
			return nil, fmt.Errorf("scan channel video contributor: %w", err)
		}
		if i, ok := index[key]; ok {
			out[i].Contributors = append(out[i].Contributors, ref)
		}
	}
	return out, crows.Err()
}

// MyVideos lists the contributor's own video contributions.
func (r *QueryRepo) MyVideos(ctx context.Context, q db.Querier, contributorID int64, page model.Page) ([]model.MyVideo, error) {
	rows, err := q.Query(ctx, `
		SELECT v.video_id, `+videoTitleOf("v.id")+`, c.channel_id, `+channelTitleOf("v.channel_id")+`,
		       f.format_string, vc.filesize
		FROM video_contributions vc
		JOIN videos v ON v.id = vc.video_id
		LEFT JOIN channels c ON c.id = v.channel_id
		LEFT JOIN formats f ON f.id = vc.format_id
		WHERE vc.contributor_id = $1
		ORDER BY vc.video_id ASC
		LIMIT $2 OFFSET $3`, contributorID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("query my videos: %w", err)
	}
	defer rows.Close()

	out := []model.MyVideo{}
	for rows.Next() {
		var v model.MyVideo
		if err := rows.Scan(&v.ID, &v.Title, &v.ChannelID, &v.ChannelTitle, &v.FormatID, &v.Filesize); err != nil {
			return nil, fmt.Errorf("scan my video: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MyChannels lists the contributor's own channel contributions.
func (r *QueryRepo) MyChannels(ctx context.Context, q db.Querier, contributorID int64, page model.Page) ([]model.MyChannel, error) {
	rows, err := q.Query(ctx, `
		SELECT c.channel_id, `+channelTitleOf("c.id")+`, cc.note
		FROM channel_contributions cc
		JOIN channels c ON c.id = cc.channel_id
		WHERE cc.contributor_id = $1
		ORDER BY cc.channel_id ASC
		LIMIT $2 OFFSET $3`, contributorID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("query my channels: %w", err)
	}
	defer rows.Close()

	out := []model.MyChannel{}
	for rows.Next() {
		var c model.MyChannel
		if err := rows.Scan(&c.ChannelID, &c.ChannelTitle, &c.Note); err != nil {
			return nil, fmt.Errorf("scan my channel: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChannelsOfVideos returns the distinct canonical channel IDs of the given videos.
func (r *QueryRepo) ChannelsOfVideos(ctx context.Context, q db.Querier, videoIDs []string) ([]string, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	return collectStrings(ctx, q, `
		SELECT DISTINCT c.channel_id
		FROM videos v
		JOIN channels c ON c.id = v.channel_id
		WHERE v.video_id = ANY($1::text[])`, videoIDs)
}
