package repository

import (
	"context"
	"fmt"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

// ContributionRepo is the contributor-to-video and contributor-to-channel
// ledger. Every delete is scoped to the owning contributor in SQL.
type ContributionRepo struct{}

func NewContributionRepo() *ContributionRepo {
	return &ContributionRepo{}
}

// AddVideoContributions inserts edges, leaving existing ones untouched.
// Returns how many edges were new.
func (r *ContributionRepo) AddVideoContributions(ctx context.Context, q db.Querier, contributorID int64, edges []model.VideoEdge) (int64, error) {
	var inserted int64
	for _, part := range Chunk(edges, MaxStatementRows) {
		videos := make([]int64, len(part))
		formats := make([]*int64, len(part))
		sizes := make([]*int64, len(part))
		for i, e := range part {
			videos[i] = e.VideoID
			formats[i] = e.FormatID
			sizes[i] = e.Filesize
		}

		tag, err := q.Exec(ctx, `
			INSERT INTO video_contributions (video_id, contributor_id, format_id, filesize)
			SELECT e.video_id, $1, e.format_id, e.filesize
			FROM unnest($2::bigint[], $3::bigint[], $4::bigint[]) AS e (video_id, format_id, filesize)
			ON CONFLICT (video_id, contributor_id) DO NOTHING`,
			contributorID, videos, formats, sizes)
		if err != nil {
			return inserted, fmt.Errorf("insert video contributions: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// AddChannelContributions inserts channel edges, leaving existing ones untouched.
func (r *ContributionRepo) AddChannelContributions(ctx context.Context, q db.Querier, contributorID int64, edges []model.ChannelEdge) (int64, error) {
	var inserted int64
	for _, part := range Chunk(edges, MaxStatementRows) {
		channels := make([]int64, len(part))
		notes := make([]*string, len(part))
		for i, e := range part {
			channels[i] = e.ChannelID
			notes[i] = e.Note
		}

		tag, err := q.Exec(ctx, `
			INSERT INTO channel_contributions (channel_id, contributor_id, note)
			SELECT e.channel_id, $1, e.note
			FROM unnest($2::bigint[], $3::text[]) AS e (channel_id, note)
			ON CONFLICT (channel_id, contributor_id) DO NOTHING`,
			contributorID, channels, notes)
		if err != nil {
			return inserted, fmt.Errorf("insert channel contributions: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// RemoveVideoContribution deletes the contributor's own edge for a video.
// Another contributor's edge for the same video is never matched.
func (r *ContributionRepo) RemoveVideoContribution(ctx context.Context, q db.Querier, videoID ytid.VideoID, contributorID int64) (bool, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM video_contributions vc
		USING videos v
		WHERE vc.video_id = v.id
		  AND v.video_id = $1
		  AND vc.contributor_id = $2`,
		string(videoID), contributorID)
	if err != nil {
		return false, fmt.Errorf("delete video contribution: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveChannelContribution deletes the contributor's own edge for a channel.
func (r *ContributionRepo) RemoveChannelContribution(ctx context.Context, q db.Querier, channelID ytid.ChannelID, contributorID int64) (bool, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM channel_contributions cc
		USING channels c
		WHERE cc.channel_id = c.id
		  AND c.channel_id = $1
		  AND cc.contributor_id = $2`,
		string(channelID), contributorID)
	if err != nil {
		return false, fmt.Errorf("delete channel contribution: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PurgeContributor deletes every edge the contributor owns in both ledgers.
// Run it inside one transaction.
func (r *ContributionRepo) PurgeContributor(ctx context.Context, q db.Querier, contributorID int64) (model.PurgeResult, error) {
	var res model.PurgeResult

	videos, err := collectStrings(ctx, q, `
		WITH removed AS (
			DELETE FROM video_contributions WHERE contributor_id = $1 RETURNING video_id
		)
		SELECT v.video_id FROM removed JOIN videos v ON v.id = removed.video_id`,
		contributorID)
	if err != nil {
		return res, fmt.Errorf("purge video contributions: %w", err)
	}

	channels, err := collectStrings(ctx, q, `
		WITH removed AS (
			DELETE FROM channel_contributions WHERE contributor_id = $1 RETURNING channel_id
		)
		SELECT c.channel_id FROM removed JOIN channels c ON c.id = removed.channel_id`,
		contributorID)
	if err != nil {
		return res, fmt.Errorf("purge channel contributions: %w", err)
	}

	res.Videos = videos
	res.Channels = channels
	res.VideoEdges = int64(len(videos))
	res.ChannelEdges = int64(len(channels))
	return res, nil
}

func collectStrings(ctx context.Context, q db.Querier, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
