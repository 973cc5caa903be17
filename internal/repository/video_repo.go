package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

// VideoRow is the upsertable part of a video. ChannelRef is the channel
// surrogate key, nil when unknown.
type VideoRow struct {
	VideoID    ytid.VideoID
	ChannelRef *int64
}

type VideoRepo struct{}

func NewVideoRepo() *VideoRepo {
	return &VideoRepo{}
}

// Upsert inserts videos and fills in a missing channel reference. An
// existing channel reference is never replaced by null.
func (r *VideoRepo) Upsert(ctx context.Context, q db.Querier, rows []VideoRow) (map[ytid.VideoID]int64, error) {
	rows = mergeVideoRows(rows)

	out := make(map[ytid.VideoID]int64, len(rows))
	for _, part := range Chunk(rows, MaxStatementRows) {
		ids := make([]string, len(part))
		channels := make([]*int64, len(part))
		for i, row := range part {
			ids[i] = string(row.VideoID)
			channels[i] = row.ChannelRef
		}

		_, err := q.Exec(ctx, `
			INSERT INTO videos (video_id, channel_id)
			SELECT v.video_id, v.channel_id
			FROM unnest($1::text[], $2::bigint[]) AS v (video_id, channel_id)
			ON CONFLICT (video_id) DO UPDATE
			SET channel_id = COALESCE(EXCLUDED.channel_id, videos.channel_id)
			WHERE EXCLUDED.channel_id IS NOT NULL
			  AND videos.channel_id IS DISTINCT FROM EXCLUDED.channel_id`,
			ids, channels)
		if err != nil {
			return nil, fmt.Errorf("upsert videos: %w", err)
		}

		if err := r.resolveInto(ctx, q, ids, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *VideoRepo) resolveInto(ctx context.Context, q db.Querier, ids []string, out map[ytid.VideoID]int64) error {
	rows, err := q.Query(ctx, `
		SELECT id, video_id FROM videos WHERE video_id = ANY($1::text[])`, ids)
	if err != nil {
		return fmt.Errorf("resolve videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			vid string
		)
		if err := rows.Scan(&id, &vid); err != nil {
			return fmt.Errorf("scan video: %w", err)
		}
		out[ytid.VideoID(vid)] = id
	}
	return rows.Err()
}

// mergeVideoRows collapses duplicate IDs, keeping the last non-null channel,
// and sorts by ID. One INSERT ... ON CONFLICT DO UPDATE may not touch the
// same row twice.
func mergeVideoRows(rows []VideoRow) []VideoRow {
	byID := make(map[ytid.VideoID]VideoRow, len(rows))
	for _, row := range rows {
		prev, ok := byID[row.VideoID]
		if ok && row.ChannelRef == nil {
			row.ChannelRef = prev.ChannelRef
		}
		byID[row.VideoID] = row
	}
	out := make([]VideoRow, 0, len(byID))
	for _, row := range byID {
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b VideoRow) int {
		return strings.Compare(string(a.VideoID), string(b.VideoID))
	})
	return out
}
