package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

type ChannelRepo struct{}

func NewChannelRepo() *ChannelRepo {
	return &ChannelRepo{}
}

// Upsert inserts any unseen channel IDs and returns the surrogate key of
// every requested ID. Keys are looked up in a second pass because the
// canonical ID is the only stable key before insertion.
func (r *ChannelRepo) Upsert(ctx context.Context, q db.Querier, ids []ytid.ChannelID) (map[ytid.ChannelID]int64, error) {
	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	out := make(map[ytid.ChannelID]int64, len(unique))
	for _, part := range Chunk(unique, MaxStatementRows) {
		// Sorted input keeps concurrent upserts locking rows in the same order.
		_, err := q.Exec(ctx, `
			INSERT INTO channels (channel_id)
			SELECT unnest($1::text[])
			ON CONFLICT (channel_id) DO NOTHING`,
			ytid.ChannelStrings(part))
		if err != nil {
			return nil, fmt.Errorf("insert channels: %w", err)
		}

		if err := r.resolveInto(ctx, q, part, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ChannelRepo) resolveInto(ctx context.Context, q db.Querier, ids []ytid.ChannelID, out map[ytid.ChannelID]int64) error {
	rows, err := q.Query(ctx, `
		SELECT id, channel_id FROM channels WHERE channel_id = ANY($1::text[])`,
		ytid.ChannelStrings(ids))
	if err != nil {
		return fmt.Errorf("resolve channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			cid string
		)
		if err := rows.Scan(&id, &cid); err != nil {
			return fmt.Errorf("scan channel: %w", err)
		}
		out[ytid.ChannelID(cid)] = id
	}
	return rows.Err()
}
