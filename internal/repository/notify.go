package repository

import (
	"context"
	"fmt"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
)

// LedgerChannel is the LISTEN/NOTIFY channel for contribution changes.
const LedgerChannel = "ledger_changes"

// Notification payload prefixes.
const (
	VideoKeyPrefix   = "v:"
	ChannelKeyPrefix = "c:"
)

// NotifyLedgerChanges queues one notification per key. Inside a
// transaction they are delivered on commit, and duplicates collapse.
func NotifyLedgerChanges(ctx context.Context, q db.Querier, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, part := range Chunk(keys, MaxStatementRows) {
		_, err := q.Exec(ctx, `SELECT pg_notify($1, k) FROM unnest($2::text[]) AS k`, LedgerChannel, part)
		if err != nil {
			return fmt.Errorf("notify ledger changes: %w", err)
		}
	}
	return nil
}

// VideoKeys builds notification payloads for canonical video IDs.
func VideoKeys(ids ...string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = VideoKeyPrefix + id
	}
	return out
}

// ChannelKeys builds notification payloads for canonical channel IDs.
func ChannelKeys(ids ...string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = ChannelKeyPrefix + id
	}
	return out
}
