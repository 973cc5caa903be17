package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
)

// MaxFormatLen matches formats.format_string VARCHAR(255).
const MaxFormatLen = 255

type FormatRepo struct{}

func NewFormatRepo() *FormatRepo {
	return &FormatRepo{}
}

// TruncateFormat cuts a format descriptor to the stored length on a rune boundary.
func TruncateFormat(s string) string {
	r := []rune(s)
	if len(r) <= MaxFormatLen {
		return s
	}
	return string(r[:MaxFormatLen])
}

// Upsert stores format strings and returns their surrogate keys, keyed by
// the truncated string.
func (r *FormatRepo) Upsert(ctx context.Context, q db.Querier, formats []string) (map[string]int64, error) {
	unique := make([]string, 0, len(formats))
	for _, f := range formats {
		if f != "" {
			unique = append(unique, TruncateFormat(f))
		}
	}
	slices.Sort(unique)
	unique = slices.Compact(unique)

	out := make(map[string]int64, len(unique))
	for _, part := range Chunk(unique, MaxStatementRows) {
		_, err := q.Exec(ctx, `
			INSERT INTO formats (format_string)
			SELECT unnest($1::text[])
			ON CONFLICT (format_string) DO NOTHING`, part)
		if err != nil {
			return nil, fmt.Errorf("insert formats: %w", err)
		}

		rows, err := q.Query(ctx, `
			SELECT id, format_string FROM formats WHERE format_string = ANY($1::text[])`, part)
		if err != nil {
			return nil, fmt.Errorf("resolve formats: %w", err)
		}
		for rows.Next() {
			var (
				id int64
				fs string
			)
			if err := rows.Scan(&id, &fs); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan format: %w", err)
			}
			out[fs] = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("resolve formats: %w", err)
		}
	}
	return out, nil
}
