package repository

import (
	"context"
	"fmt"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

// TitleRepo appends title history. Titles are never updated; the current
// title is the newest row.
type TitleRepo struct{}

func NewTitleRepo() *TitleRepo {
	return &TitleRepo{}
}

// AppendVideoTitles records titles with the transaction timestamp.
func (r *TitleRepo) AppendVideoTitles(ctx context.Context, q db.Querier, contributorID int64, rows []model.TitleRow) (int64, error) {
	return r.append(ctx, q, `
		INSERT INTO video_titles (video_id, contributor_id, title)
		SELECT t.target_id, $1, t.title
		FROM unnest($2::bigint[], $3::text[]) AS t (target_id, title)
		ON CONFLICT (video_id, title, time_added) DO NOTHING`,
		contributorID, rows)
}

// AppendChannelTitles records titles with the transaction timestamp.
func (r *TitleRepo) AppendChannelTitles(ctx context.Context, q db.Querier, contributorID int64, rows []model.TitleRow) (int64, error) {
	return r.append(ctx, q, `
		INSERT INTO channel_titles (channel_id, contributor_id, title)
		SELECT t.target_id, $1, t.title
		FROM unnest($2::bigint[], $3::text[]) AS t (target_id, title)
		ON CONFLICT (channel_id, title, time_added) DO NOTHING`,
		contributorID, rows)
}

func (r *TitleRepo) append(ctx context.Context, q db.Querier, sql string, contributorID int64, rows []model.TitleRow) (int64, error) {
	var inserted int64
	for _, part := range Chunk(rows, MaxStatementRows) {
		targets := make([]int64, len(part))
		titles := make([]string, len(part))
		for i, row := range part {
			targets[i] = row.TargetID
			titles[i] = row.Title
		}
		tag, err := q.Exec(ctx, sql, contributorID, targets, titles)
		if err != nil {
			return inserted, fmt.Errorf("append titles: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
