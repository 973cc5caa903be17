package repository

import (
	"context"
	"fmt"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

type StatsRepo struct{}

func NewStatsRepo() *StatsRepo {
	return &StatsRepo{}
}

// Compute counts entities and the contributions of contributors who allow
// stats queries.
func (r *StatsRepo) Compute(ctx context.Context, q db.Querier) (model.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM channels) AS channels,
			(SELECT COUNT(*) FROM videos) AS videos,
			(SELECT COUNT(*) FROM contributors WHERE allow_stats_queries) AS contributors,
			(SELECT COUNT(*) FROM video_contributions vc
				JOIN contributors ct ON ct.id = vc.contributor_id
				WHERE ct.allow_stats_queries) AS video_contributions,
			(SELECT COUNT(*) FROM channel_contributions cc
				JOIN contributors ct ON ct.id = cc.contributor_id
				WHERE ct.allow_stats_queries) AS channel_contributions,
			(SELECT COALESCE(SUM(vc.filesize), 0)::bigint FROM video_contributions vc
				JOIN contributors ct ON ct.id = vc.contributor_id
				WHERE ct.allow_stats_queries) AS total_filesize,
			NOW()`

	var s model.Stats
	err := q.QueryRow(ctx, query).Scan(
		&s.Channels, &s.Videos, &s.Contributors,
		&s.VideoContributions, &s.ChannelContributions, &s.TotalFilesize,
		&s.GeneratedAt,
	)
	if err != nil {
		return model.Stats{}, fmt.Errorf("compute stats: %w", err)
	}
	return s, nil
}
