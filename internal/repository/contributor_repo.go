package repository

import (
	"context"
	"fmt"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

type ContributorRepo struct{}

func NewContributorRepo() *ContributorRepo {
	return &ContributorRepo{}
}

const contributorColumns = `
	id, name, discord_id, allow_channel_queries, allow_stats_queries, verified,
	contact_info, videos_last_updated, channels_last_updated, created_at`

// Create inserts a contributor. A taken discord_id surfaces as a unique violation.
func (r *ContributorRepo) Create(ctx context.Context, q db.Querier, c model.NewContributor) (*model.Contributor, error) {
	var contact any
	if len(c.ContactInfo) > 0 {
		contact = string(c.ContactInfo)
	}

	row := q.QueryRow(ctx, `
		INSERT INTO contributors (name, discord_id, allow_channel_queries, allow_stats_queries, contact_info)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING `+contributorColumns,
		c.Name, c.DiscordID, c.AllowChannelQueries, c.AllowStatsQueries, contact)

	out, err := scanContributor(row)
	if err != nil {
		return nil, fmt.Errorf("insert contributor: %w", err)
	}
	return out, nil
}

// FindByDiscordID returns pgx.ErrNoRows when no contributor has the id.
func (r *ContributorRepo) FindByDiscordID(ctx context.Context, q db.Querier, discordID int64) (*model.Contributor, error) {
	row := q.QueryRow(ctx, `SELECT `+contributorColumns+` FROM contributors WHERE discord_id = $1`, discordID)
	return scanContributor(row)
}

// TouchLastUpdated stamps when the contributor last reconciled videos or channels.
func (r *ContributorRepo) TouchLastUpdated(ctx context.Context, q db.Querier, id int64, mode model.Mode) error {
	column := "channels_last_updated"
	if mode == model.ModeVideosAndChannels {
		column = "videos_last_updated"
	}
	_, err := q.Exec(ctx, `UPDATE contributors SET `+column+` = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch %s: %w", column, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContributor(row rowScanner) (*model.Contributor, error) {
	var (
		c       model.Contributor
		contact []byte
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.DiscordID, &c.AllowChannelQueries, &c.AllowStatsQueries, &c.Verified,
		&contact, &c.VideosLastUpdated, &c.ChannelsLastUpdated, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(contact) > 0 {
		c.ContactInfo = contact
	}
	return &c, nil
}
