package service

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

type ContributorService struct {
	pool  Pool
	store *repository.Store
}

func NewContributorService(pool Pool, store *repository.Store) *ContributorService {
	return &ContributorService{pool: pool, store: store}
}

// Signup registers a contributor. A discord_id that is already registered
// yields CONFLICT.
func (s *ContributorService) Signup(ctx context.Context, req model.SignupRequest) (*model.Contributor, error) {
	nc, err := ValidateSignup(req)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Contributors.Create(ctx, s.pool, nc)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("contributor already exists")
		}
		return nil, storageErr(err)
	}

	log.Info().Int64("contributor", c.ID).Int64("discord_id", c.DiscordID).Msg("contributor: signed up")
	return c, nil
}

// FindByDiscordID returns NOT_FOUND for unknown identities.
func (s *ContributorService) FindByDiscordID(ctx context.Context, discordID int64) (*model.Contributor, error) {
	c, err := s.store.Contributors.FindByDiscordID(ctx, s.pool, discordID)
	if err != nil {
		return nil, notFoundOr(err, "contributor not found")
	}
	return c, nil
}

// ValidateSignup checks presence, types and bounds of a signup body.
func ValidateSignup(req model.SignupRequest) (model.NewContributor, error) {
	switch {
	case req.Name == nil:
		return model.NewContributor{}, apperr.MalformedPayload("name cannot be null")
	case req.DiscordID == nil:
		return model.NewContributor{}, apperr.MalformedPayload("discord_id cannot be null")
	case req.AllowChannelQueries == nil:
		return model.NewContributor{}, apperr.MalformedPayload("allow_channel_queries cannot be null")
	case req.AllowStatsQueries == nil:
		return model.NewContributor{}, apperr.MalformedPayload("allow_stats_queries cannot be null")
	}

	name := strings.TrimSpace(*req.Name)
	if name == "" || utf8.RuneCountInString(name) > model.MaxContributorNameLen {
		return model.NewContributor{}, apperr.MalformedPayload("name must be 1-60 characters")
	}
	if *req.DiscordID <= 0 {
		return model.NewContributor{}, apperr.MalformedPayload("discord_id must be a positive integer")
	}

	var contact json.RawMessage
	if trimmed := strings.TrimSpace(string(req.ContactInfo)); trimmed != "" && trimmed != "null" {
		var obj map[string]any
		if err := json.Unmarshal(req.ContactInfo, &obj); err != nil {
			return model.NewContributor{}, apperr.MalformedPayload("contact_info must be an object")
		}
		contact = req.ContactInfo
	}

	return model.NewContributor{
		Name:                name,
		DiscordID:           *req.DiscordID,
		AllowChannelQueries: *req.AllowChannelQueries,
		AllowStatsQueries:   *req.AllowStatsQueries,
		ContactInfo:         contact,
	}, nil
}
