package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/hash"
)

// AuthService resolves credentials to principals and issues new ones.
type AuthService struct {
	pool  Pool
	store *repository.Store
}

func NewAuthService(pool Pool, store *repository.Store) *AuthService {
	return &AuthService{pool: pool, store: store}
}

// Resolve maps a bearer token to its principal. Missing and unknown tokens
// are both UNAUTHORIZED.
func (s *AuthService) Resolve(ctx context.Context, token string) (model.Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return model.Principal{}, apperr.Unauthorized("missing credential")
	}
	p, err := s.store.Credentials.Resolve(ctx, s.pool, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Principal{}, apperr.Unauthorized("insufficient permissions")
		}
		return model.Principal{}, storageErr(err)
	}
	return p, nil
}

// ContributorApplication names the credential issued to a contributor.
func ContributorApplication(discordID int64) string {
	return fmt.Sprintf("discord_user_%d", discordID)
}

// Authorize returns the contributor's credential, creating it on first use.
// Repeated calls return the same key.
func (s *AuthService) Authorize(ctx context.Context, discordID int64) (*model.AuthorizeResponse, error) {
	c, err := s.store.Contributors.FindByDiscordID(ctx, s.pool, discordID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Forbidden("user does not exist")
		}
		return nil, storageErr(err)
	}

	token, err := hash.RandomToken(hash.TokenLength)
	if err != nil {
		return nil, storageErr(err)
	}
	key, err := s.store.Credentials.EnsureForContributor(ctx, s.pool, ContributorApplication(discordID), token, c.ID, model.ContributorCaps)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("contributor already holds a credential under another application")
		}
		return nil, storageErr(err)
	}

	return &model.AuthorizeResponse{Key: key, Scope: model.ContributorCaps.Scope()}, nil
}

// CreateCredential creates or rotates an application credential and returns
// the new token. contributorID may be nil for service credentials.
func (s *AuthService) CreateCredential(ctx context.Context, application string, contributorID *int64, caps model.Capability) (string, error) {
	application = strings.TrimSpace(application)
	if application == "" {
		return "", apperr.MalformedPayload("application is required")
	}
	if caps == 0 {
		return "", apperr.MalformedPayload("at least one capability is required")
	}

	token, err := hash.RandomToken(hash.TokenLength)
	if err != nil {
		return "", err
	}
	id, err := s.store.Credentials.Put(ctx, s.pool, application, token, contributorID, caps)
	if err != nil {
		return "", storageErr(err)
	}

	log.Info().
		Int64("credential", id).
		Str("application", application).
		Str("caps", caps.String()).
		Str("fingerprint", hash.Fingerprint(token)).
		Msg("auth: credential issued")
	return token, nil
}
