package repository

import (
	"context"
	"fmt"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

type CredentialRepo struct{}

func NewCredentialRepo() *CredentialRepo {
	return &CredentialRepo{}
}

// Resolve looks up a token. Returns pgx.ErrNoRows for unknown tokens.
func (r *CredentialRepo) Resolve(ctx context.Context, q db.Querier, token string) (model.Principal, error) {
	var (
		p    model.Principal
		caps int32
	)
	err := q.QueryRow(ctx, `
		SELECT id, application, contributor_id, capabilities
		FROM credentials WHERE token = $1`, token).
		Scan(&p.CredentialID, &p.Application, &p.ContributorID, &caps)
	if err != nil {
		return model.Principal{}, err
	}
	p.Caps = model.Capability(caps)
	return p, nil
}

// EnsureForContributor returns the contributor's credential, creating it
// with token when none exists. Capabilities only ever widen.
func (r *CredentialRepo) EnsureForContributor(ctx context.Context, q db.Querier, application, token string, contributorID int64, caps model.Capability) (string, error) {
	var stored string
	err := q.QueryRow(ctx, `
		INSERT INTO credentials (application, token, contributor_id, capabilities)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (application) DO UPDATE
		SET capabilities = credentials.capabilities | EXCLUDED.capabilities
		RETURNING token`,
		application, token, contributorID, int32(caps)).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("ensure credential: %w", err)
	}
	return stored, nil
}

// Put creates or rotates an application credential.
func (r *CredentialRepo) Put(ctx context.Context, q db.Querier, application, token string, contributorID *int64, caps model.Capability) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO credentials (application, token, contributor_id, capabilities)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (application) DO UPDATE
		SET token = EXCLUDED.token,
		    contributor_id = EXCLUDED.contributor_id,
		    capabilities = EXCLUDED.capabilities
		RETURNING id`,
		application, token, contributorID, int32(caps)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("put credential: %w", err)
	}
	return id, nil
}
