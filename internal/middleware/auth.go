package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

const principalKey = "principal"

// CredentialResolver turns a raw Authorization value into a principal.
type CredentialResolver interface {
	Resolve(ctx context.Context, token string) (model.Principal, error)
}

// Authenticate resolves the request credential once and stores the principal
// for the rest of the chain.
func Authenticate(resolver CredentialResolver) fiber.Handler {
	return func(c fiber.Ctx) error {
		p, err := resolver.Resolve(c.Context(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return WriteError(c, err)
		}
		SetPrincipal(c, p)
		return c.Next()
	}
}

// Require rejects requests whose principal lacks want.
func Require(want model.Capability) fiber.Handler {
	return func(c fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok || !p.Caps.Has(want) {
			return WriteError(c, apperr.Unauthorized("insufficient permissions"))
		}
		return c.Next()
	}
}

// RequireContributor rejects application credentials on self-scoped routes.
func RequireContributor() fiber.Handler {
	return func(c fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return WriteError(c, apperr.Unauthorized("insufficient permissions"))
		}
		if _, ok := p.Contributor(); !ok {
			return WriteError(c, apperr.Unauthorized("credential does not belong to a contributor"))
		}
		return c.Next()
	}
}

// SetPrincipal attaches p to the request.
func SetPrincipal(c fiber.Ctx, p model.Principal) {
	c.Locals(principalKey, p)
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c fiber.Ctx) (model.Principal, bool) {
	p, ok := c.Locals(principalKey).(model.Principal)
	return p, ok
}

// ContributorID returns the acting contributor. Only valid behind
// RequireContributor.
func ContributorID(c fiber.Ctx) int64 {
	p, _ := PrincipalFrom(c)
	id, _ := p.Contributor()
	return id
}
