package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

type stubResolver map[string]model.Principal

func (s stubResolver) Resolve(_ context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, apperr.Unauthorized("missing credential")
	}
	p, ok := s[token]
	if !ok {
		return model.Principal{}, apperr.Unauthorized("insufficient permissions")
	}
	return p, nil
}

func newAuthApp() *fiber.App {
	contributor := int64(7)
	resolver := stubResolver{
		"bot":  {CredentialID: 1, Application: "bot", Caps: model.CapCreateContributor | model.CapIssueCredentials},
		"user": {CredentialID: 2, Application: "discord_user_1", ContributorID: &contributor, Caps: model.ContributorCaps},
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api", Authenticate(resolver))
	api.Post("/signup", Require(model.CapCreateContributor), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	api.Get("/my_videos", Require(model.CapSubmitContributions), RequireContributor(), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"contributor": ContributorID(c)})
	})
	return app
}

func TestAuth_Gate(t *testing.T) {
	app := newAuthApp()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing credential", http.MethodGet, "/api/my_videos", "", fiber.StatusUnauthorized},
		{"unknown credential", http.MethodGet, "/api/my_videos", "nope", fiber.StatusUnauthorized},
		{"missing capability", http.MethodPost, "/api/signup", "user", fiber.StatusUnauthorized},
		{"application on self-scoped route", http.MethodGet, "/api/my_videos", "bot", fiber.StatusUnauthorized},
		{"privileged route", http.MethodPost, "/api/signup", "bot", fiber.StatusOK},
		{"contributor route", http.MethodGet, "/api/my_videos", "user", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
