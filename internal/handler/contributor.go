package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/DYArchive/distributed-youtube-tracker/internal/middleware"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

type Registrar interface {
	Signup(ctx context.Context, req model.SignupRequest) (*model.Contributor, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, discordID int64) (*model.AuthorizeResponse, error)
}

// ContributorHandler serves the privileged routes the chat bot calls.
type ContributorHandler struct {
	contributors Registrar
	auth         Authorizer
}

func NewContributorHandler(contributors Registrar, auth Authorizer) *ContributorHandler {
	return &ContributorHandler{contributors: contributors, auth: auth}
}

// Signup handles POST /api/signup
func (h *ContributorHandler) Signup(c fiber.Ctx) error {
	var req model.SignupRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return middleware.WriteError(c, apperr.MalformedPayload(signupDecodeMessage(err)))
	}

	contributor, err := h.contributors.Signup(c.Context(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(contributor)
}

func signupDecodeMessage(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return te.Field + " cannot be type " + te.Value
	}
	return "malformed body"
}

// Authorize handles GET /api/authorize/:discordId
func (h *ContributorHandler) Authorize(c fiber.Ctx) error {
	discordID, err := strconv.ParseInt(c.Params("discordId"), 10, 64)
	if err != nil || discordID <= 0 {
		return middleware.WriteError(c, apperr.MalformedPayload("discord id must be a positive integer"))
	}

	resp, err := h.auth.Authorize(c.Context(), discordID)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}
