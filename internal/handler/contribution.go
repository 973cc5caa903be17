package handler

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"github.com/DYArchive/distributed-youtube-tracker/internal/middleware"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

type Submitter interface {
	SubmitChannels(ctx context.Context, contributorID int64, body []byte) (*model.SubmitResponse, error)
	SubmitVideos(ctx context.Context, contributorID int64, body []byte) (*model.SubmitResponse, error)
}

type SelfQuerier interface {
	MyVideos(ctx context.Context, contributorID int64, page model.Page) (*model.MyVideosResponse, error)
	MyChannels(ctx context.Context, contributorID int64, page model.Page) (*model.MyChannelsResponse, error)
}

type Ledger interface {
	RemoveVideo(ctx context.Context, contributorID int64, ref string) (bool, error)
	RemoveChannel(ctx context.Context, contributorID int64, ref string) (bool, error)
	Purge(ctx context.Context, contributorID int64, confirm bool) (model.PurgeResult, error)
}

// ContributionHandler serves the self-scoped routes. Every route sits behind
// middleware.RequireContributor.
type ContributionHandler struct {
	submissions Submitter
	queries     SelfQuerier
	ledger      Ledger
}

func NewContributionHandler(submissions Submitter, queries SelfQuerier, ledger Ledger) *ContributionHandler {
	return &ContributionHandler{submissions: submissions, queries: queries, ledger: ledger}
}

// SubmitChannels handles POST /api/submit_channels
func (h *ContributionHandler) SubmitChannels(c fiber.Ctx) error {
	resp, err := h.submissions.SubmitChannels(c.Context(), middleware.ContributorID(c), c.Body())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// SubmitVideos handles POST /api/submit_videos
func (h *ContributionHandler) SubmitVideos(c fiber.Ctx) error {
	resp, err := h.submissions.SubmitVideos(c.Context(), middleware.ContributorID(c), c.Body())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// MyVideos handles GET /api/my_videos
func (h *ContributionHandler) MyVideos(c fiber.Ctx) error {
	resp, err := h.queries.MyVideos(c.Context(), middleware.ContributorID(c), pageParams(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// MyChannels handles GET /api/my_channels
func (h *ContributionHandler) MyChannels(c fiber.Ctx) error {
	resp, err := h.queries.MyChannels(c.Context(), middleware.ContributorID(c), pageParams(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// RemoveVideo handles DELETE /api/my_videos/*. Removing an edge the caller
// does not own succeeds with removed=false.
func (h *ContributionHandler) RemoveVideo(c fiber.Ctx) error {
	removed, err := h.ledger.RemoveVideo(c.Context(), middleware.ContributorID(c), refParam(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(model.RemovalResponse{Success: true, Removed: removed})
}

// RemoveChannel handles DELETE /api/my_channels/*
func (h *ContributionHandler) RemoveChannel(c fiber.Ctx) error {
	removed, err := h.ledger.RemoveChannel(c.Context(), middleware.ContributorID(c), refParam(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(model.RemovalResponse{Success: true, Removed: removed})
}

type purgeRequest struct {
	Confirm json.RawMessage `json:"confirm"`
}

// DeleteAll handles POST /api/delete_all with body {"confirm": true}. Any
// other confirm value, including "true" as a string, is refused.
func (h *ContributionHandler) DeleteAll(c fiber.Ctx) error {
	var req purgeRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return middleware.WriteError(c, apperr.MalformedPayload("malformed body"))
	}
	confirm := string(req.Confirm) == "true"

	result, err := h.ledger.Purge(c.Context(), middleware.ContributorID(c), confirm)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":                       true,
		"video_contributions_removed":   result.VideoEdges,
		"channel_contributions_removed": result.ChannelEdges,
	})
}
