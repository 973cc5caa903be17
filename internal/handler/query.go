package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/DYArchive/distributed-youtube-tracker/internal/middleware"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

// Querier is the read side the query handlers need.
type Querier interface {
	Video(ctx context.Context, ref string) (*model.VideoResponse, error)
	ChannelMaintainers(ctx context.Context, ref string) (*model.ChannelMaintainersResponse, error)
	ChannelVideos(ctx context.Context, ref string, page model.Page) (*model.ChannelVideosResponse, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

type QueryHandler struct {
	svc Querier
}

func NewQueryHandler(svc Querier) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// Video handles GET /api/video/*. A ?v= query parameter takes precedence
// over the path.
func (h *QueryHandler) Video(c fiber.Ctx) error {
	ref := fiber.Query[string](c, "v")
	if ref == "" {
		ref = refParam(c)
	}

	resp, err := h.svc.Video(c.Context(), ref)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// ChannelMaintainers handles GET /api/channelmaintainers/*
func (h *QueryHandler) ChannelMaintainers(c fiber.Ctx) error {
	resp, err := h.svc.ChannelMaintainers(c.Context(), refParam(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// ChannelVideos handles GET /api/channelvideos/*?limit=&offset=
func (h *QueryHandler) ChannelVideos(c fiber.Ctx) error {
	resp, err := h.svc.ChannelVideos(c.Context(), refParam(c), pageParams(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(resp)
}

// Stats handles GET /api/stats
func (h *QueryHandler) Stats(c fiber.Ctx) error {
	stats, err := h.svc.Stats(c.Context())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(stats)
}
