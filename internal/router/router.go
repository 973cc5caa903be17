package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/DYArchive/distributed-youtube-tracker/internal/handler"
	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/internal/middleware"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Query        *handler.QueryHandler
	Contribution *handler.ContributionHandler
	Contributor  *handler.ContributorHandler
	Health       *handler.HealthHandler
}

// Options carries the request gates shared by every API route.
type Options struct {
	CORSOrigins    string
	Resolver       middleware.CredentialResolver
	DefaultLimiter *middleware.RateLimiter
	StrictLimiter  *middleware.RateLimiter
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
// Each API route runs limiter, then credential resolution, then its capability check.
func Setup(app *fiber.App, h *Handlers, opts Options) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestID())
	app.Use(middleware.NewRequestLogger())
	app.Use(metrics.Middleware())
	app.Use(middleware.NewCORS(opts.CORSOrigins))

	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", metrics.Handler())

	def := opts.DefaultLimiter.Handler()
	strict := opts.StrictLimiter.Handler()
	auth := middleware.Authenticate(opts.Resolver)
	self := middleware.RequireContributor()
	submit := middleware.Require(model.CapSubmitContributions)

	api := app.Group("/api")

	// Third-party reads
	api.Get("/video/*", def, auth, middleware.Require(model.CapQueryVideo), h.Query.Video)
	api.Get("/channelmaintainers/*", def, auth, middleware.Require(model.CapQueryChannelMaintainers), h.Query.ChannelMaintainers)
	api.Get("/channelvideos/*", def, auth, middleware.Require(model.CapQueryChannelVideos), h.Query.ChannelVideos)
	api.Get("/stats", def, auth, middleware.Require(model.CapQueryStats), h.Query.Stats)

	// Self-scoped contributions
	api.Post("/submit_channels", def, auth, submit, self, h.Contribution.SubmitChannels)
	api.Post("/submit_videos", def, auth, submit, self, h.Contribution.SubmitVideos)
	api.Get("/my_channels", def, auth, submit, self, h.Contribution.MyChannels)
	api.Get("/my_videos", def, auth, submit, self, h.Contribution.MyVideos)
	api.Delete("/my_channels/*", def, auth, submit, self, h.Contribution.RemoveChannel)
	api.Delete("/my_videos/*", def, auth, submit, self, h.Contribution.RemoveVideo)
	api.Post("/delete_all", strict, auth, submit, self, h.Contribution.DeleteAll)
	api.Post("/delete_account", strict, auth, submit, self, h.Contribution.DeleteAll)

	// Bot-only account management
	api.Post("/signup", strict, auth, middleware.Require(model.CapCreateContributor), h.Contributor.Signup)
	api.Get("/authorize/:discordId", strict, auth, middleware.Require(model.CapIssueCredentials), h.Contributor.Authorize)
}
