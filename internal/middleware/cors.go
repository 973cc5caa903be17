package middleware

import (
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// NewCORS opens the API to browser dashboards. They may send the
// Authorization credential and read the rate limit and request ID headers.
//
// origins is a comma-separated allow list; empty or "*" allows any origin.
func NewCORS(origins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: allowedOrigins(origins),
		AllowMethods: []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodDelete, fiber.MethodOptions},
		AllowHeaders: []string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
			HeaderRequestID,
		},
		ExposeHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			fiber.HeaderRetryAfter,
			HeaderRequestID,
		},
		MaxAge: int((24 * time.Hour).Seconds()),
	})
}

func allowedOrigins(list string) []string {
	var out []string
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 || slices.Contains(out, "*") {
		return []string{"*"}
	}
	return out
}
