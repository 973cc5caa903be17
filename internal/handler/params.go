package handler

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

// refParam returns the identifier reference from a wildcard route. Refs may
// be full URLs, so collapsed scheme slashes and a watch?v= query are put back.
func refParam(c fiber.Ctx) string {
	ref := c.Params("*")
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	for _, scheme := range []string{"https:/", "http:/"} {
		if strings.HasPrefix(ref, scheme) && !strings.HasPrefix(ref, scheme+"/") {
			ref = scheme + "/" + ref[len(scheme):]
			break
		}
	}
	if strings.HasSuffix(ref, "watch") {
		if q := c.Request().URI().QueryString(); len(q) > 0 {
			ref += "?" + string(q)
		}
	}
	return ref
}

// pageParams reads limit and offset. Out-of-range values are clamped.
func pageParams(c fiber.Ctx) model.Page {
	limit := fiber.Query[int](c, "limit", model.DefaultPageLimit)
	offset := fiber.Query[int](c, "offset", 0)
	return model.NewPage(limit, offset)
}
