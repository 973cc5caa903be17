package middleware

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/hash"
)

// Logger is the package-level zerolog logger used for request logs.
var Logger zerolog.Logger

// InitLogger sets up structured JSON logging for the process. Level is parsed
// from the given string (e.g. "debug", "info", "warn", "error"). The zerolog
// global logger is replaced too, so services logging through
// github.com/rs/zerolog/log share the same output and fields.
func InitLogger(level, service string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()
	log.Logger = Logger
}

// sanitizePath collapses identifier segments so channel and video refs never
// reach the logs verbatim.
func sanitizePath(path string) string {
	return metrics.SanitizeEndpoint(path)
}

// NewRequestLogger logs each request as structured JSON. Raw IPs and
// credentials are fingerprinted.
func NewRequestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		evt := Logger.Info()
		if status >= 500 {
			evt = Logger.Error()
		} else if status >= 400 {
			evt = Logger.Warn()
		}

		evt.
			Str("request_id", RequestID(c)).
			Str("method", c.Method()).
			Str("path", sanitizePath(c.Path())).
			Int("status", status).
			Dur("duration_ms", duration).
			Str("ip_hash", hash.Fingerprint(c.IP())).
			Int("bytes_sent", len(c.Response().Body()))
		if p, ok := PrincipalFrom(c); ok {
			evt.Int64("credential", p.CredentialID)
		}
		evt.Msg("request")

		return err
	}
}
