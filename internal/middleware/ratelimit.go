package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"

	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/hash"
)

// RateLimitConfig defines the limit for a specific route or group.
type RateLimitConfig struct {
	Name   string                   // Tier label for metrics
	Max    int                      // Requests allowed per window
	Window time.Duration            // Time for the bucket to refill completely
	KeyFn  func(c fiber.Ctx) string // Returns the key to rate limit on
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key. Idle buckets are dropped by a
// janitor goroutine that runs until Stop.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	config  RateLimitConfig
	every   rate.Limit

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFn == nil {
		cfg.KeyFn = KeyByCredential
	}
	rl := &RateLimiter{
		entries: make(map[string]*limiterEntry),
		config:  cfg,
		every:   rate.Every(cfg.Window / time.Duration(cfg.Max)),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup(5 * time.Minute)
	return rl
}

// Handler returns a Fiber middleware handler that enforces the rate limit.
// Each route gets its own budget: one limiter can guard several routes
// without one draining the other.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		allowed, remaining, retryAfter := rl.take(routeKey(c, rl.config.KeyFn(c)), time.Now())
		setRateLimitHeaders(c, rl.config.Max, remaining, time.Now().Add(rl.refillTime(remaining)))

		if !allowed {
			metrics.RateLimited.WithLabelValues(rl.config.Name).Inc()
			secs := int(math.Ceil(retryAfter.Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":       "RATE_LIMITED",
					"message":    fmt.Sprintf("Too many requests. Try again in %d seconds.", secs),
					"retryAfter": secs,
				},
			})
		}
		return c.Next()
	}
}

// Allow consumes one token for key and reports whether it was available.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _, _ := rl.take(key, time.Now())
	return allowed
}

func (rl *RateLimiter) take(key string, now time.Time) (allowed bool, remaining int, retryAfter time.Duration) {
	rl.mu.Lock()
	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rl.every, rl.config.Max)}
		rl.entries[key] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()

	allowed = e.lim.AllowN(now, 1)
	tokens := e.lim.TokensAt(now)
	remaining = max(int(tokens), 0)
	if !allowed {
		retryAfter = time.Duration((1 - tokens) / float64(rl.every) * float64(time.Second))
	}
	return allowed, remaining, retryAfter
}

// refillTime is how long a bucket holding remaining tokens takes to fill up.
func (rl *RateLimiter) refillTime(remaining int) time.Duration {
	missing := rl.config.Max - remaining
	return time.Duration(float64(missing) / float64(rl.every) * float64(time.Second))
}

// Stop ends the janitor goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// evictIdle drops buckets that have been full for a whole window.
func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.entries {
		if now.Sub(e.lastSeen) > rl.config.Window {
			delete(rl.entries, key)
		}
	}
}

func setRateLimitHeaders(c fiber.Ctx, limit, remaining int, resetAt time.Time) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func routeKey(c fiber.Ctx, key string) string {
	return c.Method() + " " + c.Route().Path + "|" + key
}

// KeyByIP returns the client IP as the rate limit key.
func KeyByIP(c fiber.Ctx) string {
	return "ip:" + c.IP()
}

// KeyByCredential keys on the Authorization header, falling back to the
// client IP. The raw credential is never used as a map key.
func KeyByCredential(c fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		return "key:" + hash.Fingerprint(auth)
	}
	return KeyByIP(c)
}

// NewDefaultRateLimiter is the budget for ordinary API routes.
func NewDefaultRateLimiter(perMinute int) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Name:   "default",
		Max:    perMinute,
		Window: time.Minute,
		KeyFn:  KeyByCredential,
	})
}

// NewStrictRateLimiter is the budget for signup, authorize and purge routes.
func NewStrictRateLimiter(perMinute int) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Name:   "strict",
		Max:    perMinute,
		Window: time.Minute,
		KeyFn:  KeyByCredential,
	})
}
