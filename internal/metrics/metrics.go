// Package metrics holds the Prometheus collectors shared by handlers,
// services and workers.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Collectors are usable before Register; unregistered ones are simply not exported.
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dyt_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dyt_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dyt_cache_hits_total",
			Help: "Total Redis cache hits.",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dyt_cache_misses_total",
			Help: "Total Redis cache misses.",
		},
	)

	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dyt_reconcile_duration_seconds",
			Help:    "Duration of batch reconciliations, by mode.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	ContributionsInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dyt_contributions_inserted_total",
			Help: "Contribution edges created, by kind.",
		},
		[]string{"kind"},
	)

	ContributionsRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dyt_contributions_removed_total",
			Help: "Contribution edges removed, by kind.",
		},
		[]string{"kind"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dyt_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by tier.",
		},
		[]string{"tier"},
	)

	CacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dyt_cache_invalidations_total",
			Help: "Cache keys dropped after ledger change notifications.",
		},
	)

	StatsRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dyt_stats_refresh_duration_seconds",
			Help:    "Duration of the periodic stats snapshot.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register exports all collectors on the default registry. Call once at startup.
func Register(pool *pgxpool.Pool) {
	if pool != nil {
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "dyt_db_connection_pool_active",
					Help: "Number of active database connections.",
				},
				func() float64 { return float64(pool.Stat().AcquiredConns()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "dyt_db_connection_pool_idle",
					Help: "Number of idle database connections.",
				},
				func() float64 { return float64(pool.Stat().IdleConns()) },
			),
		)
	}

	prometheus.MustRegister(
		RequestDuration,
		RequestsInFlight,
		CacheHits,
		CacheMisses,
		ReconcileDuration,
		ContributionsInserted,
		ContributionsRemoved,
		RateLimited,
		CacheInvalidations,
		StatsRefreshDuration,
	)
}

// Middleware records request duration and in-flight count.
func Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Fiber returns slices backed by the fasthttp buffer; copy before c.Next().
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := SanitizeEndpoint(path)

		RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		RequestDuration.WithLabelValues(endpoint, method, status).Observe(time.Since(start).Seconds())
		RequestsInFlight.Dec()

		return err
	}
}

var identifierRoutes = []string{
	"/api/video/",
	"/api/channelmaintainers/",
	"/api/channelvideos/",
	"/api/my_videos/",
	"/api/my_channels/",
	"/api/authorize/",
}

// SanitizeEndpoint collapses identifier path segments to keep label cardinality bounded.
func SanitizeEndpoint(path string) string {
	for _, prefix := range identifierRoutes {
		if len(path) > len(prefix) && strings.HasPrefix(path, prefix) {
			return prefix + ":id"
		}
	}
	return path
}

// Handler serves the Prometheus /metrics endpoint via Fiber.
func Handler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
