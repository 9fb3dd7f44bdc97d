package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_errors_total",
		Help: "Total number of failed Redis commands",
	}, []string{"command"})

	// RateLimited counts requests rejected by the Redis rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_rate_limited_total",
		Help: "Total number of requests rejected by rate limiting",
	}, []string{"resource"})

	// AuthFailures counts rejected authentication and authorization attempts.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_auth_failures_total",
		Help: "Total number of rejected authentication or authorization checks",
	}, []string{"reason"})
)

var (
	promOnce sync.Once
	fiberProm *fiberprometheus.FiberPrometheus
)

// InitMetrics registers the HTTP request metrics and exposes them on /metrics.
// Collectors live in the default registry, so they are created once per process.
func InitMetrics(app *fiber.App, serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		fiberProm = fiberprometheus.New(serviceName)
	})
	fiberProm.RegisterAt(app, "/metrics")
	app.Use(fiberProm.Middleware)
	return fiberProm
}
