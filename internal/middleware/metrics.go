package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector. The collectors
// register against the default prometheus registry exactly once, so every
// server built in the same process shares them.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request counts and latencies, skipping the scrape endpoint itself.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		return p.Middleware(c)
	}
}
