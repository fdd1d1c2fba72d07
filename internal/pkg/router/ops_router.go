package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsRouter serves health and metrics.
type OpsRouter struct {
	opts Options
}

func NewOpsRouter(opts Options) *OpsRouter {
	return &OpsRouter{opts: opts}
}

func (r OpsRouter) InstallRouter(app *fiber.App) {
	gatherer := r.opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	app.Get("/healthz", r.health)
}

func (r OpsRouter) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	if r.opts.DB != nil {
		checks["database"] = "ok"
		sqlDB, err := r.opts.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
	}
	if r.opts.Cache != nil {
		// the ledger falls back to the database, so redis is reported only
		checks["cache"] = "ok"
		if err := r.opts.Cache.Ping(ctx).Err(); err != nil {
			checks["cache"] = err.Error()
		}
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "checks": checks})
	}
	return c.JSON(fiber.Map{"status": "ok", "checks": checks})
}
