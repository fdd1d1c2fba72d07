package router

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
	"go.uber.org/zap"

	"github.com/ManuelReschke/AcademyPay/app/controllers"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/middleware"
)

const defaultWebhookRateLimit = 120

// PaymentRouter serves the gateway-facing endpoints and the internal
// checkout endpoint.
type PaymentRouter struct {
	opts Options
}

func NewPaymentRouter(opts Options) *PaymentRouter {
	return &PaymentRouter{opts: opts}
}

func (r PaymentRouter) InstallRouter(app *fiber.App) {
	limit := r.opts.WebhookRateLimit
	if limit <= 0 {
		limit = defaultWebhookRateLimit
	}
	cfg := limiter.Config{
		Max:        limit,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": "error", "message": "Too many requests"})
		},
	}
	if storage := r.limiterStorage(); storage != nil {
		cfg.Storage = storage
	}

	group := app.Group("/payments")
	group.Post("/webhook/:gateway", limiter.New(cfg), controllers.HandlePaymentWebhook)
	group.Get("/callback/:gateway", controllers.HandlePaymentCallback)
	group.Post("/checkout", middleware.InternalTokenMiddleware(r.opts.InternalToken), controllers.HandleCheckout)
}

// limiterStorage shares rate limit counters across instances through redis
// DB 2. The storage driver panics on an unreachable server, so it is only
// built after a successful ping.
func (r PaymentRouter) limiterStorage() fiber.Storage {
	c := r.opts.Cache
	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		r.opts.Logger.Warn("rate limiter falls back to memory storage", zap.Error(err))
		return nil
	}

	host, portStr, err := net.SplitHostPort(c.Options().Addr)
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil
	}
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: c.Options().Password,
		Database: 2,
		Reset:    false,
	})
}
