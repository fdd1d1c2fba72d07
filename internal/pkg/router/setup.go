package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/controllers"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/payments"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Options carries what the routers need. Cache is optional; without it the
// webhook rate limiter keeps its counters in memory.
type Options struct {
	Service          *payments.Service
	DB               *gorm.DB
	Cache            *redis.Client
	Gatherer         prometheus.Gatherer
	Logger           *zap.Logger
	InternalToken    string
	WebhookRateLimit int
}

func InstallRouter(app *fiber.App, opts Options) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	controllers.InitializePaymentController(opts.Service, opts.Logger)
	setup(app, NewOpsRouter(opts), NewPaymentRouter(opts))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
