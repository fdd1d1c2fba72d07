package main

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/cache"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/database"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/env"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/invoice"
	applog "github.com/ManuelReschke/AcademyPay/internal/pkg/logger"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/mail"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/payments"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/router"
)

func main() {
	app, zl := NewApplication()
	defer func() { _ = zl.Sync() }()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *zap.Logger) {
	env.SetupEnvFile()

	zl, err := applog.New(env.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	db := database.SetupDatabase()
	redisClient := cache.SetupCache()
	if !cache.Available(context.Background()) {
		zl.Warn("redis unavailable, ledger uses the database only")
		redisClient = nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	allowed, err := allowListsFromEnv()
	if err != nil {
		zl.Fatal("invalid webhook allow list", zap.Error(err))
	}

	svc := payments.NewService(payments.Dependencies{
		DB:          db,
		Cache:       redisClient,
		Credentials: gateway.NewCredentialResolver(db, gateway.DefaultsFromEnv()),
		Notifier:    mail.NewPaymentNotifier(mail.NewSMTPMailer(mail.LoadConfig(), zl.Named("mail"))),
		Invoices:    newInvoiceGenerator(zl),
		Metrics:     payments.NewMetrics(reg),
		Logger:      zl.Named("payments"),
	}, payments.Config{
		AllowedIPs:    allowed,
		VerifyTimeout: env.GetSeconds("GATEWAY_VERIFY_TIMEOUT_SECONDS", gateway.DefaultTimeout),
		LeaseDuration: env.GetSeconds("WEBHOOK_LEASE_SECONDS", payments.DefaultLeaseDuration),
		Scheme:        env.GetEnv("APP_SCHEME", "https"),
		Domain:        env.GetEnv("APP_DOMAIN", ""),
		PublicBaseURL: env.GetEnv("APP_PUBLIC_URL", ""),
	})

	cfg := fiber.Config{
		BodyLimit:    1 << 20,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	}
	if proxies := env.GetList("TRUSTED_PROXIES"); len(proxies) > 0 {
		cfg.EnableTrustedProxyCheck = true
		cfg.TrustedProxies = proxies
		cfg.ProxyHeader = env.GetEnv("PROXY_HEADER", fiber.HeaderXForwardedFor)
	}
	app := fiber.New(cfg)

	// recovery and logging
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Options{
		Service:          svc,
		DB:               db,
		Cache:            redisClient,
		Gatherer:         reg,
		Logger:           zl,
		InternalToken:    env.GetEnv("INTERNAL_API_TOKEN", ""),
		WebhookRateLimit: env.GetInt("WEBHOOK_RATE_LIMIT_PER_MINUTE", 120),
	})

	return app, zl
}

func allowListsFromEnv() (map[string][]netip.Prefix, error) {
	out := map[string][]netip.Prefix{}
	for _, gw := range []string{models.GatewayEasyKash, models.GatewayPaymob, models.GatewayTap} {
		key := strings.ToUpper(gw) + "_WEBHOOK_ALLOWED_IPS"
		prefixes, err := payments.ParseAllowList(env.GetList(key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if len(prefixes) > 0 {
			out[gw] = prefixes
		}
	}
	return out, nil
}

func newInvoiceGenerator(zl *zap.Logger) payments.InvoiceGenerator {
	cfg, err := invoice.LoadConfig()
	if err != nil {
		zl.Fatal("invoice config", zap.Error(err))
	}
	var store invoice.Store = invoice.NewLocalStore(cfg.LocalDir)
	if cfg.Enabled {
		s3Store, err := invoice.NewS3Store(context.Background(), cfg, zl.Named("invoice"))
		if err != nil {
			zl.Fatal("invoice storage", zap.Error(err))
		}
		store = s3Store
	}
	return invoice.NewGenerator(database.GetDB(), store, cfg.Issuer)
}
