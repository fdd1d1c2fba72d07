package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"go.uber.org/zap"

	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/payments"
)

const requestTimeout = 30 * time.Second

type PaymentController struct {
	svc    *payments.Service
	logger *zap.Logger
}

func NewPaymentController(svc *payments.Service, logger *zap.Logger) *PaymentController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentController{svc: svc, logger: logger}
}

var paymentController *PaymentController

// InitializePaymentController initializes the global payment controller
func InitializePaymentController(svc *payments.Service, logger *zap.Logger) {
	paymentController = NewPaymentController(svc, logger)
}

// GetPaymentController returns the global payment controller instance
func GetPaymentController() *PaymentController {
	if paymentController == nil {
		panic("payment controller not initialized")
	}
	return paymentController
}

// HandlePaymentWebhook receives a server to server notification. The body is
// copied because fasthttp reuses the buffer after the handler returns.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	pc := GetPaymentController()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res := pc.svc.HandleWebhook(ctx, payments.WebhookRequest{
		Gateway:  c.Params("gateway"),
		Body:     append([]byte(nil), c.BodyRaw()...),
		Header:   requestHeaders(c),
		Query:    requestQuery(c),
		RemoteIP: GetClientIP(c),
	})
	return c.Status(res.HTTPStatus).JSON(res.Response)
}

// HandlePaymentCallback is where the browser lands after the hosted checkout.
// Every outcome is a redirect with a flash message.
func HandlePaymentCallback(c *fiber.Ctx) error {
	pc := GetPaymentController()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res := pc.svc.HandleCallback(ctx, payments.CallbackRequest{
		Gateway: c.Params("gateway"),
		Query:   requestQuery(c),
	})

	fm := fiber.Map{"type": res.FlashKind, "message": res.Message}
	switch res.FlashKind {
	case payments.FlashSuccess:
		return flash.WithSuccess(c, fm).Redirect(res.RedirectURL, fiber.StatusFound)
	case payments.FlashInfo:
		return flash.WithInfo(c, fm).Redirect(res.RedirectURL, fiber.StatusFound)
	default:
		return flash.WithError(c, fm).Redirect(res.RedirectURL, fiber.StatusFound)
	}
}

// HandleCheckout opens a hosted checkout for a payable and returns the
// gateway URL the browser should be sent to.
func HandleCheckout(c *fiber.Ctx) error {
	pc := GetPaymentController()

	var req payments.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res, err := pc.svc.StartCheckout(ctx, req)
	if err != nil {
		status, code := checkoutError(err)
		if status >= fiber.StatusInternalServerError {
			pc.logger.Error("checkout failed", zap.Uint("academy_id", req.AcademyID), zap.String("gateway", req.Gateway), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func checkoutError(err error) (int, string) {
	switch {
	case errors.Is(err, payments.ErrValidation):
		return fiber.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, gateway.ErrUnsupportedGateway), errors.Is(err, gateway.ErrCredentialsMissing):
		return fiber.StatusBadRequest, "gateway_unavailable"
	case errors.Is(err, payments.ErrPersistence):
		return fiber.StatusInternalServerError, "internal_error"
	default:
		return fiber.StatusBadGateway, "charge_failed"
	}
}
