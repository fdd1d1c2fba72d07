package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/payments"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/webhook"
)

const testHMAC = "pm-hmac"

type creds struct{}

func (creds) Resolve(_ context.Context, academyID uint, gw string) (gateway.Credentials, error) {
	if gw != models.GatewayPaymob {
		return gateway.Credentials{}, gateway.ErrCredentialsMissing
	}
	return gateway.Credentials{AcademyID: academyID, Gateway: gw, APIKey: "k", SecretKey: "s", HMACSecret: testHMAC, IntegrationID: "1"}, nil
}

type stubAdapter struct {
	verify    *gateway.VerificationResult
	chargeErr error
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) CreateCharge(_ context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	if a.chargeErr != nil {
		return nil, a.chargeErr
	}
	return &gateway.ChargeResult{RedirectURL: "https://accept.paymob.test/unifiedcheckout/?ref=" + req.Reference}, nil
}

func (a *stubAdapter) VerifyPayment(context.Context, string) (*gateway.VerificationResult, error) {
	if a.verify == nil {
		return nil, errors.New("no verification stubbed")
	}
	return a.verify, nil
}

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	adapter *stubAdapter
	payment models.Payment
	sub     models.Subscription
	user    models.User
}

func setupApp(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)

	academy := models.Academy{Name: "Noor", Subdomain: "noor", Locale: "en"}
	require.NoError(t, db.Create(&academy).Error)
	user := models.User{AcademyID: academy.ID, Name: "Omar Ali", Email: "omar@example.com"}
	require.NoError(t, db.Create(&user).Error)
	sub := models.Subscription{AcademyID: academy.ID, StudentID: user.ID, Kind: models.SubscriptionKindQuran}
	require.NoError(t, db.Create(&sub).Error)
	payment := models.Payment{
		AcademyID:       academy.ID,
		UserID:          user.ID,
		PayableType:     models.PayableSubscription,
		PayableID:       sub.ID,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "EGP",
		Gateway:         models.GatewayPaymob,
		GatewayIntentID: gateway.NewReference(academy.ID),
		GatewayOrderID:  "217503754",
		Status:          models.PaymentStatusPending,
	}
	require.NoError(t, db.Create(&payment).Error)

	adapter := &stubAdapter{}
	svc := payments.NewService(payments.Dependencies{
		DB:          db,
		Credentials: creds{},
		Adapters:    func(gateway.Credentials) (gateway.Adapter, error) { return adapter, nil },
		Metrics:     payments.NewMetrics(nil),
	}, payments.Config{Scheme: "https", Domain: "academy.test", PublicBaseURL: "https://pay.academy.test"})

	InitializePaymentController(svc, nil)
	app := fiber.New()
	app.Post("/payments/webhook/:gateway", HandlePaymentWebhook)
	app.Get("/payments/callback/:gateway", HandlePaymentCallback)
	app.Post("/payments/checkout", HandleCheckout)

	return &testEnv{app: app, db: db, adapter: adapter, payment: payment, sub: sub, user: user}
}

func (e *testEnv) paymobBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"type": "TRANSACTION",
		"obj": map[string]interface{}{
			"id": 192036465, "pending": false, "amount_cents": 10000, "success": true,
			"is_auth": false, "is_capture": false, "is_standalone_payment": true, "is_voided": false,
			"is_refunded": false, "is_3d_secure": true, "integration_id": 1, "has_parent_transaction": false,
			"order":         map[string]interface{}{"id": 217503754, "merchant_order_id": e.payment.GatewayIntentID},
			"created_at":    "2024-06-13T11:33:44.592345",
			"currency":      "EGP",
			"source_data":   map[string]interface{}{"pan": "2346", "type": "card", "sub_type": "MasterCard"},
			"error_occured": false,
			"owner":         302852,
			"payment_key_claims": map[string]interface{}{"extra": map[string]interface{}{
				"academy_id": e.payment.AcademyID, "payment_id": e.payment.ID,
			}},
		},
	})
	require.NoError(t, err)
	return body
}

func decode(t *testing.T, r io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func TestHandlePaymentWebhook(t *testing.T) {
	e := setupApp(t)
	body := e.paymobBody(t)
	sig, err := webhook.Sign(models.GatewayPaymob, body, testHMAC)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/payments/webhook/paymob?hmac="+sig, strings.NewReader(string(body)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode(t, resp.Body)
	assert.Equal(t, "success", out["status"])
	assert.EqualValues(t, e.payment.ID, out["paymentId"])

	// redelivery
	req = httptest.NewRequest(fiber.MethodPost, "/payments/webhook/paymob?hmac="+sig, strings.NewReader(string(body)))
	resp, err = e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ignored", decode(t, resp.Body)["status"])

	var p models.Payment
	require.NoError(t, e.db.First(&p, e.payment.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
}

func TestHandlePaymentWebhook_InvalidSignature(t *testing.T) {
	e := setupApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/payments/webhook/paymob?hmac=deadbeef", strings.NewReader(string(e.paymobBody(t))))
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	out := decode(t, resp.Body)
	assert.Equal(t, "error", out["status"])
	assert.NotContains(t, out, "paymentId")
}

func TestHandlePaymentCallback_RedirectsWithFlash(t *testing.T) {
	e := setupApp(t)
	e.adapter.verify = &gateway.VerificationResult{
		IsSuccessful:  true,
		TransactionID: "192036465",
		Reference:     e.payment.GatewayIntentID,
		AmountInCents: 10000,
	}

	q := url.Values{"id": {"192036465"}, "success": {"true"}, "payment": {fmt.Sprint(e.payment.ID)}}
	resp, err := e.app.Test(httptest.NewRequest(fiber.MethodGet, "/payments/callback/paymob?"+q.Encode(), nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("https://noor.academy.test/student/subscriptions/quran/%d", e.sub.ID), resp.Header.Get(fiber.HeaderLocation))
	assert.NotEmpty(t, resp.Header.Values(fiber.HeaderSetCookie))
}

func TestHandlePaymentCallback_UnknownPaymentGoesHome(t *testing.T) {
	e := setupApp(t)

	resp, err := e.app.Test(httptest.NewRequest(fiber.MethodGet, "/payments/callback/paymob?id=1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://academy.test/", resp.Header.Get(fiber.HeaderLocation))
}

func checkoutRequest(t *testing.T, e *testEnv, mutate func(map[string]interface{})) *httptest.ResponseRecorder {
	t.Helper()
	payload := map[string]interface{}{
		"academy_id":   e.payment.AcademyID,
		"user_id":      e.user.ID,
		"gateway":      "paymob",
		"payable_type": models.PayableSubscription,
		"payable_id":   e.sub.ID,
		"amount":       "350.00",
		"currency":     "EGP",
	}
	if mutate != nil {
		mutate(payload)
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/payments/checkout", strings.NewReader(string(raw)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := e.app.Test(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	rec.Code = resp.StatusCode
	_, _ = io.Copy(rec.Body, resp.Body)
	return rec
}

func TestHandleCheckout(t *testing.T) {
	e := setupApp(t)

	rec := checkoutRequest(t, e, nil)
	assert.Equal(t, fiber.StatusCreated, rec.Code)
	out := decode(t, rec.Body)
	assert.Contains(t, out["redirect_url"], "https://accept.paymob.test/unifiedcheckout/")
	assert.NotEmpty(t, out["reference"])
}

func TestHandleCheckout_Errors(t *testing.T) {
	e := setupApp(t)

	rec := checkoutRequest(t, e, func(m map[string]interface{}) { m["amount"] = "0" })
	assert.Equal(t, fiber.StatusUnprocessableEntity, rec.Code)

	rec = checkoutRequest(t, e, func(m map[string]interface{}) { m["gateway"] = "tap" })
	assert.Equal(t, fiber.StatusBadRequest, rec.Code)

	e.adapter.chargeErr = errors.New("paymob down")
	rec = checkoutRequest(t, e, nil)
	assert.Equal(t, fiber.StatusBadGateway, rec.Code)
	assert.Equal(t, "charge_failed", decode(t, rec.Body)["error"])
}
