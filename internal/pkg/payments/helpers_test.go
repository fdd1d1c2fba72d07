package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/webhook"
)

const paymobSecret = "pm-hmac"

type staticCredentials map[string]gateway.Credentials

func (s staticCredentials) Resolve(_ context.Context, academyID uint, gw string) (gateway.Credentials, error) {
	c, ok := s[gw]
	if !ok {
		return gateway.Credentials{}, gateway.ErrCredentialsMissing
	}
	c.AcademyID = academyID
	return c, nil
}

func testCredentials() staticCredentials {
	return staticCredentials{
		models.GatewayPaymob: {
			Gateway:       models.GatewayPaymob,
			APIKey:        "pm-api",
			SecretKey:     "pm-secret",
			HMACSecret:    paymobSecret,
			IntegrationID: "1",
		},
		models.GatewayEasyKash: {
			Gateway:    models.GatewayEasyKash,
			APIKey:     "ek-api",
			HMACSecret: "ek-hmac",
		},
		models.GatewayTap: {
			Gateway:   models.GatewayTap,
			SecretKey: "sk_test",
		},
	}
}

type fakeAdapter struct {
	mu          sync.Mutex
	verifyCalls int
	verifiedIDs []string
	result      *gateway.VerificationResult
	verifyErr   error
	charge      *gateway.ChargeResult
	chargeErr   error
	lastCharge  gateway.ChargeRequest
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) CreateCharge(_ context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCharge = req
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return f.charge, nil
}

func (f *fakeAdapter) VerifyPayment(_ context.Context, id string) (*gateway.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.verifiedIDs = append(f.verifiedIDs, id)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.result, nil
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

func (f *fakeAdapter) factory() gateway.Factory {
	return func(gateway.Credentials) (gateway.Adapter, error) { return f, nil }
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []PaymentSummary
	err   error
	panic bool
}

func (n *fakeNotifier) SendPaymentSuccessNotification(_ context.Context, _ *models.User, s PaymentSummary) error {
	if n.panic {
		panic("smtp exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, s)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeInvoices struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (i *fakeInvoices) GenerateInvoiceWithPdf(_ context.Context, p *models.Payment) (*InvoiceMetadata, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	if i.err != nil {
		return nil, i.err
	}
	return &InvoiceMetadata{Number: "INV-" + strconv.FormatUint(uint64(p.ID), 10), Location: "mem://"}, nil
}

func (i *fakeInvoices) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

type fixture struct {
	db           *gorm.DB
	svc          *Service
	adapter      *fakeAdapter
	notifier     *fakeNotifier
	invoices     *fakeInvoices
	metrics      *Metrics
	academy      models.Academy
	user         models.User
	subscription models.Subscription
	payment      models.Payment
	orders       int
}

type fixtureOption func(*Dependencies, *Config)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	db := dbtest.New(t)

	f := &fixture{
		db:       db,
		adapter:  &fakeAdapter{},
		notifier: &fakeNotifier{},
		invoices: &fakeInvoices{},
		metrics:  NewMetrics(nil),
	}

	f.academy = models.Academy{Name: "Noor Academy", Subdomain: "noor", Locale: "en"}
	require.NoError(t, db.Create(&f.academy).Error)
	f.user = models.User{AcademyID: f.academy.ID, Name: "Omar Ali", Email: "omar@example.com"}
	require.NoError(t, db.Create(&f.user).Error)
	f.subscription = models.Subscription{
		AcademyID:          f.academy.ID,
		StudentID:          f.user.ID,
		Kind:               models.SubscriptionKindQuran,
		BillingCycleMonths: 1,
	}
	require.NoError(t, db.Create(&f.subscription).Error)
	f.payment = f.createPayment(t, "100.00")

	deps := Dependencies{
		DB:          db,
		Credentials: testCredentials(),
		Adapters:    f.adapter.factory(),
		Notifier:    f.notifier,
		Invoices:    f.invoices,
		Metrics:     f.metrics,
	}
	cfg := Config{Scheme: "https", Domain: "academy.test", PublicBaseURL: "https://pay.academy.test"}
	for _, o := range opts {
		o(&deps, &cfg)
	}
	f.svc = NewService(deps, cfg)
	return f
}

func (f *fixture) createPayment(t *testing.T, amount string) models.Payment {
	t.Helper()
	return f.createPaymentFor(t, models.GatewayPaymob, amount)
}

func (f *fixture) createPaymentFor(t *testing.T, gw, amount string) models.Payment {
	t.Helper()
	p := models.Payment{
		AcademyID:       f.academy.ID,
		UserID:          f.user.ID,
		PayableType:     models.PayableSubscription,
		PayableID:       f.subscription.ID,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "EGP",
		Gateway:         gw,
		GatewayIntentID: gateway.NewReference(f.academy.ID),
		Status:          models.PaymentStatusPending,
	}
	if gw == models.GatewayPaymob {
		p.GatewayOrderID = strconv.Itoa(217503754 + f.orders)
		f.orders++
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

// bindTransaction stores a gateway transaction id, as checkout does for Tap.
func (f *fixture) bindTransaction(t *testing.T, p *models.Payment, txID string) {
	t.Helper()
	require.NoError(t, f.db.Model(p).Update("gateway_transaction_id", txID).Error)
	p.GatewayTransactionID = &txID
}

func (f *fixture) reload(t *testing.T) models.Payment {
	t.Helper()
	var p models.Payment
	require.NoError(t, f.db.First(&p, f.payment.ID).Error)
	return p
}

func (f *fixture) auditRows(t *testing.T) []models.PaymentAuditLog {
	t.Helper()
	rows, err := f.svc.AuditLog().History(context.Background(), f.payment.ID)
	require.NoError(t, err)
	return rows
}

func (f *fixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.WebhookEvent{}).Count(&n).Error)
	return n
}

type paymobEvent struct {
	TransactionID int64
	PaymentID     uint
	AcademyID     uint
	AmountCents   int64
	Success       bool
	Pending       bool
	Refunded      bool
	Reference     string
	OrderID       string
	Currency      string
}

func (f *fixture) successEvent() paymobEvent {
	return paymobEvent{
		TransactionID: 192036465,
		PaymentID:     f.payment.ID,
		AcademyID:     f.academy.ID,
		AmountCents:   10000,
		Success:       true,
		Reference:     f.payment.GatewayIntentID,
		OrderID:       f.payment.GatewayOrderID,
	}
}

// eventFor is a successful paymob notification for any fixture payment.
func (f *fixture) eventFor(p models.Payment, txID int64) paymobEvent {
	return paymobEvent{
		TransactionID: txID,
		PaymentID:     p.ID,
		AcademyID:     p.AcademyID,
		AmountCents:   p.AmountInMinorUnits(),
		Success:       true,
		Reference:     p.GatewayIntentID,
		OrderID:       p.GatewayOrderID,
	}
}

func (e paymobEvent) body(t *testing.T) []byte {
	t.Helper()
	extra := map[string]interface{}{}
	if e.AcademyID != 0 {
		extra["academy_id"] = e.AcademyID
	}
	if e.PaymentID != 0 {
		extra["payment_id"] = e.PaymentID
	}
	currency := e.Currency
	if currency == "" {
		currency = "EGP"
	}
	body, err := json.Marshal(map[string]interface{}{
		"type": "TRANSACTION",
		"obj": map[string]interface{}{
			"id":                     e.TransactionID,
			"pending":                e.Pending,
			"amount_cents":           e.AmountCents,
			"success":                e.Success,
			"is_auth":                false,
			"is_capture":             false,
			"is_standalone_payment":  true,
			"is_voided":              false,
			"is_refunded":            e.Refunded,
			"is_3d_secure":           true,
			"integration_id":         1,
			"has_parent_transaction": false,
			"order":                  map[string]interface{}{"id": json.Number(e.OrderID), "merchant_order_id": e.Reference},
			"created_at":             "2024-06-13T11:33:44.592345",
			"currency":               currency,
			"source_data":            map[string]interface{}{"pan": "2346", "type": "card", "sub_type": "MasterCard"},
			"error_occured":          false,
			"owner":                  302852,
			"payment_key_claims":     map[string]interface{}{"extra": extra},
		},
	})
	require.NoError(t, err)
	return body
}

func (e paymobEvent) request(t *testing.T) WebhookRequest {
	return e.requestSigned(t, paymobSecret)
}

func (e paymobEvent) requestSigned(t *testing.T, secret string) WebhookRequest {
	t.Helper()
	body := e.body(t)
	sig, err := webhook.Sign(models.GatewayPaymob, body, secret)
	require.NoError(t, err)
	return WebhookRequest{
		Gateway:  models.GatewayPaymob,
		Body:     body,
		Query:    url.Values{"hmac": {sig}},
		RemoteIP: "203.0.113.10",
	}
}

// failingPayable lets a test make activation fail inside the transaction.
type failingPayable struct {
	fail *bool
	sub  *models.Subscription
}

func (p failingPayable) ActivateFromPayment(tx *gorm.DB, payment *models.Payment) error {
	if *p.fail {
		return errors.New("activation unavailable")
	}
	return p.sub.ActivateFromPayment(tx, payment)
}

func (p failingPayable) PaymentReturnPath() string { return p.sub.PaymentReturnPath() }
