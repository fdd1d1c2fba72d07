package payments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
)

func (f *fixture) checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		AcademyID:   f.academy.ID,
		UserID:      f.user.ID,
		Gateway:     "Paymob",
		PayableType: models.PayableSubscription,
		PayableID:   f.subscription.ID,
		Amount:      decimal.RequireFromString("350"),
		Currency:    "egp",
		Description: "Quran circle, monthly",
	}
}

func TestStartCheckout_CreatesPendingPaymentAndCharge(t *testing.T) {
	f := newFixture(t)
	f.adapter.charge = &gateway.ChargeResult{RedirectURL: "https://accept.paymob.com/unifiedcheckout/?x=1"}

	res, err := f.svc.StartCheckout(context.Background(), f.checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://accept.paymob.com/unifiedcheckout/?x=1", res.RedirectURL)
	assert.Equal(t, f.academy.ID, gateway.ReferenceAcademyID(res.Reference))

	var p models.Payment
	require.NoError(t, f.db.First(&p, res.PaymentID).Error)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, models.GatewayPaymob, p.Gateway)
	assert.Equal(t, "EGP", p.Currency)
	assert.Equal(t, res.Reference, p.GatewayIntentID)
	assert.Equal(t, int64(35000), p.AmountInMinorUnits())
	require.NotNil(t, p.SubscriptionID)

	charge := f.adapter.lastCharge
	assert.Equal(t, res.Reference, charge.Reference)
	assert.Equal(t, "Omar", charge.Customer.FirstName)
	assert.Equal(t, "Ali", charge.Customer.LastName)
	assert.True(t, strings.HasPrefix(charge.RedirectURL, "https://pay.academy.test/payments/callback/paymob?payment="))
	assert.Equal(t, "https://pay.academy.test/payments/webhook/paymob", charge.WebhookURL)
}

func TestStartCheckout_StoresGatewayChargeID(t *testing.T) {
	f := newFixture(t)
	f.adapter.charge = &gateway.ChargeResult{RedirectURL: "https://tap/x", TransactionID: "chg_new"}
	req := f.checkoutRequest()
	req.Gateway = models.GatewayTap

	res, err := f.svc.StartCheckout(context.Background(), req)
	require.NoError(t, err)

	var p models.Payment
	require.NoError(t, f.db.First(&p, res.PaymentID).Error)
	assert.Equal(t, "chg_new", p.TransactionRef())
}

func TestStartCheckout_StoresPaymobOrderID(t *testing.T) {
	f := newFixture(t)
	f.adapter.charge = &gateway.ChargeResult{RedirectURL: "https://accept.paymob.com/x", OrderID: "317503754"}

	res, err := f.svc.StartCheckout(context.Background(), f.checkoutRequest())
	require.NoError(t, err)

	var p models.Payment
	require.NoError(t, f.db.First(&p, res.PaymentID).Error)
	assert.Equal(t, "317503754", p.GatewayOrderID)
	assert.Nil(t, p.GatewayTransactionID)
}

func TestStartCheckout_ChargeFailureMarksPaymentFailed(t *testing.T) {
	f := newFixture(t)
	f.adapter.chargeErr = errors.New("paymob request failed: status=401")

	_, err := f.svc.StartCheckout(context.Background(), f.checkoutRequest())
	require.Error(t, err)

	var p models.Payment
	require.NoError(t, f.db.Where("id <> ?", f.payment.ID).Order("id DESC").First(&p).Error)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)

	rows, err := f.svc.AuditLog().History(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AuditActorCheckout, rows[0].Actor)
}

func TestStartCheckout_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := map[string]func(*CheckoutRequest){
		"zero amount":      func(r *CheckoutRequest) { r.Amount = decimal.Zero },
		"unknown gateway":  func(r *CheckoutRequest) { r.Gateway = "stripe" },
		"unknown payable":  func(r *CheckoutRequest) { r.PayableType = "circle" },
		"missing payable":  func(r *CheckoutRequest) { r.PayableID = 9999 },
		"foreign user":     func(r *CheckoutRequest) { r.AcademyID = f.academy.ID + 1 },
		"bad currency len": func(r *CheckoutRequest) { r.Currency = "EURO" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := f.checkoutRequest()
			mutate(&req)
			_, err := f.svc.StartCheckout(ctx, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPaymentAmountIsImmutable(t *testing.T) {
	f := newFixture(t)
	err := f.db.Model(&f.payment).Update("amount", decimal.RequireFromString("1.00")).Error
	assert.ErrorIs(t, err, models.ErrPaymentAmountImmutable)
	assert.True(t, decimal.RequireFromString("100").Equal(f.reload(t).Amount))
}
