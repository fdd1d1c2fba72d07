package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

func intercept(t *testing.T, c *http.Client) {
	t.Helper()
	gock.InterceptClient(c)
	t.Cleanup(func() {
		gock.RestoreClient(c)
		gock.Off()
	})
}

func easyKashCreds() Credentials {
	return Credentials{
		AcademyID:  7,
		Gateway:    models.GatewayEasyKash,
		APIKey:     "ek-key",
		HMACSecret: "ek-hmac",
		BaseURL:    "http://easykash.test",
	}
}

func paymobCreds() Credentials {
	return Credentials{
		AcademyID:     7,
		Gateway:       models.GatewayPaymob,
		APIKey:        "pm-api",
		SecretKey:     "pm-secret",
		PublicKey:     "pm-public",
		HMACSecret:    "pm-hmac",
		IntegrationID: "4411",
		BaseURL:       "http://paymob.test",
	}
}

func tapCreds() Credentials {
	return Credentials{
		AcademyID: 7,
		Gateway:   models.GatewayTap,
		SecretKey: "sk_test",
		BaseURL:   "http://tap.test",
	}
}

func TestNew_BuildsAdapterPerGateway(t *testing.T) {
	for _, creds := range []Credentials{easyKashCreds(), paymobCreds(), tapCreds()} {
		a, err := New(creds, Options{})
		require.NoError(t, err)
		assert.Equal(t, creds.Gateway, a.Name())
	}
}

func TestNew_RejectsIncompleteCredentials(t *testing.T) {
	creds := paymobCreds()
	creds.IntegrationID = ""
	_, err := New(creds, Options{})
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = New(Credentials{Gateway: "stripe", APIKey: "x"}, Options{})
	assert.Error(t, err)
}

func TestEasyKash_VerifyPayment(t *testing.T) {
	a := NewEasyKash(easyKashCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://easykash.test").
		Post("/api/cash-api/inquire").
		MatchHeader("authorization", "ek-key").
		JSON(map[string]string{"customerReference": "ac7_abc"}).
		Reply(200).
		JSON(map[string]interface{}{
			"status":        "PAID",
			"easykashRef":   "EK-991",
			"Amount":        "100.00",
			"PaymentMethod": "Credit & Debit Card",
		})

	res, err := a.VerifyPayment(context.Background(), "ac7_abc")
	require.NoError(t, err)
	assert.True(t, res.IsSuccessful)
	assert.False(t, res.IsPending)
	assert.Equal(t, "EK-991", res.TransactionID)
	assert.Equal(t, int64(10000), res.AmountInCents)
	assert.Equal(t, "Credit & Debit Card", res.PaymentMethod)
	assert.Equal(t, "ac7_abc", res.Reference)
	assert.True(t, gock.IsDone())
}

func TestEasyKash_VerifyPayment_FailedStatus(t *testing.T) {
	a := NewEasyKash(easyKashCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://easykash.test").
		Post("/api/cash-api/inquire").
		Reply(200).
		JSON(map[string]interface{}{"status": "EXPIRED", "easykashRef": "EK-1"})

	res, err := a.VerifyPayment(context.Background(), "ac7_abc")
	require.NoError(t, err)
	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "easykash status EXPIRED", res.ErrorMessage)
}

func TestEasyKash_VerifyPayment_HTTPError(t *testing.T) {
	a := NewEasyKash(easyKashCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://easykash.test").
		Post("/api/cash-api/inquire").
		Reply(502).
		BodyString("bad gateway")

	_, err := a.VerifyPayment(context.Background(), "ac7_abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

func TestEasyKash_VerifyPayment_EmptyReference(t *testing.T) {
	a := NewEasyKash(easyKashCreds(), Options{})
	_, err := a.VerifyPayment(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestEasyKash_CreateCharge(t *testing.T) {
	a := NewEasyKash(easyKashCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://easykash.test").
		Post("/api/directpayv1/pay").
		Reply(200).
		JSON(map[string]string{"redirectUrl": "https://pay.easykash.net/checkout/1"})

	res, err := a.CreateCharge(context.Background(), ChargeRequest{
		AcademyID: 7,
		Amount:    decimal.RequireFromString("100.00"),
		Currency:  "EGP",
		Reference: "ac7_abc",
		Customer:  Customer{FirstName: "Omar", LastName: "Ali", Email: "o@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.easykash.net/checkout/1", res.RedirectURL)
	assert.Equal(t, "ac7_abc", res.IntentID)
}

func TestPaymob_VerifyPayment(t *testing.T) {
	a := NewPaymob(paymobCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://paymob.test").
		Post("/api/auth/tokens").
		Reply(201).
		JSON(map[string]string{"token": "auth-token"})
	gock.New("http://paymob.test").
		Get("/api/acceptance/transactions/123456").
		MatchHeader("Authorization", "Bearer auth-token").
		Reply(200).
		JSON(map[string]interface{}{
			"id":           123456,
			"success":      true,
			"pending":      false,
			"is_refunded":  false,
			"is_voided":    false,
			"amount_cents": 10000,
			"currency":     "EGP",
			"order":        map[string]interface{}{"id": 217503754, "merchant_order_id": "ac7_abc"},
			"source_data": map[string]interface{}{
				"pan":      "2346",
				"sub_type": "MasterCard",
				"type":     "card",
			},
		})

	res, err := a.VerifyPayment(context.Background(), "123456")
	require.NoError(t, err)
	assert.True(t, res.IsSuccessful)
	assert.Equal(t, "123456", res.TransactionID)
	assert.Equal(t, int64(10000), res.AmountInCents)
	assert.Equal(t, "MasterCard", res.CardBrand)
	assert.Equal(t, "2346", res.LastFour)
	assert.Equal(t, "card", res.PaymentMethod)
	assert.Equal(t, "ac7_abc", res.Reference)
	assert.Equal(t, "217503754", res.OrderID)
	assert.True(t, gock.IsDone())
}

func TestPaymob_VerifyPayment_Declined(t *testing.T) {
	a := NewPaymob(paymobCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://paymob.test").
		Post("/api/auth/tokens").
		Reply(201).
		JSON(map[string]string{"token": "auth-token"})
	gock.New("http://paymob.test").
		Get("/api/acceptance/transactions/55").
		Reply(200).
		JSON(map[string]interface{}{
			"id":      55,
			"success": false,
			"pending": false,
			"data":    map[string]interface{}{"message": "Insufficient funds"},
		})

	res, err := a.VerifyPayment(context.Background(), "55")
	require.NoError(t, err)
	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "Insufficient funds", res.ErrorMessage)
}

func TestPaymob_CreateCharge(t *testing.T) {
	a := NewPaymob(paymobCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://paymob.test").
		Post("/v1/intention/").
		MatchHeader("Authorization", "Token pm-secret").
		Reply(201).
		JSON(map[string]interface{}{"id": "pi_1", "client_secret": "cs_1", "intention_order_id": 217503754})

	res, err := a.CreateCharge(context.Background(), ChargeRequest{
		PaymentID: 3,
		AcademyID: 7,
		Amount:    decimal.RequireFromString("250.50"),
		Currency:  "egp",
		Reference: "ac7_ref",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://paymob.test/unifiedcheckout/?publicKey=pm-public&clientSecret=cs_1", res.RedirectURL)
	assert.Equal(t, "ac7_ref", res.IntentID)
	assert.Equal(t, "217503754", res.OrderID)
}

func TestTap_VerifyPayment(t *testing.T) {
	a := NewTap(tapCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://tap.test").
		Get("/v2/charges/chg_TS01").
		MatchHeader("Authorization", "Bearer sk_test").
		Reply(200).
		JSON(map[string]interface{}{
			"id":        "chg_TS01",
			"status":    "CAPTURED",
			"amount":    100,
			"currency":  "KWD",
			"reference": map[string]interface{}{"transaction": "ac7_ref", "order": "ac7_ref"},
			"card":      map[string]interface{}{"brand": "VISA", "last_four": "4242"},
			"source":    map[string]interface{}{"payment_method": "VISA"},
		})

	res, err := a.VerifyPayment(context.Background(), "chg_TS01")
	require.NoError(t, err)
	assert.True(t, res.IsSuccessful)
	assert.Equal(t, int64(10000), res.AmountInCents)
	assert.Equal(t, "VISA", res.CardBrand)
	assert.Equal(t, "4242", res.LastFour)
	assert.Equal(t, "ac7_ref", res.Reference)
	assert.Equal(t, "KWD", res.Currency)
}

func TestTap_VerifyPayment_Timeout(t *testing.T) {
	a := NewTap(tapCreds(), Options{Timeout: 50 * time.Millisecond})
	intercept(t, a.client.GetClient())

	gock.New("http://tap.test").
		Get("/v2/charges/chg_slow").
		Reply(200).
		Delay(time.Second).
		JSON(map[string]interface{}{"id": "chg_slow", "status": "CAPTURED"})

	_, err := a.VerifyPayment(context.Background(), "chg_slow")
	assert.Error(t, err)
}

func TestTap_CreateCharge(t *testing.T) {
	a := NewTap(tapCreds(), Options{})
	intercept(t, a.client.GetClient())

	gock.New("http://tap.test").
		Post("/v2/charges").
		Reply(200).
		JSON(map[string]interface{}{
			"id":          "chg_new",
			"transaction": map[string]interface{}{"url": "https://checkout.tap.company/x"},
		})

	res, err := a.CreateCharge(context.Background(), ChargeRequest{
		PaymentID: 3,
		AcademyID: 7,
		Amount:    decimal.RequireFromString("12.5"),
		Currency:  "KWD",
		Reference: "ac7_ref",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.tap.company/x", res.RedirectURL)
	assert.Equal(t, "chg_new", res.TransactionID)
}
