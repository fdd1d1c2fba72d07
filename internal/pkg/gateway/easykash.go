package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

const defaultEasyKashBaseURL = "https://back.easykash.net"

// EasyKash payment options: card, wallet, fawry, aman, meeza.
var easyKashPaymentOptions = []int{2, 3, 4, 5, 6}

type EasyKash struct {
	creds  Credentials
	client *resty.Client
}

func NewEasyKash(creds Credentials, opts Options) *EasyKash {
	base := creds.BaseURL
	if base == "" {
		base = defaultEasyKashBaseURL
	}
	return &EasyKash{
		creds:  creds,
		client: newHTTPClient(base, opts).SetHeader("authorization", creds.APIKey),
	}
}

func (e *EasyKash) Name() string { return models.GatewayEasyKash }

type easyKashPayRequest struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	PaymentOptions    []int   `json:"paymentOptions"`
	CashExpiry        int     `json:"cashExpiry"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Mobile            string  `json:"mobile"`
	RedirectURL       string  `json:"redirectUrl"`
	CustomerReference string  `json:"customerReference"`
}

func (e *EasyKash) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, ErrMissingReference
	}
	body := easyKashPayRequest{
		Amount:            req.Amount.InexactFloat64(),
		Currency:          strings.ToUpper(req.Currency),
		PaymentOptions:    easyKashPaymentOptions,
		CashExpiry:        3,
		Name:              strings.TrimSpace(req.Customer.FirstName + " " + req.Customer.LastName),
		Email:             req.Customer.Email,
		Mobile:            req.Customer.Phone,
		RedirectURL:       req.RedirectURL,
		CustomerReference: req.Reference,
	}

	var out struct {
		RedirectURL string `json:"redirectUrl"`
	}
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/api/directpayv1/pay")
	if err != nil {
		return nil, fmt.Errorf("easykash create charge: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("easykash", resp)
	}
	if out.RedirectURL == "" {
		return nil, fmt.Errorf("easykash create charge: empty redirectUrl")
	}
	return &ChargeResult{RedirectURL: out.RedirectURL, IntentID: req.Reference}, nil
}

// VerifyPayment inquires by customer reference; EasyKash has no lookup by its
// own transaction reference.
func (e *EasyKash) VerifyPayment(ctx context.Context, customerReference string) (*VerificationResult, error) {
	ref := strings.TrimSpace(customerReference)
	if ref == "" {
		return nil, ErrMissingReference
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"customerReference": ref}).
		Post("/api/cash-api/inquire")
	if err != nil {
		return nil, fmt.Errorf("easykash inquire: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("easykash", resp)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("easykash inquire: decode: %w", err)
	}

	status := strings.ToUpper(stringField(raw, "status"))
	out := &VerificationResult{
		IsSuccessful:  status == "PAID" || status == "DELIVERED",
		IsPending:     status == "NEW" || status == "PENDING",
		TransactionID: stringField(raw, "easykashRef"),
		Reference:     stringField(raw, "customerReference"),
		PaymentMethod: stringField(raw, "PaymentMethod"),
		RawResponse:   raw,
	}
	if out.Reference == "" {
		// the inquiry is keyed by our reference
		out.Reference = ref
	}
	if amt, err := decimal.NewFromString(stringField(raw, "Amount")); err == nil {
		out.AmountInCents = ToCents(amt)
	}
	if !out.IsSuccessful && !out.IsPending {
		out.ErrorMessage = "easykash status " + status
	}
	return out, nil
}

// stringField reads a JSON value as a string regardless of whether the
// provider sent it quoted or as a number.
func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return decimal.NewFromFloat(t).String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}
