// Package gateway holds the per-provider adapters used to open hosted
// checkouts and to ask a provider, server to server, what happened to a
// transaction. Adapters are built from an explicit Credentials value; none of
// them read process-wide configuration.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrUnsupportedGateway = errors.New("unsupported gateway")
	ErrMissingReference   = errors.New("transaction reference is required")
)

// Adapter is the contract every provider integration fulfils.
type Adapter interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	VerifyPayment(ctx context.Context, transactionID string) (*VerificationResult, error)
}

type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type ChargeRequest struct {
	PaymentID   uint
	AcademyID   uint
	Amount      decimal.Decimal
	Currency    string
	Description string
	// Reference is our merchant reference, echoed back by the provider in
	// webhooks and redirects.
	Reference   string
	Customer    Customer
	RedirectURL string
	WebhookURL  string
	Metadata    map[string]string
}

type ChargeResult struct {
	RedirectURL string
	// IntentID is what we store as payments.gateway_intent_id (customer
	// reference for EasyKash, special reference for Paymob, order reference for Tap).
	IntentID      string
	TransactionID string
	// OrderID is the provider's own order id when it assigns one at charge
	// creation (Paymob).
	OrderID string
}

type VerificationResult struct {
	IsSuccessful  bool
	IsPending     bool
	TransactionID string
	// Reference is the merchant reference the provider holds for this
	// transaction; OrderID its own order id, when it has one. Both come from
	// the provider response, never from the browser.
	Reference string
	OrderID   string
	// AmountInCents is zero when the provider response carried no amount.
	AmountInCents int64
	Currency      string
	CardBrand     string
	LastFour      string
	PaymentMethod string
	ErrorMessage  string
	RawResponse   map[string]interface{}
}

type Options struct {
	// Timeout bounds every outbound call. Requests are never retried; the
	// provider redelivers webhooks on its own schedule.
	Timeout time.Duration
}

// Factory builds an adapter for one tenant's credentials.
type Factory func(creds Credentials) (Adapter, error)

// NewFactory returns the production factory.
func NewFactory(opts Options) Factory {
	return func(creds Credentials) (Adapter, error) {
		return New(creds, opts)
	}
}

func New(creds Credentials, opts Options) (Adapter, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	switch creds.Gateway {
	case models.GatewayEasyKash:
		return NewEasyKash(creds, opts), nil
	case models.GatewayPaymob:
		return NewPaymob(creds, opts), nil
	case models.GatewayTap:
		return NewTap(creds, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, creds.Gateway)
	}
}

// IsSupported reports whether name is one of the integrated gateways.
func IsSupported(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case models.GatewayEasyKash, models.GatewayPaymob, models.GatewayTap:
		return true
	default:
		return false
	}
}

func newHTTPClient(baseURL string, opts Options) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
}

func httpError(gw string, resp *resty.Response) error {
	body := resp.String()
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Errorf("%s request failed: status=%d body=%s", gw, resp.StatusCode(), body)
}
