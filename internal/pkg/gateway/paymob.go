package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

const defaultPaymobBaseURL = "https://accept.paymob.com"

type Paymob struct {
	creds  Credentials
	client *resty.Client
}

func NewPaymob(creds Credentials, opts Options) *Paymob {
	base := creds.BaseURL
	if base == "" {
		base = defaultPaymobBaseURL
	}
	return &Paymob{creds: creds, client: newHTTPClient(base, opts)}
}

func (p *Paymob) Name() string { return models.GatewayPaymob }

type paymobBillingData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Apartment   string `json:"apartment"`
	Floor       string `json:"floor"`
	Street      string `json:"street"`
	Building    string `json:"building"`
	City        string `json:"city"`
	Country     string `json:"country"`
	State       string `json:"state"`
}

type paymobIntentionRequest struct {
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	PaymentMethods   []int64           `json:"payment_methods"`
	Items            []map[string]any  `json:"items"`
	BillingData      paymobBillingData `json:"billing_data"`
	SpecialReference string            `json:"special_reference"`
	NotificationURL  string            `json:"notification_url,omitempty"`
	RedirectionURL   string            `json:"redirection_url,omitempty"`
	Extras           map[string]string `json:"extras,omitempty"`
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "NA"
	}
	return s
}

func (p *Paymob) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, ErrMissingReference
	}
	integrationID, err := strconv.ParseInt(p.creds.IntegrationID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("paymob integration id %q: %w", p.creds.IntegrationID, err)
	}

	cents := ToCents(req.Amount)
	extras := map[string]string{
		"academy_id": strconv.FormatUint(uint64(req.AcademyID), 10),
		"payment_id": strconv.FormatUint(uint64(req.PaymentID), 10),
	}
	for k, v := range req.Metadata {
		extras[k] = v
	}

	body := paymobIntentionRequest{
		Amount:         cents,
		Currency:       strings.ToUpper(req.Currency),
		PaymentMethods: []int64{integrationID},
		Items: []map[string]any{{
			"name":     orNA(req.Description),
			"amount":   cents,
			"quantity": 1,
		}},
		BillingData: paymobBillingData{
			FirstName:   orNA(req.Customer.FirstName),
			LastName:    orNA(req.Customer.LastName),
			Email:       orNA(req.Customer.Email),
			PhoneNumber: orNA(req.Customer.Phone),
			Apartment:   "NA",
			Floor:       "NA",
			Street:      "NA",
			Building:    "NA",
			City:        "NA",
			Country:     "NA",
			State:       "NA",
		},
		SpecialReference: req.Reference,
		NotificationURL:  req.WebhookURL,
		RedirectionURL:   req.RedirectURL,
		Extras:           extras,
	}

	var out struct {
		ID               string      `json:"id"`
		ClientSecret     string      `json:"client_secret"`
		IntentionOrderID json.Number `json:"intention_order_id"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Token "+p.creds.SecretKey).
		SetBody(body).
		SetResult(&out).
		Post("/v1/intention/")
	if err != nil {
		return nil, fmt.Errorf("paymob create intention: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("paymob", resp)
	}
	if out.ClientSecret == "" {
		return nil, fmt.Errorf("paymob create intention: empty client_secret")
	}

	redirect := fmt.Sprintf("%s/unifiedcheckout/?publicKey=%s&clientSecret=%s",
		p.client.BaseURL, p.creds.PublicKey, out.ClientSecret)
	return &ChargeResult{RedirectURL: redirect, IntentID: req.Reference, OrderID: out.IntentionOrderID.String()}, nil
}

func (p *Paymob) authToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"api_key": p.creds.APIKey}).
		SetResult(&out).
		Post("/api/auth/tokens")
	if err != nil {
		return "", fmt.Errorf("paymob auth: %w", err)
	}
	if resp.IsError() {
		return "", httpError("paymob", resp)
	}
	if out.Token == "" {
		return "", fmt.Errorf("paymob auth: empty token")
	}
	return out.Token, nil
}

func (p *Paymob) VerifyPayment(ctx context.Context, transactionID string) (*VerificationResult, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return nil, ErrMissingReference
	}
	token, err := p.authToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("id", id).
		Get("/api/acceptance/transactions/{id}")
	if err != nil {
		return nil, fmt.Errorf("paymob inquire: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("paymob", resp)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("paymob inquire: decode: %w", err)
	}

	success := boolField(raw, "success")
	pending := boolField(raw, "pending")
	refunded := boolField(raw, "is_refunded") || boolField(raw, "is_voided")
	out := &VerificationResult{
		IsSuccessful:  success && !pending && !refunded,
		IsPending:     pending,
		TransactionID: stringField(raw, "id"),
		Currency:      stringField(raw, "currency"),
		RawResponse:   raw,
	}
	if cents, err := strconv.ParseInt(stringField(raw, "amount_cents"), 10, 64); err == nil {
		out.AmountInCents = cents
	}
	if order, ok := raw["order"].(map[string]interface{}); ok {
		out.OrderID = stringField(order, "id")
		out.Reference = stringField(order, "merchant_order_id")
	}
	if src, ok := raw["source_data"].(map[string]interface{}); ok {
		out.CardBrand = stringField(src, "sub_type")
		out.PaymentMethod = stringField(src, "type")
		out.LastFour = lastFour(stringField(src, "pan"))
	}
	if !out.IsSuccessful && !out.IsPending {
		out.ErrorMessage = "paymob transaction not successful"
		if data, ok := raw["data"].(map[string]interface{}); ok {
			if msg := stringField(data, "message"); msg != "" {
				out.ErrorMessage = msg
			}
		}
	}
	return out, nil
}

func boolField(m map[string]interface{}, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

func lastFour(pan string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, pan)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}
