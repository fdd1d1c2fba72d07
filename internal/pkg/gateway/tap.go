package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

const defaultTapBaseURL = "https://api.tap.company"

type Tap struct {
	creds  Credentials
	client *resty.Client
}

func NewTap(creds Credentials, opts Options) *Tap {
	base := creds.BaseURL
	if base == "" {
		base = defaultTapBaseURL
	}
	return &Tap{
		creds:  creds,
		client: newHTTPClient(base, opts).SetAuthToken(creds.SecretKey),
	}
}

func (t *Tap) Name() string { return models.GatewayTap }

type tapChargeRequest struct {
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Reference   map[string]string `json:"reference"`
	Metadata    map[string]string `json:"metadata"`
	Customer    map[string]any    `json:"customer"`
	Source      map[string]string `json:"source"`
	Post        map[string]string `json:"post,omitempty"`
	Redirect    map[string]string `json:"redirect"`
}

func (t *Tap) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, ErrMissingReference
	}
	currency := strings.ToUpper(req.Currency)

	metadata := map[string]string{
		"academy_id": strconv.FormatUint(uint64(req.AcademyID), 10),
		"payment_id": strconv.FormatUint(uint64(req.PaymentID), 10),
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	body := tapChargeRequest{
		Amount:      req.Amount.StringFixed(CurrencyDecimals(currency)),
		Currency:    currency,
		Description: req.Description,
		Reference:   map[string]string{"transaction": req.Reference, "order": req.Reference},
		Metadata:    metadata,
		Customer: map[string]any{
			"first_name": req.Customer.FirstName,
			"last_name":  req.Customer.LastName,
			"email":      req.Customer.Email,
		},
		Source:   map[string]string{"id": "src_all"},
		Redirect: map[string]string{"url": req.RedirectURL},
	}
	if req.WebhookURL != "" {
		body.Post = map[string]string{"url": req.WebhookURL}
	}

	var out struct {
		ID          string `json:"id"`
		Transaction struct {
			URL string `json:"url"`
		} `json:"transaction"`
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v2/charges")
	if err != nil {
		return nil, fmt.Errorf("tap create charge: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("tap", resp)
	}
	if out.Transaction.URL == "" {
		return nil, fmt.Errorf("tap create charge: empty transaction url")
	}
	return &ChargeResult{
		RedirectURL:   out.Transaction.URL,
		IntentID:      req.Reference,
		TransactionID: out.ID,
	}, nil
}

func (t *Tap) VerifyPayment(ctx context.Context, chargeID string) (*VerificationResult, error) {
	id := strings.TrimSpace(chargeID)
	if id == "" {
		return nil, ErrMissingReference
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/v2/charges/{id}")
	if err != nil {
		return nil, fmt.Errorf("tap retrieve charge: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("tap", resp)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("tap retrieve charge: decode: %w", err)
	}

	status := strings.ToUpper(stringField(raw, "status"))
	out := &VerificationResult{
		IsSuccessful:  status == "CAPTURED" || status == "AUTHORIZED",
		IsPending:     status == "INITIATED" || status == "IN_PROGRESS",
		TransactionID: stringField(raw, "id"),
		Currency:      stringField(raw, "currency"),
		RawResponse:   raw,
	}
	if amt, err := decimal.NewFromString(stringField(raw, "amount")); err == nil {
		out.AmountInCents = ToCents(amt)
	}
	if ref, ok := raw["reference"].(map[string]interface{}); ok {
		out.Reference = stringField(ref, "transaction")
		if out.Reference == "" {
			out.Reference = stringField(ref, "order")
		}
	}
	if card, ok := raw["card"].(map[string]interface{}); ok {
		out.CardBrand = stringField(card, "brand")
		out.LastFour = stringField(card, "last_four")
	}
	if src, ok := raw["source"].(map[string]interface{}); ok {
		out.PaymentMethod = stringField(src, "payment_method")
	}
	if !out.IsSuccessful && !out.IsPending {
		out.ErrorMessage = "tap charge status " + status
		if r, ok := raw["response"].(map[string]interface{}); ok {
			if msg := stringField(r, "message"); msg != "" {
				out.ErrorMessage = msg
			}
		}
	}
	return out, nil
}
