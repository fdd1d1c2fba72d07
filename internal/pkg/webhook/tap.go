package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
)

type tapCharge struct {
	ID        looseString `json:"id"`
	Object    looseString `json:"object"`
	Status    looseString `json:"status"`
	Amount    looseString `json:"amount"`
	Currency  looseString `json:"currency"`
	Reference struct {
		Gateway     looseString `json:"gateway"`
		Payment     looseString `json:"payment"`
		Transaction looseString `json:"transaction"`
		Order       looseString `json:"order"`
	} `json:"reference"`
	Transaction struct {
		Created looseString `json:"created"`
	} `json:"transaction"`
	Metadata map[string]looseString `json:"metadata"`
	Card     struct {
		Brand    looseString `json:"brand"`
		LastFour looseString `json:"last_four"`
	} `json:"card"`
	Source struct {
		PaymentMethod looseString `json:"payment_method"`
	} `json:"source"`
	Response struct {
		Code    looseString `json:"code"`
		Message looseString `json:"message"`
	} `json:"response"`
}

func decodeTap(body []byte) (*tapCharge, error) {
	var c tapCharge
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("%w: tap: %v", ErrMalformedPayload, err)
	}
	return &c, nil
}

// formattedAmount prints the amount with the currency's minor-unit digits,
// which is how Tap renders it inside the hashstring.
func (c *tapCharge) formattedAmount() string {
	d, err := decimal.NewFromString(c.Amount.String())
	if err != nil {
		return c.Amount.String()
	}
	return d.StringFixed(gateway.CurrencyDecimals(c.Currency.String()))
}

func (c *tapCharge) signedString() string {
	return "x_id" + c.ID.String() +
		"x_amount" + c.formattedAmount() +
		"x_currency" + c.Currency.String() +
		"x_gateway_reference" + c.Reference.Gateway.String() +
		"x_payment_reference" + c.Reference.Payment.String() +
		"x_status" + c.Status.String() +
		"x_created" + c.Transaction.Created.String()
}

func tapStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CAPTURED", "AUTHORIZED":
		return StatusSucceeded
	case "INITIATED", "IN_PROGRESS":
		return StatusPending
	case "REFUNDED":
		return StatusRefunded
	default:
		return StatusFailed
	}
}

func parseTap(body []byte) (*Payload, error) {
	c, err := decodeTap(body)
	if err != nil {
		return nil, err
	}

	ref := c.Reference.Transaction.String()
	if ref == "" {
		ref = c.Reference.Order.String()
	}
	academyID := parseUint(c.Metadata["academy_id"])
	if academyID == 0 {
		academyID = gateway.ReferenceAcademyID(ref)
	}

	p := &Payload{
		Gateway:       models.GatewayTap,
		EventType:     "charge." + strings.ToLower(c.Status.String()),
		PaymentID:     parseUint(c.Metadata["payment_id"]),
		TransactionID: c.ID.String(),
		OrderID:       c.Reference.Order.String(),
		IntentID:      ref,
		AcademyID:     academyID,
		Currency:      strings.ToUpper(c.Currency.String()),
		Status:        tapStatus(c.Status.String()),
		PaymentMethod: c.Source.PaymentMethod.String(),
		CardBrand:     c.Card.Brand.String(),
		CardLastFour:  c.Card.LastFour.String(),
		Metadata: map[string]string{
			"gateway_reference": c.Reference.Gateway.String(),
			"payment_reference": c.Reference.Payment.String(),
			"response_code":     c.Response.Code.String(),
		},
		Raw: body,
	}
	if amt := c.Amount.String(); amt != "" {
		d, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, fmt.Errorf("%w: tap amount %q", ErrMalformedPayload, amt)
		}
		p.AmountInCents = gateway.ToCents(d)
	}
	if ms, err := strconv.ParseInt(c.Transaction.Created.String(), 10, 64); err == nil && ms > 0 {
		ts := time.UnixMilli(ms).UTC()
		p.ProcessedAt = &ts
	}
	return p, nil
}
