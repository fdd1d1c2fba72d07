package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
)

type paymobNotification struct {
	Type string            `json:"type"`
	Obj  paymobTransaction `json:"obj"`
}

type paymobTransaction struct {
	ID                   looseString `json:"id"`
	AmountCents          looseString `json:"amount_cents"`
	CreatedAt            looseString `json:"created_at"`
	Currency             looseString `json:"currency"`
	ErrorOccured         looseString `json:"error_occured"`
	HasParentTransaction looseString `json:"has_parent_transaction"`
	IntegrationID        looseString `json:"integration_id"`
	Is3DSecure           looseString `json:"is_3d_secure"`
	IsAuth               looseString `json:"is_auth"`
	IsCapture            looseString `json:"is_capture"`
	IsRefunded           looseString `json:"is_refunded"`
	IsStandalonePayment  looseString `json:"is_standalone_payment"`
	IsVoided             looseString `json:"is_voided"`
	Owner                looseString `json:"owner"`
	Pending              looseString `json:"pending"`
	Success              looseString `json:"success"`
	Order                struct {
		ID              looseString `json:"id"`
		MerchantOrderID looseString `json:"merchant_order_id"`
	} `json:"order"`
	SourceData struct {
		Pan     looseString `json:"pan"`
		SubType looseString `json:"sub_type"`
		Type    looseString `json:"type"`
	} `json:"source_data"`
	PaymentKeyClaims struct {
		Extra map[string]looseString `json:"extra"`
	} `json:"payment_key_claims"`
	Data struct {
		Message looseString `json:"message"`
	} `json:"data"`
}

func decodePaymob(body []byte) (*paymobNotification, error) {
	var n paymobNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: paymob: %v", ErrMalformedPayload, err)
	}
	return &n, nil
}

// signedString concatenates the transaction fields in the order Paymob
// documents for its HMAC.
func (t *paymobTransaction) signedString() string {
	return strings.Join([]string{
		t.AmountCents.String(),
		t.CreatedAt.String(),
		t.Currency.String(),
		t.ErrorOccured.String(),
		t.HasParentTransaction.String(),
		t.ID.String(),
		t.IntegrationID.String(),
		t.Is3DSecure.String(),
		t.IsAuth.String(),
		t.IsCapture.String(),
		t.IsRefunded.String(),
		t.IsStandalonePayment.String(),
		t.IsVoided.String(),
		t.Order.ID.String(),
		t.Owner.String(),
		t.Pending.String(),
		t.SourceData.Pan.String(),
		t.SourceData.SubType.String(),
		t.SourceData.Type.String(),
		t.Success.String(),
	}, "")
}

func paymobFlag(s looseString) bool {
	b, _ := strconv.ParseBool(s.String())
	return b
}

func paymobStatus(t *paymobTransaction) string {
	switch {
	case paymobFlag(t.IsRefunded) || paymobFlag(t.IsVoided):
		return StatusRefunded
	case paymobFlag(t.Pending):
		return StatusPending
	case paymobFlag(t.Success):
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

func parseUint(s looseString) uint {
	v, err := strconv.ParseUint(s.String(), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
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

func parsePaymob(body []byte) (*Payload, error) {
	n, err := decodePaymob(body)
	if err != nil {
		return nil, err
	}
	t := &n.Obj

	ref := t.Order.MerchantOrderID.String()
	extra := t.PaymentKeyClaims.Extra
	academyID := parseUint(extra["academy_id"])
	if academyID == 0 {
		academyID = gateway.ReferenceAcademyID(ref)
	}

	eventType := strings.ToLower(strings.TrimSpace(n.Type))
	if eventType == "" {
		eventType = "transaction"
	}

	p := &Payload{
		Gateway:       models.GatewayPaymob,
		EventType:     eventType,
		PaymentID:     parseUint(extra["payment_id"]),
		TransactionID: t.ID.String(),
		OrderID:       t.Order.ID.String(),
		IntentID:      ref,
		AcademyID:     academyID,
		Currency:      strings.ToUpper(t.Currency.String()),
		Status:        paymobStatus(t),
		PaymentMethod: t.SourceData.Type.String(),
		CardBrand:     t.SourceData.SubType.String(),
		CardLastFour:  lastFour(t.SourceData.Pan.String()),
		Metadata: map[string]string{
			"order_id":       t.Order.ID.String(),
			"integration_id": t.IntegrationID.String(),
		},
		Raw: body,
	}
	if msg := t.Data.Message.String(); msg != "" {
		p.Metadata["message"] = msg
	}
	if cents := t.AmountCents.String(); cents != "" {
		v, err := strconv.ParseInt(cents, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: paymob amount_cents %q", ErrMalformedPayload, cents)
		}
		p.AmountInCents = v
	}
	if ts, err := time.Parse(time.RFC3339Nano, t.CreatedAt.String()); err == nil {
		ts = ts.UTC()
		p.ProcessedAt = &ts
	} else if ts, err := time.Parse("2006-01-02T15:04:05.999999", t.CreatedAt.String()); err == nil {
		p.ProcessedAt = &ts
	}
	return p, nil
}
