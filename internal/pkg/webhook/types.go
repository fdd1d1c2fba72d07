// Package webhook turns raw gateway notifications into one canonical payload.
// Nothing in here touches the database: signatures are checked and payloads
// normalized before any ledger or payment write happens.
package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Normalized statuses. Every gateway-specific status maps onto one of these.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPending   = "pending"
	StatusRefunded  = "refunded"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

// Request is an inbound notification exactly as received.
type Request struct {
	Gateway string
	Body    []byte
	Header  http.Header
	Query   url.Values
}

// Payload is the canonical, gateway-neutral webhook.
type Payload struct {
	Gateway   string `validate:"required,oneof=easykash paymob tap"`
	EventID   string
	EventType string
	// PaymentID is set when the gateway echoes our own payment id back. It is
	// never signed; see SignedRefs.
	PaymentID     uint
	TransactionID string `validate:"required"`
	OrderID       string
	// IntentID is the merchant reference we sent when creating the charge.
	IntentID      string
	AcademyID     uint
	AmountInCents int64  `validate:"gte=0"`
	Currency      string `validate:"omitempty,len=3"`
	Status        string `validate:"required,oneof=succeeded failed pending refunded"`
	ProcessedAt   *time.Time
	PaymentMethod string
	CardBrand     string
	CardLastFour  string `validate:"omitempty,len=4,numeric"`
	Metadata      map[string]string
	Raw           []byte `validate:"-"`
}

// IdempotencyKey is the gateway's own event id when it sent one, otherwise
// "<gateway>:<transaction id>:<normalized status>".
func (p *Payload) IdempotencyKey() string {
	if id := strings.TrimSpace(p.EventID); id != "" {
		return id
	}
	return strings.ToLower(p.Gateway) + ":" + strings.TrimSpace(p.TransactionID) + ":" + p.Status
}

func (p *Payload) IsSuccessful() bool {
	return p.Status == StatusSucceeded
}

// looseString accepts a JSON string, number, bool or null. Non-string values
// keep their literal JSON text so signature strings match what was signed.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*s = ""
	case strings.HasPrefix(raw, `"`):
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		*s = ""
	default:
		*s = looseString(raw)
	}
	return nil
}

func (s looseString) String() string {
	return strings.TrimSpace(string(s))
}
