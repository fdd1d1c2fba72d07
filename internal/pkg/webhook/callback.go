package webhook

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

// CallbackParams are the correlation hints a gateway appends to the browser
// redirect. None of them are trusted; they only locate the payment and the id
// to verify server to server.
type CallbackParams struct {
	Gateway string
	// PaymentID is our own id, appended to the redirect URL at checkout.
	PaymentID     uint
	TransactionID string
	OrderID       string
	Reference     string
	// ClaimedStatus is whatever the query said. Logged, never acted on.
	ClaimedStatus string
	// VerificationID is the id the adapter's VerifyPayment expects.
	VerificationID string
}

func ParseCallback(gatewayName string, q url.Values) (*CallbackParams, error) {
	get := func(k string) string { return strings.TrimSpace(q.Get(k)) }

	p := &CallbackParams{Gateway: strings.ToLower(strings.TrimSpace(gatewayName))}
	if id, err := strconv.ParseUint(get("payment"), 10, 64); err == nil {
		p.PaymentID = uint(id)
	}

	switch p.Gateway {
	case models.GatewayEasyKash:
		p.Reference = get("customerReference")
		p.TransactionID = get("providerRefNum")
		p.ClaimedStatus = get("status")
		p.VerificationID = p.Reference
	case models.GatewayPaymob:
		p.TransactionID = get("id")
		p.OrderID = get("order")
		p.Reference = get("merchant_order_id")
		switch {
		case get("pending") == "true":
			p.ClaimedStatus = StatusPending
		case get("success") == "true":
			p.ClaimedStatus = StatusSucceeded
		case get("success") != "":
			p.ClaimedStatus = StatusFailed
		}
		p.VerificationID = p.TransactionID
	case models.GatewayTap:
		p.TransactionID = get("tap_id")
		p.VerificationID = p.TransactionID
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, gatewayName)
	}

	if p.VerificationID == "" {
		return nil, fmt.Errorf("%w: %s callback without a verifiable reference", ErrMalformedPayload, p.Gateway)
	}
	return p, nil
}
