package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
)

type easyKashNotification struct {
	ProductCode       looseString `json:"ProductCode"`
	Amount            looseString `json:"Amount"`
	ProductType       looseString `json:"ProductType"`
	PaymentMethod     looseString `json:"PaymentMethod"`
	BuyerName         looseString `json:"BuyerName"`
	BuyerEmail        looseString `json:"BuyerEmail"`
	BuyerMobile       looseString `json:"BuyerMobile"`
	Status            looseString `json:"status"`
	Voucher           looseString `json:"voucher"`
	EasykashRef       looseString `json:"easykashRef"`
	CustomerReference looseString `json:"customerReference"`
	SignatureHash     looseString `json:"signatureHash"`
}

func decodeEasyKash(body []byte) (*easyKashNotification, error) {
	var n easyKashNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: easykash: %v", ErrMalformedPayload, err)
	}
	return &n, nil
}

// signedString is the field concatenation EasyKash signs.
func (n *easyKashNotification) signedString() string {
	return strings.Join([]string{
		n.ProductCode.String(),
		n.Amount.String(),
		n.ProductType.String(),
		n.PaymentMethod.String(),
		n.Status.String(),
		n.EasykashRef.String(),
		n.CustomerReference.String(),
	}, "")
}

func easyKashStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PAID", "DELIVERED":
		return StatusSucceeded
	case "NEW", "PENDING":
		return StatusPending
	case "REFUNDED":
		return StatusRefunded
	default:
		return StatusFailed
	}
}

func parseEasyKash(body []byte) (*Payload, error) {
	n, err := decodeEasyKash(body)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		Gateway:       models.GatewayEasyKash,
		EventType:     "payment." + strings.ToLower(n.Status.String()),
		TransactionID: n.EasykashRef.String(),
		IntentID:      n.CustomerReference.String(),
		AcademyID:     gateway.ReferenceAcademyID(n.CustomerReference.String()),
		Status:        easyKashStatus(n.Status.String()),
		PaymentMethod: n.PaymentMethod.String(),
		Metadata: map[string]string{
			"product_code": n.ProductCode.String(),
			"product_type": n.ProductType.String(),
			"voucher":      n.Voucher.String(),
		},
		Raw: body,
	}
	if amt := n.Amount.String(); amt != "" {
		d, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, fmt.Errorf("%w: easykash amount %q", ErrMalformedPayload, amt)
		}
		p.AmountInCents = gateway.ToCents(d)
	}
	return p, nil
}
