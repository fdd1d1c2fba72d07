package webhook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

var ErrUnsupportedGateway = errors.New("unsupported gateway")

var validate = validator.New()

type parser func(body []byte) (*Payload, error)

var parsers = map[string]parser{
	models.GatewayEasyKash: parseEasyKash,
	models.GatewayPaymob:   parsePaymob,
	models.GatewayTap:      parseTap,
}

// Normalize parses and validates a gateway body into a Payload. Errors wrap
// ErrMalformedPayload or ErrUnsupportedGateway.
func Normalize(gatewayName string, body []byte) (*Payload, error) {
	parse, ok := parsers[strings.ToLower(strings.TrimSpace(gatewayName))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, gatewayName)
	}
	p, err := parse(body)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, p.Gateway, err)
	}
	return p, nil
}

// PeekAcademyID reads the tenant a notification claims to belong to, without
// validating it. Used only to pick the signing secret; the result must not be
// trusted until the signature has been verified.
func PeekAcademyID(gatewayName string, body []byte) uint {
	parse, ok := parsers[strings.ToLower(strings.TrimSpace(gatewayName))]
	if !ok {
		return 0
	}
	p, err := parse(body)
	if err != nil {
		return 0
	}
	return p.AcademyID
}
