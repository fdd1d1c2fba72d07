package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

// TapSignatureHeader carries Tap's hashstring.
const TapSignatureHeader = "hashstring"

// VerifySignature checks a notification against the gateway secret. It fails
// closed: a missing secret, missing signature, undecodable body or mismatch
// all return false.
func VerifySignature(req Request, secret string) bool {
	secret = strings.TrimSpace(secret)
	if secret == "" || len(req.Body) == 0 {
		return false
	}

	switch strings.ToLower(req.Gateway) {
	case models.GatewayEasyKash:
		n, err := decodeEasyKash(req.Body)
		if err != nil {
			return false
		}
		return verifyHMAC([]byte(n.signedString()), n.SignatureHash.String(), secret, sha512.New)
	case models.GatewayPaymob:
		sig := req.Query.Get("hmac")
		if sig == "" && req.Header != nil {
			sig = req.Header.Get("hmac")
		}
		n, err := decodePaymob(req.Body)
		if err != nil {
			return false
		}
		return verifyHMAC([]byte(n.Obj.signedString()), sig, secret, sha512.New)
	case models.GatewayTap:
		var sig string
		if req.Header != nil {
			sig = req.Header.Get(TapSignatureHeader)
		}
		c, err := decodeTap(req.Body)
		if err != nil {
			return false
		}
		return verifyHMAC([]byte(c.signedString()), sig, secret, sha256.New)
	default:
		return false
	}
}

// Refs are correlation ids that can tie a notification to a payment.
type Refs struct {
	TransactionID string
	OrderID       string
	IntentID      string
}

// SignedRefs returns the correlation ids covered by the gateway signature.
// Paymob and Tap echo our payment id and merchant reference back outside the
// signed fields; those are lookup hints only.
func (p *Payload) SignedRefs() Refs {
	switch p.Gateway {
	case models.GatewayPaymob:
		return Refs{TransactionID: p.TransactionID, OrderID: p.OrderID}
	case models.GatewayTap:
		return Refs{TransactionID: p.TransactionID}
	case models.GatewayEasyKash:
		return Refs{TransactionID: p.TransactionID, IntentID: p.IntentID}
	default:
		return Refs{}
	}
}

// Sign produces the lowercase hex signature a gateway would attach.
func Sign(gatewayName string, body []byte, secret string) (string, error) {
	var (
		msg string
		fn  func() hash.Hash
	)
	switch strings.ToLower(gatewayName) {
	case models.GatewayEasyKash:
		n, err := decodeEasyKash(body)
		if err != nil {
			return "", err
		}
		msg, fn = n.signedString(), sha512.New
	case models.GatewayPaymob:
		n, err := decodePaymob(body)
		if err != nil {
			return "", err
		}
		msg, fn = n.Obj.signedString(), sha512.New
	case models.GatewayTap:
		c, err := decodeTap(body)
		if err != nil {
			return "", err
		}
		msg, fn = c.signedString(), sha256.New
	default:
		return "", ErrUnsupportedGateway
	}
	mac := hmac.New(fn, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func verifyHMAC(message []byte, signature, secret string, hashFunc func() hash.Hash) bool {
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return false
	}
	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(hashFunc, []byte(secret))
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}
