package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

const redacted = "[redacted]"

var sensitiveKeys = map[string]struct{}{
	"pan":           {},
	"card_number":   {},
	"cvv":           {},
	"hmac":          {},
	"signaturehash": {},
	"hashstring":    {},
	"token":         {},
	"secret":        {},
	"first_six":     {},
	"buyermobile":   {},
}

// Sanitize returns the body as JSON with card data and signing material
// replaced, ready to be stored on the ledger row.
func Sanitize(body []byte) (datatypes.JSON, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	out, err := json.Marshal(redact(v))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func redact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				t[k] = redacted
				continue
			}
			t[k] = redact(val)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	default:
		return v
	}
}
