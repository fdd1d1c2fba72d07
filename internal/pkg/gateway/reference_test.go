package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestReference_RoundTrip(t *testing.T) {
	ref := NewReference(42)
	assert.Regexp(t, `^ac42_[0-9a-f]{32}$`, ref)
	assert.Equal(t, uint(42), ReferenceAcademyID(ref))
}

func TestReferenceAcademyID_UnknownFormats(t *testing.T) {
	for _, in := range []string{"", "12345", "acx_1", "ac12", "order-ac3_x"} {
		assert.Zero(t, ReferenceAcademyID(in), in)
	}
}

func TestCurrencyDecimals(t *testing.T) {
	assert.Equal(t, int32(3), CurrencyDecimals("kwd"))
	assert.Equal(t, int32(3), CurrencyDecimals("BHD"))
	assert.Equal(t, int32(2), CurrencyDecimals("EGP"))
	assert.Equal(t, int32(2), CurrencyDecimals("SAR"))
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(10000), ToCents(decimal.RequireFromString("100.00")))
	assert.Equal(t, int64(9999), ToCents(decimal.RequireFromString("99.99")))
	assert.Equal(t, int64(1), ToCents(decimal.RequireFromString("0.005")))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("EasyKash"))
	assert.True(t, IsSupported(" tap "))
	assert.False(t, IsSupported("stripe"))
}
