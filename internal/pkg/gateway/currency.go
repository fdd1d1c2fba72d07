package gateway

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyDecimals returns the number of minor-unit digits a provider uses
// when printing amounts in the given currency.
func CurrencyDecimals(currency string) int32 {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "KWD", "BHD", "OMR", "JOD":
		return 3
	default:
		return 2
	}
}

// ToCents converts a major-unit amount into minor units (x100, rounded half
// away from zero).
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
