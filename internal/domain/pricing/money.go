package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// DefaultCurrency is used when the caller does not name one.
const DefaultCurrency = "USD"

func init() {
	// Amounts are exchanged as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// minorUnitOverrides lists ISO 4217 currencies whose minor unit is not 2 digits.
var minorUnitOverrides = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"KWD": 3,
	"BHD": 3,
	"JOD": 3,
	"OMR": 3,
	"TND": 3,
}

// NormalizeCurrency validates an ISO 4217 alphabetic code and returns it upper-cased.
// An empty code yields DefaultCurrency.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	if len(code) != 3 {
		return "", fmt.Errorf("currency %q must be a 3-letter ISO 4217 code: %w", code, apperrors.ErrInvalidInput)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency %q must be a 3-letter ISO 4217 code: %w", code, apperrors.ErrInvalidInput)
		}
	}
	return code, nil
}

// MinorUnits returns the number of decimal places used by the currency.
func MinorUnits(currency string) int32 {
	if places, ok := minorUnitOverrides[strings.ToUpper(currency)]; ok {
		return places
	}
	return 2
}

// Round rounds an amount to the currency's minor unit using banker's rounding.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(MinorUnits(currency))
}

// IsRepresentable reports whether amount has no precision beyond the currency's minor unit.
func IsRepresentable(amount decimal.Decimal, currency string) bool {
	return amount.Equal(amount.Truncate(MinorUnits(currency)))
}
