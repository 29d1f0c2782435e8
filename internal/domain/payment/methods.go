package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Supported payment methods.
const (
	MethodCreditCard = "credit_card"
	MethodDebitCard  = "debit_card"
	MethodPayPal     = "paypal"
	MethodApplePay   = "apple_pay"
	MethodGooglePay  = "google_pay"
)

// DefaultMethod is suggested to clients when they have no preference.
const DefaultMethod = MethodCreditCard

// FeeSchedule is the processing fee charged by a method: a percentage of the
// amount plus a fixed part.
type FeeSchedule struct {
	Percentage decimal.Decimal `json:"percentage"`
	Fixed      decimal.Decimal `json:"fixed"`
}

// Fee returns the fee for amount before rounding.
func (f FeeSchedule) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.Percentage).Div(decimal.NewFromInt(100)).Add(f.Fixed)
}

// Method describes a supported payment method.
type Method struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Enabled     bool        `json:"enabled"`
	Fees        FeeSchedule `json:"fees"`
}

// MethodCatalog is the list of methods offered to clients.
type MethodCatalog struct {
	PaymentMethods []Method `json:"paymentMethods"`
	DefaultMethod  string   `json:"defaultMethod"`
}

func fees(pct, fixed string) FeeSchedule {
	return FeeSchedule{
		Percentage: decimal.RequireFromString(pct),
		Fixed:      decimal.RequireFromString(fixed),
	}
}

var catalog = []Method{
	{Type: MethodCreditCard, Name: "Credit Card", Description: "Visa, MasterCard, American Express", Enabled: true, Fees: fees("2.9", "0.30")},
	{Type: MethodDebitCard, Name: "Debit Card", Description: "Bank debit cards", Enabled: true, Fees: fees("1.9", "0.30")},
	{Type: MethodPayPal, Name: "PayPal", Description: "Pay with your PayPal account", Enabled: true, Fees: fees("3.49", "0.49")},
	{Type: MethodApplePay, Name: "Apple Pay", Description: "Pay with Touch ID or Face ID", Enabled: true, Fees: fees("2.9", "0.30")},
	{Type: MethodGooglePay, Name: "Google Pay", Description: "Pay with Google Pay", Enabled: true, Fees: fees("2.9", "0.30")},
}

// ListPaymentMethods returns the static method catalog.
func ListPaymentMethods() MethodCatalog {
	methods := make([]Method, len(catalog))
	copy(methods, catalog)
	return MethodCatalog{PaymentMethods: methods, DefaultMethod: DefaultMethod}
}

// LookupMethod returns the enabled catalog entry for method.
func LookupMethod(method string) (Method, bool) {
	for _, m := range catalog {
		if m.Type == method && m.Enabled {
			return m, true
		}
	}
	return Method{}, false
}

// PaymentDetails is the raw instrument data supplied with a payment.
// It is never persisted; see Redact.
type PaymentDetails struct {
	CardNumber string `json:"cardNumber"`
	Brand      string `json:"brand"`
}

// RedactedDetails is the stored, non-sensitive view of the instrument.
type RedactedDetails struct {
	Type  string  `json:"type"`
	Last4 *string `json:"last4"`
	Brand *string `json:"brand"`
}

// Redact keeps only the method, the last four digits of the card number and
// the brand.
func Redact(method string, details *PaymentDetails) RedactedDetails {
	out := RedactedDetails{Type: method}
	if details == nil {
		return out
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, details.CardNumber)
	if digits != "" {
		if len(digits) > 4 {
			digits = digits[len(digits)-4:]
		}
		out.Last4 = &digits
	}
	if brand := strings.TrimSpace(details.Brand); brand != "" {
		out.Brand = &brand
	}
	return out
}
