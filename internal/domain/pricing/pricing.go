package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// Item is a priced line-item snapshot supplied by the cart collaborator.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// LineSubtotal returns UnitPrice × Quantity.
func (i Item) LineSubtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Rules holds the configurable pricing parameters.
type Rules struct {
	TaxRate                decimal.Decimal
	FreeShippingThreshold  decimal.Decimal
	FlatShippingFee        decimal.Decimal
	ExpeditedFreeThreshold decimal.Decimal
}

// DefaultRules returns the flat-rate placeholder rules: 8% tax, free shipping
// strictly above 100, otherwise 9.99.
func DefaultRules() Rules {
	return Rules{
		TaxRate:                decimal.RequireFromString("0.08"),
		FreeShippingThreshold:  decimal.NewFromInt(100),
		FlatShippingFee:        decimal.RequireFromString("9.99"),
		ExpeditedFreeThreshold: decimal.NewFromInt(200),
	}
}

// Breakdown is the priced result. Total always equals Subtotal + Tax + Shipping.
type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// ErrInvalidItems is returned for an empty or malformed item list.
var ErrInvalidItems = fmt.Errorf("invalid items: %w", apperrors.ErrInvalidInput)

// ValidateItems checks that the list is non-empty and every line has a positive
// quantity and a positive unit price expressible in the currency's minor unit.
// currency must already be normalized.
func ValidateItems(items []Item, currency string) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidItems)
	}
	for i, item := range items {
		if !item.UnitPrice.IsPositive() {
			return fmt.Errorf("%w: item %d has non-positive unit price %s", ErrInvalidItems, i, item.UnitPrice)
		}
		if !IsRepresentable(item.UnitPrice, currency) {
			return fmt.Errorf("%w: item %d unit price %s is finer than %s allows", ErrInvalidItems, i, item.UnitPrice, currency)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity %d", ErrInvalidItems, i, item.Quantity)
		}
	}
	return nil
}

// Subtotal sums the line subtotals, rounded to the currency's minor unit.
func Subtotal(items []Item, currency string) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineSubtotal())
	}
	return Round(sum, currency)
}

// Compute prices a cart. It has no side effects and is safe for concurrent use.
func Compute(items []Item, currency string, rules Rules) (Breakdown, error) {
	currency, err := NormalizeCurrency(currency)
	if err != nil {
		return Breakdown{}, err
	}
	if err := ValidateItems(items, currency); err != nil {
		return Breakdown{}, err
	}

	subtotal := Subtotal(items, currency)
	tax := Round(subtotal.Mul(rules.TaxRate), currency)
	shipping := decimal.Zero
	if !subtotal.GreaterThan(rules.FreeShippingThreshold) {
		shipping = Round(rules.FlatShippingFee, currency)
	}

	b := Breakdown{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
		Currency: currency,
	}
	if !b.Subtotal.IsPositive() || !b.Total.IsPositive() {
		return Breakdown{}, fmt.Errorf("%w: total %s is not positive", ErrInvalidItems, b.Total)
	}
	return b, nil
}
