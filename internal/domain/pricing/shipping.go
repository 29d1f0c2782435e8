package pricing

import (
	"github.com/shopspring/decimal"
)

// ShippingOption is one entry of the shipping catalog.
type ShippingOption struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	EstimatedDays int             `json:"estimatedDays"`
	Carrier       string          `json:"carrier"`
}

// ShippingQuote lists the available options for a cart.
type ShippingQuote struct {
	Options                []ShippingOption `json:"shippingOptions"`
	Currency               string           `json:"currency"`
	FreeShippingThreshold  decimal.Decimal  `json:"freeShippingThreshold"`
	ExpeditedFreeThreshold decimal.Decimal  `json:"expeditedFreeThreshold"`
}

var (
	expeditedDiscountedFee = decimal.RequireFromString("9.99")
	expeditedFee           = decimal.RequireFromString("19.99")
	overnightFee           = decimal.RequireFromString("29.99")
)

// QuoteShipping returns the fixed shipping catalog priced for the cart subtotal.
// Rates do not depend on the destination.
func QuoteShipping(items []Item, currency string, rules Rules) (*ShippingQuote, error) {
	currency, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	if err := ValidateItems(items, currency); err != nil {
		return nil, err
	}

	subtotal := Subtotal(items, currency)

	standard := Round(rules.FlatShippingFee, currency)
	if subtotal.GreaterThan(rules.FreeShippingThreshold) {
		standard = decimal.Zero
	}
	expedited := expeditedFee
	if subtotal.GreaterThan(rules.ExpeditedFreeThreshold) {
		expedited = expeditedDiscountedFee
	}

	return &ShippingQuote{
		Options: []ShippingOption{
			{
				ID:            "standard",
				Name:          "Standard Shipping",
				Description:   "5-7 business days",
				Price:         standard,
				EstimatedDays: 7,
				Carrier:       "USPS",
			},
			{
				ID:            "expedited",
				Name:          "Expedited Shipping",
				Description:   "2-3 business days",
				Price:         expedited,
				EstimatedDays: 3,
				Carrier:       "UPS",
			},
			{
				ID:            "overnight",
				Name:          "Overnight Shipping",
				Description:   "Next business day",
				Price:         overnightFee,
				EstimatedDays: 1,
				Carrier:       "FedEx",
			},
		},
		Currency:               currency,
		FreeShippingThreshold:  rules.FreeShippingThreshold,
		ExpeditedFreeThreshold: rules.ExpeditedFreeThreshold,
	}, nil
}
