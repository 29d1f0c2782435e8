package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

func TestQuoteShipping(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name      string
		price     string
		standard  string
		expedited string
	}{
		{"small cart", "50", "9.99", "19.99"},
		{"free standard", "150", "0", "19.99"},
		{"discounted expedited", "250", "0", "9.99"},
		{"at expedited threshold", "200", "0", "19.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := QuoteShipping([]Item{{ProductID: "p1", UnitPrice: dec(tt.price), Quantity: 1}}, "USD", rules)
			require.NoError(t, err)
			require.Len(t, q.Options, 3)

			assert.Equal(t, "standard", q.Options[0].ID)
			assertAmount(t, tt.standard, q.Options[0].Price)
			assert.Equal(t, "USPS", q.Options[0].Carrier)

			assert.Equal(t, "expedited", q.Options[1].ID)
			assertAmount(t, tt.expedited, q.Options[1].Price)

			assert.Equal(t, "overnight", q.Options[2].ID)
			assertAmount(t, "29.99", q.Options[2].Price)
			assert.Equal(t, 1, q.Options[2].EstimatedDays)

			assertAmount(t, "100", q.FreeShippingThreshold)
			assertAmount(t, "200", q.ExpeditedFreeThreshold)
		})
	}

	t.Run("rejects empty cart", func(t *testing.T) {
		_, err := QuoteShipping(nil, "USD", rules)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
