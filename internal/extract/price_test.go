package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"₹1,299.00", 1299},
		{"Rs. 45,999", 45999},
		{"$129.99", 129.99},
		{"1,299 - 1,499", 1299},
		{"Price: 899 only", 899},
		{"2499.50", 2499.50},
	}
	for _, tc := range cases {
		got := ParsePrice(tc.in)
		require.NotNil(t, got, tc.in)
		assert.InDelta(t, tc.want, *got, 0.001, tc.in)
	}
}

func TestParsePriceRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "free", "N/A", "call for price", "---"} {
		assert.Nil(t, ParsePrice(in), in)
	}
}

func TestPlausible(t *testing.T) {
	assert.True(t, Plausible(1))
	assert.True(t, Plausible(499_999))
	assert.True(t, Plausible(500_000))
	assert.False(t, Plausible(0.5))
	assert.False(t, Plausible(0))
	assert.False(t, Plausible(500_001))
}

func TestCurrencyFromText(t *testing.T) {
	assert.Equal(t, "INR", CurrencyFromText("₹1,299"))
	assert.Equal(t, "INR", CurrencyFromText("Rs. 999"))
	assert.Equal(t, "USD", CurrencyFromText("$12.99"))
	assert.Equal(t, "EUR", CurrencyFromText("€45"))
	assert.Equal(t, "GBP", CurrencyFromText("£30"))
	assert.Empty(t, CurrencyFromText("1299"))
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("INR"))
	assert.True(t, ValidCurrency("USD"))
	assert.False(t, ValidCurrency(""))
	assert.False(t, ValidCurrency("RUPEES"))
}
