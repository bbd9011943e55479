package usecase

import (
	"errors"
	"testing"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrice_Amounts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "currency prefix and thousands separator", raw: "US$1,398.00", want: "1398"},
		{name: "euro with decimal comma", raw: "€45,50", want: "45.5"},
		{name: "european thousands and decimal comma", raw: "1.398,00 €", want: "1398"},
		{name: "comma thousands only", raw: "1,398", want: "1398"},
		{name: "single decimal digit after comma", raw: "12,5", want: "12.5"},
		{name: "plain number", raw: "120.00", want: "120"},
		{name: "surrounding whitespace and text", raw: "  Now only $80.00!  ", want: "80"},
		{name: "pound sign", raw: "£19.99", want: "19.99"},
		{name: "zero", raw: "0.00", want: "0"},
		{name: "abbreviation period before comma thousands", raw: "Rs. 1,299", want: "1299"},
		{name: "abbreviation period without space", raw: "Rs.1,299", want: "1299"},
		{name: "abbreviation period before european amount", raw: "Bs. 1.299,00", want: "1299"},
		{name: "dash cents", raw: "Price: 1.299,-", want: "1299"},
		{name: "leading decimal point", raw: "$.99", want: "0.99"},
		{name: "sentence full stop", raw: "Only $80.00.", want: "80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePrice(tt.raw, "", "", "USD")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount.String())
		})
	}
}

func TestNormalizePrice_PinnedFixtures(t *testing.T) {
	got, err := NormalizePrice("US$1,398.00", "", "", "USD")
	require.NoError(t, err)
	assert.Equal(t, "1398.00", got.Amount.StringFixed(2))

	got, err = NormalizePrice("€45,50", "EUR", "", "USD")
	require.NoError(t, err)
	assert.Equal(t, "45.50", got.Amount.StringFixed(2))
	assert.Equal(t, "EUR", got.Currency)

	got, err = NormalizePrice("Bs. 1.299,00", "VES", "", "USD")
	require.NoError(t, err)
	assert.Equal(t, "1299.00", got.Amount.StringFixed(2))

	got, err = NormalizePrice("Rs. 1,299", "INR", "", "USD")
	require.NoError(t, err)
	assert.Equal(t, "1299", got.Amount.String())
}

func TestNormalizePrice_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace", raw: "   "},
		{name: "no digits", raw: "Out of stock"},
		{name: "multiple decimal points", raw: "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizePrice(tt.raw, "USD", "", "USD")
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidPrice))
		})
	}
}

func TestNormalizePrice_CurrencyResolution(t *testing.T) {
	tests := []struct {
		name         string
		currencyCode string
		fallback     string
		defaultCode  string
		want         string
	}{
		{name: "extracted code wins", currencyCode: "EUR", fallback: "USD", defaultCode: "GBP", want: "EUR"},
		{name: "extracted code is upper-cased", currencyCode: " eur ", fallback: "USD", defaultCode: "GBP", want: "EUR"},
		{name: "falls back to stored currency", currencyCode: "", fallback: "MXN", defaultCode: "USD", want: "MXN"},
		{name: "invalid extracted code is ignored", currencyCode: "$", fallback: "MXN", defaultCode: "USD", want: "MXN"},
		{name: "falls back to default", currencyCode: "", fallback: "", defaultCode: "GBP", want: "GBP"},
		{name: "nothing configured", currencyCode: "", fallback: "", defaultCode: "", want: FallbackCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePrice("10.00", tt.currencyCode, tt.fallback, tt.defaultCode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Currency)
		})
	}
}
