package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/shopspring/decimal"
)

// FallbackCurrency is used when neither the extraction nor the stored product names a currency.
const FallbackCurrency = "USD"

var (
	// Anything that is not a digit or a decimal point
	nonPriceCharsRegex = regexp.MustCompile(`[^0-9.]`)

	// A trailing comma followed by one or two digits is a decimal comma ("€45,50", "1.398,00 €")
	decimalCommaRegex = regexp.MustCompile(`,(\d{1,2})\D*$`)

	// Dash cents after a trailing comma ("1.299,-", "45,–")
	dashCentsRegex = regexp.MustCompile(`,[-–—]+(\D*)$`)

	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// NormalizePrice converts a loosely formatted price string into a decimal
// amount and resolves its currency. Currency precedence: the extracted code,
// then fallbackCurrency (usually the product's stored currency), then
// defaultCurrency, then FallbackCurrency.
//
// Separators: a "." that follows a letter or is not followed by a digit is
// punctuation ("Rs. 1,299", "$80.00."), not a separator. "," is a thousands
// separator unless it is the last separator in the string and is followed by
// one or two digits or by dashes, in which case it is the decimal point.
// Everything other than digits and "." is then stripped.
func NormalizePrice(raw, currencyCode, fallbackCurrency, defaultCurrency string) (domain.Price, error) {
	cleaned := cleanPriceString(raw)
	if cleaned == "" {
		return domain.Price{}, fmt.Errorf("%w: %q", domain.ErrInvalidPrice, raw)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return domain.Price{}, fmt.Errorf("%w: %q", domain.ErrInvalidPrice, raw)
	}

	return domain.Price{
		Amount:   amount,
		Currency: ResolveCurrency(currencyCode, fallbackCurrency, defaultCurrency),
	}, nil
}

// ResolveCurrency returns the first valid ISO 4217 code among the candidates.
func ResolveCurrency(candidates ...string) string {
	for _, c := range candidates {
		if code, ok := normalizeCurrencyCode(c); ok {
			return code
		}
	}
	return FallbackCurrency
}

func normalizeCurrencyCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyCodeRegex.MatchString(code) {
		return "", false
	}
	return code, true
}

func cleanPriceString(raw string) string {
	s := dropPunctuationPeriods(strings.TrimSpace(raw))
	s = dashCentsRegex.ReplaceAllString(s, ",00${1}")
	if m := decimalCommaRegex.FindStringSubmatchIndex(s); m != nil && !strings.Contains(s[m[0]:], ".") {
		// "1.398,00" -> "1398.00"
		s = strings.ReplaceAll(s[:m[0]], ".", "") + "." + s[m[2]:m[3]]
	}
	return nonPriceCharsRegex.ReplaceAllString(s, "")
}

func dropPunctuationPeriods(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == '.' {
			afterLetter := i > 0 && unicode.IsLetter(runes[i-1])
			beforeDigit := i+1 < len(runes) && unicode.IsDigit(runes[i+1])
			if afterLetter || !beforeDigit {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
