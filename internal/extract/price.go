package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

// Plausibility bounds for a single price reading. Values outside this band
// are discarded as parse noise (truncated digits, concatenated numbers).
const (
	MinPlausiblePrice = 1.0
	MaxPlausiblePrice = 500_000.0
)

// Plausible reports whether a parsed price falls in the accepted band.
func Plausible(price float64) bool {
	return price >= MinPlausiblePrice && price <= MaxPlausiblePrice
}

var numericToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParsePrice extracts the first numeric value from a price string.
// Grouping separators are stripped, range strings ("1,299 - 1,499") yield
// the first value, and negative or non-finite results are rejected.
// Returns nil when no usable number is present.
func ParsePrice(text string) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	token := numericToken.FindString(text)
	if token == "" {
		return nil
	}
	token = strings.ReplaceAll(token, ",", "")

	v, err := strconv.ParseFloat(token, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// CurrencyFromText guesses the ISO currency code from symbols or codes
// embedded in a price string. Empty when nothing recognizable appears.
func CurrencyFromText(text string) string {
	switch {
	case strings.Contains(text, "₹"), strings.Contains(text, "Rs."),
		strings.Contains(text, "Rs "), strings.Contains(text, "INR"):
		return "INR"
	case strings.Contains(text, "€"), strings.Contains(text, "EUR"):
		return "EUR"
	case strings.Contains(text, "£"), strings.Contains(text, "GBP"):
		return "GBP"
	case strings.Contains(text, "$"), strings.Contains(text, "USD"):
		return "USD"
	}
	return ""
}

// ValidCurrency reports whether code is a well-formed ISO 4217 code.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}
