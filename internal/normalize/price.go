package normalize

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCurrency is assumed when the source declares none.
const DefaultCurrency = "USD"

var currencySymbols = map[string]string{
	"$":  "USD",
	"€":  "EUR",
	"£":  "GBP",
	"C$": "CAD",
	"A$": "AUD",
	"¥":  "JPY",
}

var pricePattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

var errNoPrice = errors.New("no numeric price")

// ParsePrice extracts a non-negative decimal from a raw price string such as
// "$1,299.99", "1299.99 USD", or "1299". Returns the price and the currency
// hint found in the string ("" when none).
func ParsePrice(raw string) (float64, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", errNoPrice
	}

	currency := ""
	for symbol, code := range currencySymbols {
		if strings.Contains(raw, symbol) {
			currency = code
			break
		}
	}
	// "C$" contains "$"; prefer the longer symbol.
	if strings.Contains(raw, "C$") {
		currency = "CAD"
	} else if strings.Contains(raw, "A$") {
		currency = "AUD"
	}

	match := pricePattern.FindString(raw)
	if match == "" {
		return 0, currency, errNoPrice
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, currency, errNoPrice
	}
	if value < 0 {
		return 0, currency, errNoPrice
	}

	return value, currency, nil
}

// NormalizeCurrency uppercases a currency code and falls back to USD for
// anything that is not a 3-letter code.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return DefaultCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return DefaultCurrency
		}
	}
	return code
}
