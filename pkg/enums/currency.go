package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO-4217 code accepted for checkout amounts.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyAUD Currency = "AUD"
	CurrencyCAD Currency = "CAD"
	CurrencyJPY Currency = "JPY"
	CurrencyVND Currency = "VND"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
	CurrencyAUD,
	CurrencyCAD,
	CurrencyJPY,
	CurrencyVND,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// MinorUnits returns the number of decimal places the currency allows.
func (c Currency) MinorUnits() int32 {
	switch c {
	case CurrencyJPY, CurrencyVND:
		return 0
	}
	return 2
}

// ParseCurrency converts a raw string into a Currency. Lookup is case-insensitive.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
