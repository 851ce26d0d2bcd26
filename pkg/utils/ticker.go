package utils

import (
	"fmt"
	"strings"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// Common aliases for symbols users tend to type by company name.
var tickerAliases = map[string]string{
	"COCA-COLA":  "KO",
	"COKE":       "KO",
	"PEPSI":      "PEP",
	"PEPSICO":    "PEP",
	"EXXON":      "XOM",
	"CHEVRON":    "CVX",
	"VISA":       "V",
	"MASTERCARD": "MA",
	"GOLD":       "GLD",
	"GOLDMINERS": "GDX",
	"S&P500":     "SPY",
	"SP500":      "SPY",
}

// NormalizeTicker converts user input into a canonical upper-case symbol.
// It trims whitespace, drops a leading "$" and resolves known aliases.
func NormalizeTicker(input string) string {
	t := strings.ToUpper(strings.TrimSpace(input))
	t = strings.TrimPrefix(t, "$")
	if canonical, ok := tickerAliases[t]; ok {
		return canonical
	}
	return t
}

// ToYahooTicker converts a canonical symbol into Yahoo Finance notation,
// where share classes use a dash (BRK.B becomes BRK-B).
func ToYahooTicker(symbol string) string {
	s := NormalizeTicker(symbol)
	if strings.HasPrefix(s, "^") {
		return s
	}
	return strings.ReplaceAll(s, ".", "-")
}

// ValidateSymbol reports whether symbol looks like a tradable ticker.
func ValidateSymbol(symbol string) error {
	s := NormalizeTicker(symbol)
	if s == "" {
		return fmt.Errorf("%w: symbol must not be empty", models.ErrInvalidArgument)
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '^' || r == '=':
		default:
			return fmt.Errorf("%w: symbol %q contains %q", models.ErrInvalidArgument, symbol, r)
		}
	}
	return nil
}
