// Package utils provides common utility functions for pairtrade.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatUSD formats an amount with thousands grouping ($12,345.67).
func FormatUSD(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "n/a"
	}
	negative := amount < 0
	amount = math.Abs(amount)

	s := fmt.Sprintf("%.2f", amount)
	intPart, decPart := s[:len(s)-3], s[len(s)-3:]

	formatted := groupThousands(intPart) + decPart
	if negative {
		return "-$" + formatted
	}
	return "$" + formatted
}

// FormatPct formats a fractional value as a signed percentage.
// e.g., 0.0245 → "+2.45%", -0.0123 → "-1.23%"
func FormatPct(frac float64) string {
	if math.IsNaN(frac) || math.IsInf(frac, 0) {
		return "n/a"
	}
	pct := frac * 100
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatRatio formats a dimensionless ratio such as Sharpe.
func FormatRatio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
