package utils

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// TruncateDecimal truncates x toward zero to the given number of decimal
// places and returns the exact decimal value.
func TruncateDecimal(x float64, decimals int) (decimal.Decimal, error) {
	if decimals < 0 {
		return decimal.Zero, fmt.Errorf("%w: decimal places must be >= 0, got %d", models.ErrInvalidArgument, decimals)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return decimal.Zero, fmt.Errorf("%w: cannot truncate non-finite value %v", models.ErrInvalidValue, x)
	}
	return decimal.NewFromFloat(x).Truncate(int32(decimals)), nil
}

// Truncate truncates x toward zero to the given number of decimal places.
// Truncate(1.9999999, 2) is 1.99.
func Truncate(x float64, decimals int) (float64, error) {
	d, err := TruncateDecimal(x, decimals)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// DecimalsFromFloat converts a decimal-places argument received as a number
// (JSON, flags) into an int, rejecting fractional values.
func DecimalsFromFloat(v float64) (int, error) {
	if math.IsNaN(v) || math.Trunc(v) != v {
		return 0, fmt.Errorf("%w: decimal places must be an integer, got %v", models.ErrTypeMismatch, v)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: decimal places must be >= 0, got %v", models.ErrInvalidArgument, v)
	}
	return int(v), nil
}

// TruncateFloatDecimals is Truncate for callers that carry the decimal
// places as a float.
func TruncateFloatDecimals(x, decimals float64) (float64, error) {
	dec, err := DecimalsFromFloat(decimals)
	if err != nil {
		return 0, err
	}
	return Truncate(x, dec)
}
