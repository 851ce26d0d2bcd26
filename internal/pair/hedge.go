package pair

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// Alignment selects which date a rolling-window slope is assigned to.
//
// For the window covering indices [i-lookback, i):
//
//	AlignCurrent  stores the slope at i, the first date after the window.
//	AlignPrevious stores the slope at i-1, the last date inside the window.
//
// AlignCurrent never uses the price of the date it applies to. With
// AlignPrevious the first defined index is lookback-1 and the last index
// (n-1) is always undefined.
type Alignment int

const (
	AlignCurrent Alignment = iota
	AlignPrevious
)

// String returns the config/flag spelling of a.
func (a Alignment) String() string {
	switch a {
	case AlignPrevious:
		return "previous"
	default:
		return "current"
	}
}

// ParseAlignment parses "current" or "previous" (case-insensitive).
// The empty string selects AlignCurrent.
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "current":
		return AlignCurrent, nil
	case "previous", "prev":
		return AlignPrevious, nil
	default:
		return AlignCurrent, fmt.Errorf("%w: unknown alignment %q (want current or previous)", models.ErrInvalidArgument, s)
	}
}

// HedgeRatios is a per-date OLS slope of primary on secondary. Undefined
// dates hold NaN.
type HedgeRatios struct {
	Dates     []time.Time
	Slope     []float64
	Lookback  int
	Alignment Alignment
}

// Len returns the number of dates.
func (h HedgeRatios) Len() int { return len(h.Slope) }

// Defined reports whether the ratio at i is a finite number.
func (h HedgeRatios) Defined(i int) bool {
	v := h.Slope[i]
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Vector returns the hedge vector [1, -h] at i.
func (h HedgeRatios) Vector(i int) [2]float64 {
	return [2]float64{1, -h.Slope[i]}
}

// Vectors returns the hedge vector for every date.
func (h HedgeRatios) Vectors() [][2]float64 {
	out := make([][2]float64, len(h.Slope))
	for i := range h.Slope {
		out[i] = h.Vector(i)
	}
	return out
}

// LookbackFromFloat converts a lookback received as a number (JSON body,
// YAML) into an int, rejecting fractional values.
func LookbackFromFloat(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Trunc(v) != v {
		return 0, fmt.Errorf("%w: lookback must be an integer, got %v", models.ErrTypeMismatch, v)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: lookback must be > 0, got %v", models.ErrInvalidArgument, v)
	}
	return int(v), nil
}

// EstimateHedgeRatios regresses primary on secondary (with intercept) over
// every trailing window of lookback observations and returns the slopes
// aligned per align. The result has the same length as the inputs.
//
// A window whose secondary prices have zero variance, or that contains a
// non-finite price, yields NaN.
func EstimateHedgeRatios(primary, secondary []float64, lookback int, align Alignment) ([]float64, error) {
	n := len(primary)
	if len(secondary) != n {
		return nil, fmt.Errorf("%w: primary has %d prices, secondary has %d", models.ErrInvalidValue, n, len(secondary))
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("%w: lookback must be > 0, got %d", models.ErrInvalidArgument, lookback)
	}
	if lookback >= n {
		return nil, fmt.Errorf("%w: lookback %d must be less than series length %d", models.ErrInvalidArgument, lookback, n)
	}

	slopes := make([]float64, n)
	for i := range slopes {
		slopes[i] = math.NaN()
	}

	for i := lookback; i < n; i++ {
		slope := olsSlope(primary[i-lookback:i], secondary[i-lookback:i])
		switch align {
		case AlignPrevious:
			slopes[i-1] = slope
		default:
			slopes[i] = slope
		}
	}
	return slopes, nil
}

// olsSlope returns cov(x,y)/var(x), the slope of y = a + b*x. Both moments
// go through stat.Covariance so that y == x gives exactly 1.
func olsSlope(y, x []float64) float64 {
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			return math.NaN()
		}
	}
	vx := stat.Covariance(x, x, nil)
	if vx == 0 || math.IsNaN(vx) {
		return math.NaN()
	}
	return stat.Covariance(x, y, nil) / vx
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
