package backtest

import (
	"fmt"
	"math"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// Positions holds one [primary, secondary] allocation per date.
type Positions [][2]float64

// Leg returns the allocation series of leg k (0 primary, 1 secondary).
func (p Positions) Leg(k int) []float64 {
	out := make([]float64, len(p))
	for t := range p {
		out[t] = p[t][k]
	}
	return out
}

// Allocations scales share ratios by each leg's price, giving the capital
// held in each instrument.
func (p Positions) Allocations(p1, p2 []float64) (Positions, error) {
	if len(p1) != len(p) || len(p2) != len(p) {
		return nil, fmt.Errorf("%w: %d positions but %d and %d prices",
			models.ErrInvalidValue, len(p), len(p1), len(p2))
	}
	out := make(Positions, len(p))
	for t := range p {
		out[t] = [2]float64{p[t][0] * p1[t], p[t][1] * p2[t]}
	}
	return out, nil
}

// SizePositions converts net units into share ratios under the rolling
// hedge vector [1, -h]. A flat unit is flat regardless of h; a non-zero
// unit with an undefined h stays undefined.
func SizePositions(units []int, h []float64) (Positions, error) {
	if len(units) != len(h) {
		return nil, fmt.Errorf("%w: %d units but %d hedge ratios", models.ErrInvalidValue, len(units), len(h))
	}
	out := make(Positions, len(units))
	for t, u := range units {
		if u == 0 {
			continue
		}
		if math.IsNaN(h[t]) {
			out[t] = [2]float64{math.NaN(), math.NaN()}
			continue
		}
		out[t] = [2]float64{float64(u), -float64(u) * h[t]}
	}
	return out, nil
}

// StaticPositions sizes units with one fixed vector for every date, as
// used with a cointegration vector.
func StaticPositions(units []int, vector [2]float64) Positions {
	out := make(Positions, len(units))
	for t, u := range units {
		out[t] = [2]float64{float64(u) * vector[0], float64(u) * vector[1]}
	}
	return out
}

// ConstantPositions holds the same vector on every one of n dates.
func ConstantPositions(n int, vector [2]float64) Positions {
	out := make(Positions, n)
	for t := range out {
		out[t] = vector
	}
	return out
}
