package pair

import (
	"fmt"
	"math"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// Spread returns primary[t] - h[t]*secondary[t] for every date, which is
// the dot product of the price vector with the hedge vector [1, -h]. An
// undefined hedge ratio yields an undefined spread.
func Spread(primary, secondary, h []float64) ([]float64, error) {
	n := len(primary)
	if len(secondary) != n || len(h) != n {
		return nil, fmt.Errorf("%w: spread inputs have lengths %d, %d and %d",
			models.ErrInvalidValue, n, len(secondary), len(h))
	}
	out := make([]float64, n)
	for t := range out {
		if math.IsNaN(h[t]) {
			out[t] = math.NaN()
			continue
		}
		out[t] = primary[t] - h[t]*secondary[t]
	}
	return out, nil
}

// StaticSpread applies a fixed cointegration vector to both price series.
func StaticSpread(primary, secondary []float64, vector [2]float64) ([]float64, error) {
	if len(primary) != len(secondary) {
		return nil, fmt.Errorf("%w: primary has %d prices, secondary has %d",
			models.ErrInvalidValue, len(primary), len(secondary))
	}
	out := make([]float64, len(primary))
	for t := range out {
		out[t] = vector[0]*primary[t] + vector[1]*secondary[t]
	}
	return out, nil
}
