package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Performance Metrics
// ════════════════════════════════════════════════════════════════════

// Metrics collects the scalar performance figures of a return series.
// Undefined figures are NaN.
type Metrics struct {
	TotalReturn     float64
	CAGR            float64
	Sharpe          float64
	Sortino         float64
	APR             float64
	MaxDrawdown     float64
	MaxDrawdownDays int
}

// ────────────────────────────────────────────────────────────────────
// Maximum Drawdown
// ────────────────────────────────────────────────────────────────────

// MaxDrawdown returns the deepest peak-to-trough fall of the wealth curve
// 1+cum, as a positive fraction of the peak, and the longest number of
// dates spent below a previous peak.
func MaxDrawdown(cum []float64) (float64, int) {
	if len(cum) == 0 {
		return 0, 0
	}

	peak := 1 + cum[0]
	maxDD := 0.0
	longest, current := 0, 0

	for _, c := range cum {
		wealth := 1 + c
		if wealth >= peak {
			peak = wealth
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
		if peak > 0 {
			if dd := (peak - wealth) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, longest
}

// ────────────────────────────────────────────────────────────────────
// Sortino Ratio (annualized, downside deviation only)
// ────────────────────────────────────────────────────────────────────

// Sortino annualizes mean excess return over downside deviation.
// riskFreeRate is annual.
func Sortino(daily []float64, riskFreeRate float64) (float64, error) {
	if len(daily) < 2 {
		return math.NaN(), fmt.Errorf("%w: sortino needs at least 2 returns", models.ErrUndefinedResult)
	}

	dailyRf := riskFreeRate / TradingDaysPerYear
	excess := make([]float64, len(daily))
	for i, r := range daily {
		excess[i] = r - dailyRf
	}

	var downsideSqSum float64
	for _, er := range excess {
		if er < 0 {
			downsideSqSum += er * er
		}
	}
	downsideDev := math.Sqrt(downsideSqSum / float64(len(excess)))
	if downsideDev == 0 {
		return math.NaN(), fmt.Errorf("%w: sortino without downside returns", models.ErrUndefinedResult)
	}
	return stat.Mean(excess, nil) / downsideDev * math.Sqrt(TradingDaysPerYear), nil
}
