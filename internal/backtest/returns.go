package backtest

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// ════════════════════════════════════════════════════════════════════
// Return Series
// ════════════════════════════════════════════════════════════════════

// DailyReturns computes the strategy return of each date from the capital
// allocations. Yesterday's allocation earns today's price change:
//
//	pnl[t]      = Σ_k alloc[t-1][k] * (price_k[t]/price_k[t-1] - 1)
//	exposure[t] = Σ_k |alloc[t-1][k]|
//	r[t]        = pnl[t] / exposure[t]
//
// The first date, and any date whose exposure is zero or undefined,
// returns 0.
func DailyReturns(alloc Positions, p1, p2 []float64) ([]float64, error) {
	n := len(alloc)
	if len(p1) != n || len(p2) != n {
		return nil, fmt.Errorf("%w: %d allocations but %d and %d prices",
			models.ErrInvalidValue, n, len(p1), len(p2))
	}
	prices := [2][]float64{p1, p2}
	out := make([]float64, n)
	for t := 1; t < n; t++ {
		var pnl, exposure float64
		for k := 0; k < 2; k++ {
			a := alloc[t-1][k]
			pnl += a * (prices[k][t]/prices[k][t-1] - 1)
			exposure += math.Abs(a)
		}
		if exposure == 0 || math.IsNaN(exposure) || math.IsNaN(pnl) {
			continue
		}
		out[t] = pnl / exposure
	}
	return out, nil
}

// CumulativeReturns compounds daily returns: cum[t] = Π(1+r[0..t]) - 1.
// An undefined daily return carries the previous cumulative value forward.
func CumulativeReturns(daily []float64) []float64 {
	out := make([]float64, len(daily))
	growth := 1.0
	for t, r := range daily {
		if !math.IsNaN(r) {
			growth *= 1 + r
		}
		out[t] = growth - 1
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Scalar Metrics
// ════════════════════════════════════════════════════════════════════

// CAGR annualizes the final cumulative return over the calendar days
// between start and end: (1+cum)^(365/days) - 1.
func CAGR(cum []float64, start, end time.Time) (float64, error) {
	if len(cum) == 0 {
		return math.NaN(), fmt.Errorf("%w: cagr of an empty series", models.ErrUndefinedResult)
	}
	days := utils.CalendarDays(start, end)
	if days <= 0 {
		return math.NaN(), fmt.Errorf("%w: cagr needs end after start, got %d days", models.ErrUndefinedResult, days)
	}
	growth := 1 + cum[len(cum)-1]
	if math.IsNaN(growth) || growth < 0 {
		return math.NaN(), fmt.Errorf("%w: cagr of negative wealth %v", models.ErrUndefinedResult, growth)
	}
	return math.Pow(growth, 365/float64(days)) - 1, nil
}

// Sharpe returns sqrt(252) * mean / std of daily returns, using the sample
// standard deviation. It is undefined for fewer than two returns or zero
// volatility.
func Sharpe(daily []float64) (float64, error) {
	if len(daily) < 2 {
		return math.NaN(), fmt.Errorf("%w: sharpe needs at least 2 returns, got %d", models.ErrUndefinedResult, len(daily))
	}
	mean, std := stat.MeanStdDev(daily, nil)
	if std == 0 || math.IsNaN(std) {
		return math.NaN(), fmt.Errorf("%w: sharpe of zero-volatility returns", models.ErrUndefinedResult)
	}
	return math.Sqrt(TradingDaysPerYear) * mean / std, nil
}

// APR compounds the daily returns and annualizes by trading-day count:
// Π(1+r)^(252/n) - 1.
func APR(daily []float64) (float64, error) {
	if len(daily) == 0 {
		return math.NaN(), fmt.Errorf("%w: apr of an empty series", models.ErrUndefinedResult)
	}
	growth := 1.0
	for _, r := range daily {
		if !math.IsNaN(r) {
			growth *= 1 + r
		}
	}
	if growth < 0 {
		return math.NaN(), fmt.Errorf("%w: apr of negative wealth %v", models.ErrUndefinedResult, growth)
	}
	return math.Pow(growth, TradingDaysPerYear/float64(len(daily))) - 1, nil
}
