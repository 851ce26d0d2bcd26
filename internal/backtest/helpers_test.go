package backtest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ── Helpers ──

// seriesFrom builds a series whose i-th price falls on the i-th weekday
// from 2023-01-02.
func seriesFrom(t *testing.T, symbol string, prices []float64) *equity.Series {
	t.Helper()
	days := utils.WeekdaysBetween(utils.Date(2023, 1, 2), utils.Date(2030, 1, 1))
	bars := make([]models.OHLCV, len(prices))
	for i, p := range prices {
		bars[i] = models.OHLCV{Timestamp: days[i], Open: p, High: p, Low: p, Close: p, AdjClose: p}
	}
	s, err := equity.New(symbol, bars)
	require.NoError(t, err)
	return s
}

func newPair(t *testing.T, p1, p2 []float64) *pair.Pair {
	t.Helper()
	p, err := pair.New(seriesFrom(t, "AAA", p1), seriesFrom(t, "BBB", p2))
	require.NoError(t, err)
	return p
}

// generatePair returns a mean-reverting pair: the primary tracks twice the
// secondary plus an AR(1) deviation, so the spread crosses its bands.
func generatePair(t *testing.T, n int, seed int64) *pair.Pair {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	p1 := make([]float64, n)
	p2 := make([]float64, n)
	level, dev := 100.0, 0.0
	for i := 0; i < n; i++ {
		level += rng.NormFloat64() * 0.8
		dev = 0.7*dev + rng.NormFloat64()*1.5
		p2[i] = level
		p1[i] = 2*level + 10 + dev
	}
	return newPair(t, p1, p2)
}
