package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Positions
// ════════════════════════════════════════════════════════════════════

func TestSizePositions(t *testing.T) {
	nan := math.NaN()
	pos, err := SizePositions([]int{0, 1, -1, 1}, []float64{nan, 2, 0.5, nan})
	require.NoError(t, err)

	assert.Equal(t, [2]float64{0, 0}, pos[0])
	assert.Equal(t, [2]float64{1, -2}, pos[1])
	assert.Equal(t, [2]float64{-1, 0.5}, pos[2])
	assert.True(t, math.IsNaN(pos[3][0]) && math.IsNaN(pos[3][1]))

	_, err = SizePositions([]int{1}, []float64{1, 2})
	assert.ErrorIs(t, err, models.ErrInvalidValue)
}

func TestStaticPositions(t *testing.T) {
	pos := StaticPositions([]int{0, 1, -1}, [2]float64{0.8, -1.6})
	assert.Equal(t, Positions{{0, 0}, {0.8, -1.6}, {-0.8, 1.6}}, pos)
	assert.Equal(t, []float64{0, -1.6, 1.6}, pos.Leg(1))
}

func TestAllocations(t *testing.T) {
	pos := Positions{{1, -2}, {-1, 0.5}}
	alloc, err := pos.Allocations([]float64{10, 20}, []float64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, Positions{{10, -6}, {-20, 2}}, alloc)

	_, err = pos.Allocations([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, models.ErrInvalidValue)
}

// ════════════════════════════════════════════════════════════════════
// Return Series
// ════════════════════════════════════════════════════════════════════

func TestDailyReturnsUsesPreviousAllocation(t *testing.T) {
	alloc := Positions{{100, -50}, {0, 0}, {0, 0}}
	p1 := []float64{10, 11, 12}
	p2 := []float64{5, 4.5, 4}

	r, err := DailyReturns(alloc, p1, p2)
	require.NoError(t, err)

	assert.Equal(t, 0.0, r[0])
	// (100*0.1 + -50*-0.1) / 150
	assert.InDelta(t, 0.1, r[1], 1e-12)
	// Flat yesterday: zero exposure returns 0.
	assert.Equal(t, 0.0, r[2])
}

func TestDailyReturnsUndefinedExposure(t *testing.T) {
	nan := math.NaN()
	alloc := Positions{{nan, nan}, {1, 0}}
	r, err := DailyReturns(alloc, []float64{1, 2}, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, r)

	_, err = DailyReturns(alloc, []float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, models.ErrInvalidValue)
}

func TestCumulativeReturns(t *testing.T) {
	cum := CumulativeReturns([]float64{0, 0.1, math.NaN(), -0.5})
	require.Len(t, cum, 4)
	assert.Equal(t, 0.0, cum[0])
	assert.InDelta(t, 0.1, cum[1], 1e-12)
	assert.InDelta(t, 0.1, cum[2], 1e-12)
	assert.InDelta(t, -0.45, cum[3], 1e-12)
}

// ════════════════════════════════════════════════════════════════════
// Scalar Metrics
// ════════════════════════════════════════════════════════════════════

func TestCAGR(t *testing.T) {
	start := utils.Date(2020, 1, 1)
	end := start.AddDate(0, 0, 730)

	got, err := CAGR([]float64{0, 0.05, 0.21}, start, end)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got, 1e-12)
}

func TestCAGRUndefined(t *testing.T) {
	d := utils.Date(2020, 1, 1)

	_, err := CAGR([]float64{0.1}, d, d)
	assert.ErrorIs(t, err, models.ErrUndefinedResult)

	_, err = CAGR([]float64{-1.5}, d, d.AddDate(1, 0, 0))
	assert.ErrorIs(t, err, models.ErrUndefinedResult)

	_, err = CAGR(nil, d, d.AddDate(1, 0, 0))
	assert.ErrorIs(t, err, models.ErrUndefinedResult)
}

func TestSharpeKnownValue(t *testing.T) {
	got, err := Sharpe([]float64{0.01, 0.02, 0.03})
	require.NoError(t, err)
	// mean 0.02, sample std 0.01
	assert.InDelta(t, 2*math.Sqrt(252), got, 1e-9)
}

func TestSharpeScaleInvariant(t *testing.T) {
	daily := []float64{0.004, -0.012, 0.007, 0.0, 0.015, -0.003, 0.009}
	base, err := Sharpe(daily)
	require.NoError(t, err)

	for _, c := range []float64{0.5, 3, 250} {
		scaled := make([]float64, len(daily))
		for i, r := range daily {
			scaled[i] = c * r
		}
		got, err := Sharpe(scaled)
		require.NoError(t, err)
		assert.InDelta(t, base, got, 1e-9, "scale %v", c)
	}
}

func TestSharpeUndefined(t *testing.T) {
	got, err := Sharpe([]float64{0.01, 0.01, 0.01})
	assert.ErrorIs(t, err, models.ErrUndefinedResult)
	assert.True(t, math.IsNaN(got))

	_, err = Sharpe([]float64{0.01})
	assert.ErrorIs(t, err, models.ErrUndefinedResult)
}

func TestAPR(t *testing.T) {
	daily := make([]float64, 126)
	for i := range daily {
		daily[i] = 0.001
	}
	got, err := APR(daily)
	require.NoError(t, err)
	assert.InDelta(t, math.Pow(1.001, 252)-1, got, 1e-12)

	_, err = APR(nil)
	assert.ErrorIs(t, err, models.ErrUndefinedResult)
}

func TestMaxDrawdown(t *testing.T) {
	dd, days := MaxDrawdown([]float64{0, 0.2, -0.04, 0.1, 0.3, 0.25})
	assert.InDelta(t, 0.2, dd, 1e-12)
	assert.Equal(t, 2, days)

	dd, days = MaxDrawdown(nil)
	assert.Equal(t, 0.0, dd)
	assert.Equal(t, 0, days)
}

func TestSortino(t *testing.T) {
	daily := []float64{0.02, -0.01, 0.03, -0.02}
	got, err := Sortino(daily, 0)
	require.NoError(t, err)
	// mean 0.005, downside dev sqrt((0.0001+0.0004)/4)
	want := 0.005 / math.Sqrt(0.0005/4) * math.Sqrt(252)
	assert.InDelta(t, want, got, 1e-9)

	_, err = Sortino([]float64{0.01, 0.02}, 0)
	assert.ErrorIs(t, err, models.ErrUndefinedResult)

	// a 2.52% annual rate is 0.0001 per day, removed before the mean
	got, err = Sortino(daily, 0.0252)
	require.NoError(t, err)
	down := (0.0101*0.0101 + 0.0201*0.0201) / 4
	assert.InDelta(t, 0.0049/math.Sqrt(down)*math.Sqrt(252), got, 1e-9)
}
