package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Rolling Statistics
// ════════════════════════════════════════════════════════════════════

func TestRollingMeanStd(t *testing.T) {
	mean, std := RollingMeanStd([]float64{1, 2, 3, 4, math.NaN(), 6, 7, 8}, 3)

	for i := 0; i < 2; i++ {
		assert.True(t, math.IsNaN(mean[i]) && math.IsNaN(std[i]), "warm-up index %d", i)
	}
	assert.InDelta(t, 2.0, mean[2], 1e-12)
	assert.InDelta(t, 1.0, std[2], 1e-12) // sample std of {1,2,3}
	assert.InDelta(t, 3.0, mean[3], 1e-12)

	// Windows touching the NaN at index 4 are undefined.
	for i := 4; i <= 6; i++ {
		assert.True(t, math.IsNaN(mean[i]), "index %d", i)
	}
	assert.InDelta(t, 7.0, mean[7], 1e-12)
}

func TestZScoresZeroDeviation(t *testing.T) {
	z := ZScores([]float64{5, 5, 5, 5}, 2)
	for i, v := range z {
		if !math.IsNaN(v) {
			t.Errorf("z[%d] = %v, want NaN for a flat window", i, v)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Unit State Machine
// ════════════════════════════════════════════════════════════════════

func TestGenerateUnitsGolden(t *testing.T) {
	spread := []float64{0, 0, 0, 0, 3, 3, -3, -3, 0, 0}
	u, err := GenerateUnits(spread, 3, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 1, 1, 0, 0}, u.Long)
	assert.Equal(t, []int{0, 0, 0, 0, -1, -1, 0, 0, -1, -1}, u.Short)
	assert.Equal(t, []int{0, 0, 0, 0, -1, -1, 1, 1, -1, -1}, u.Net)

	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(u.Z[i]), "z[%d] should be NaN", i)
	}
	assert.InDelta(t, 2/math.Sqrt(3), u.Z[4], 1e-12)
	assert.InDelta(t, -4/math.Sqrt(12), u.Z[6], 1e-12)

	assert.Equal(t, 3, u.Transitions())
	assert.Equal(t, 6, u.DaysInMarket())
}

func TestGenerateUnitsNoCrossingHoldsFlat(t *testing.T) {
	// With a window of 5 the sample z-score is bounded by 4/sqrt(5) < 2,
	// so an entry threshold of 2 can never trigger.
	spread := []float64{1, -2, 3, 0.5, -1, 4, 2, -3, 0, 1, 2.5, -0.5}
	u, err := GenerateUnits(spread, 5, 2, 0.5)
	require.NoError(t, err)
	for i, v := range u.Net {
		if v != 0 {
			t.Errorf("Net[%d] = %d, want 0", i, v)
		}
	}
	assert.Equal(t, 0, u.Transitions())
}

func TestLegStateMachine(t *testing.T) {
	long := &leg{
		unit:  1,
		enter: func(z float64) bool { return z < -1 },
		exit:  func(z float64) bool { return z > 0 },
	}
	steps := []struct {
		z    float64
		want int
	}{
		{-1, 0},         // equal to the threshold does not enter
		{-1.0001, 1},    // enter
		{math.NaN(), 1}, // undefined holds
		{0, 1},          // equal to the exit threshold does not exit
		{-3, 1},         // re-entry while long holds
		{0.1, 0},        // exit
		{0.5, 0},
	}
	for i, s := range steps {
		if got := long.step(s.z); got != s.want {
			t.Errorf("step %d (z=%v) = %d, want %d", i, s.z, got, s.want)
		}
	}
}

func TestLegExitOverridesEntry(t *testing.T) {
	// exit threshold beyond entry: z=-1.5 satisfies both rules.
	long := &leg{
		unit:  1,
		enter: func(z float64) bool { return z < -1 },
		exit:  func(z float64) bool { return z > -2 },
	}
	if got := long.step(-1.5); got != 0 {
		t.Errorf("step(-1.5) = %d, want 0 (exit wins)", got)
	}
	if got := long.step(-2.5); got != 1 {
		t.Errorf("step(-2.5) = %d, want 1", got)
	}
}

func TestGenerateUnitsValidation(t *testing.T) {
	spread := []float64{1, 2, 3, 4}
	tests := []struct {
		name         string
		lookback     int
		entry, exitZ float64
	}{
		{"zero lookback", 0, 1, 0},
		{"negative lookback", -2, 1, 0},
		{"zero entry", 2, 0, 0},
		{"negative entry", 2, -1, 0},
		{"negative exit", 2, 1, -0.5},
		{"NaN entry", 2, math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateUnits(spread, tt.lookback, tt.entry, tt.exitZ)
			assert.ErrorIs(t, err, models.ErrInvalidArgument)
		})
	}
}
