package backtest

import (
	"fmt"
	"math"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Unit State Machine
// ════════════════════════════════════════════════════════════════════

// UnitState is the per-date position in units of the spread.
type UnitState struct {
	Z     []float64 `json:"-"`
	Long  []int     `json:"long"`  // 0 or 1
	Short []int     `json:"short"` // 0 or -1
	Net   []int     `json:"net"`   // Long + Short
}

// Len returns the number of dates.
func (u UnitState) Len() int { return len(u.Net) }

// Transitions counts the dates on which the net unit changed.
func (u UnitState) Transitions() int {
	count := 0
	for t := 1; t < len(u.Net); t++ {
		if u.Net[t] != u.Net[t-1] {
			count++
		}
	}
	return count
}

// DaysInMarket counts dates with a non-zero net unit.
func (u UnitState) DaysInMarket() int {
	count := 0
	for _, v := range u.Net {
		if v != 0 {
			count++
		}
	}
	return count
}

// leg is one side of the Bollinger state machine. It is either flat (0)
// or holding its unit. Exit takes precedence over entry on the same date.
type leg struct {
	unit  int
	enter func(z float64) bool
	exit  func(z float64) bool
	state int
}

func (l *leg) step(z float64) int {
	switch {
	case math.IsNaN(z):
	case l.exit(z):
		l.state = 0
	case l.enter(z):
		l.state = l.unit
	}
	return l.state
}

// GenerateUnits runs the Bollinger band rules over the spread's rolling
// z-score. Long enters when z < -entryZ and exits when z > -exitZ; short
// enters when z > entryZ and exits when z < exitZ. Comparisons are strict
// and an undefined z holds the previous state. Both legs start flat.
//
// Configurations with exitZ >= entryZ are accepted; keeping the legs
// mutually exclusive is up to the caller.
func GenerateUnits(spread []float64, lookback int, entryZ, exitZ float64) (UnitState, error) {
	if err := validateThresholds(lookback, entryZ, exitZ); err != nil {
		return UnitState{}, err
	}

	z := ZScores(spread, lookback)
	long := &leg{
		unit:  1,
		enter: func(z float64) bool { return z < -entryZ },
		exit:  func(z float64) bool { return z > -exitZ },
	}
	short := &leg{
		unit:  -1,
		enter: func(z float64) bool { return z > entryZ },
		exit:  func(z float64) bool { return z < exitZ },
	}

	n := len(spread)
	u := UnitState{Z: z, Long: make([]int, n), Short: make([]int, n), Net: make([]int, n)}
	for t := 0; t < n; t++ {
		if t == 0 {
			// Both legs are flat on the first date whatever z says.
			u.Long[0], u.Short[0] = 0, 0
			continue
		}
		u.Long[t] = long.step(z[t])
		u.Short[t] = short.step(z[t])
		u.Net[t] = u.Long[t] + u.Short[t]
	}
	return u, nil
}

func validateThresholds(lookback int, entryZ, exitZ float64) error {
	if lookback <= 0 {
		return fmt.Errorf("%w: lookback must be > 0, got %d", models.ErrInvalidArgument, lookback)
	}
	if math.IsNaN(entryZ) || math.IsInf(entryZ, 0) || entryZ <= 0 {
		return fmt.Errorf("%w: entry z must be a positive number, got %v", models.ErrInvalidArgument, entryZ)
	}
	if math.IsNaN(exitZ) || math.IsInf(exitZ, 0) || exitZ < 0 {
		return fmt.Errorf("%w: exit z must be a non-negative number, got %v", models.ErrInvalidArgument, exitZ)
	}
	return nil
}
