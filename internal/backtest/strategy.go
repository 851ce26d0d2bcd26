package backtest

import (
	"fmt"
	"math"

	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Strategy Interface
// ════════════════════════════════════════════════════════════════════

// Strategy turns a pair's aligned prices into per-date positions.
type Strategy interface {
	// Name returns the human-readable strategy name.
	Name() string

	// Params returns the configuration the strategy was built with. It
	// keys the engine's result cache.
	Params() models.StrategyParams

	// Signals computes the strategy's view of the pair. Implementations
	// must be pure: the same pair always yields the same signals.
	Signals(p *pair.Pair) (*Signals, error)
}

// Signals is everything a strategy derives from a pair. Hedge and Spread
// are nil for strategies that do not use them.
type Signals struct {
	Hedge     []float64
	Spread    []float64
	Units     UnitState
	Positions Positions
}

// ════════════════════════════════════════════════════════════════════
// Bollinger Band Pair Strategy
// ════════════════════════════════════════════════════════════════════

// BollingerStrategy trades the spread built from rolling OLS hedge ratios
// when its z-score leaves the [-EntryZ, EntryZ] band, and closes when it
// returns past ExitZ.
type BollingerStrategy struct {
	Lookback  int
	EntryZ    float64
	ExitZ     float64
	Alignment pair.Alignment
}

// NewBollingerStrategy validates the thresholds and returns the strategy.
func NewBollingerStrategy(lookback int, entryZ, exitZ float64, align pair.Alignment) (*BollingerStrategy, error) {
	if err := validateThresholds(lookback, entryZ, exitZ); err != nil {
		return nil, err
	}
	return &BollingerStrategy{Lookback: lookback, EntryZ: entryZ, ExitZ: exitZ, Alignment: align}, nil
}

func (s *BollingerStrategy) Name() string { return "Bollinger Pair" }

func (s *BollingerStrategy) Params() models.StrategyParams {
	return models.StrategyParams{
		Lookback:  s.Lookback,
		EntryZ:    s.EntryZ,
		ExitZ:     s.ExitZ,
		Alignment: s.Alignment.String(),
	}
}

func (s *BollingerStrategy) Signals(p *pair.Pair) (*Signals, error) {
	h, err := p.HedgeRatios(s.Lookback, s.Alignment)
	if err != nil {
		return nil, err
	}
	spread, err := p.Spread(h)
	if err != nil {
		return nil, err
	}
	units, err := GenerateUnits(spread, s.Lookback, s.EntryZ, s.ExitZ)
	if err != nil {
		return nil, err
	}
	pos, err := SizePositions(units.Net, h.Slope)
	if err != nil {
		return nil, err
	}
	return &Signals{Hedge: h.Slope, Spread: spread, Units: units, Positions: pos}, nil
}

// ════════════════════════════════════════════════════════════════════
// Static Cointegration-Vector Strategy
// ════════════════════════════════════════════════════════════════════

// StaticBollingerStrategy applies the same band rules to the spread of a
// fixed cointegration vector instead of a rolling regression. A zero
// Vector is estimated from the pair with the Johansen test.
type StaticBollingerStrategy struct {
	Lookback int
	EntryZ   float64
	ExitZ    float64
	Vector   [2]float64
}

// NewStaticBollingerStrategy validates the thresholds and returns the
// strategy.
func NewStaticBollingerStrategy(lookback int, entryZ, exitZ float64, vector [2]float64) (*StaticBollingerStrategy, error) {
	if err := validateThresholds(lookback, entryZ, exitZ); err != nil {
		return nil, err
	}
	for _, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: cointegration vector must be finite, got %v", models.ErrInvalidValue, vector)
		}
	}
	return &StaticBollingerStrategy{Lookback: lookback, EntryZ: entryZ, ExitZ: exitZ, Vector: vector}, nil
}

func (s *StaticBollingerStrategy) Name() string { return "Static Bollinger Pair" }

func (s *StaticBollingerStrategy) Params() models.StrategyParams {
	return models.StrategyParams{
		Lookback:  s.Lookback,
		EntryZ:    s.EntryZ,
		ExitZ:     s.ExitZ,
		Alignment: fmt.Sprintf("static[%g,%g]", s.Vector[0], s.Vector[1]),
	}
}

func (s *StaticBollingerStrategy) Signals(p *pair.Pair) (*Signals, error) {
	if s.Lookback >= p.Len() {
		return nil, fmt.Errorf("%w: lookback %d must be less than series length %d",
			models.ErrInvalidArgument, s.Lookback, p.Len())
	}
	vector := s.Vector
	if vector == [2]float64{} {
		v, err := p.CointegrationVector()
		if err != nil {
			return nil, err
		}
		vector = v
	}
	spread, err := pair.StaticSpread(p.PrimaryClosed(), p.SecondaryClosed(), vector)
	if err != nil {
		return nil, err
	}
	units, err := GenerateUnits(spread, s.Lookback, s.EntryZ, s.ExitZ)
	if err != nil {
		return nil, err
	}
	return &Signals{Spread: spread, Units: units, Positions: StaticPositions(units.Net, vector)}, nil
}

// ════════════════════════════════════════════════════════════════════
// Constant Holding
// ════════════════════════════════════════════════════════════════════

// HoldStrategy keeps one position vector for the whole range. [1, 0] is
// buy-and-hold of the primary leg, a useful benchmark.
type HoldStrategy struct {
	Vector [2]float64
}

func (s *HoldStrategy) Name() string { return "Hold" }

func (s *HoldStrategy) Params() models.StrategyParams {
	return models.StrategyParams{Alignment: fmt.Sprintf("hold[%g,%g]", s.Vector[0], s.Vector[1])}
}

func (s *HoldStrategy) Signals(p *pair.Pair) (*Signals, error) {
	n := p.Len()
	unit := 0
	if s.Vector != [2]float64{} {
		unit = 1
	}
	net := make([]int, n)
	for t := range net {
		net[t] = unit
	}
	units := UnitState{Long: net, Short: make([]int, n), Net: net}
	return &Signals{Units: units, Positions: ConstantPositions(n, s.Vector)}, nil
}
