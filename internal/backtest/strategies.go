package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Built-in Strategies
// ════════════════════════════════════════════════════════════════════

// StrategyFactory builds a strategy from user parameters.
type StrategyFactory func(params models.StrategyParams) (Strategy, error)

var builtinStrategies = map[string]StrategyFactory{
	"bollinger": func(p models.StrategyParams) (Strategy, error) {
		align, err := pair.ParseAlignment(p.Alignment)
		if err != nil {
			return nil, err
		}
		return NewBollingerStrategy(p.Lookback, p.EntryZ, p.ExitZ, align)
	},
	"static": func(p models.StrategyParams) (Strategy, error) {
		return NewStaticBollingerStrategy(p.Lookback, p.EntryZ, p.ExitZ, [2]float64{})
	},
	"hold": func(_ models.StrategyParams) (Strategy, error) {
		return &HoldStrategy{Vector: [2]float64{1, 0}}, nil
	},
}

// BuiltinStrategies returns the names of all built-in strategies.
func BuiltinStrategies() []string {
	names := make([]string, 0, len(builtinStrategies))
	for name := range builtinStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStrategy builds the named built-in strategy.
func NewStrategy(name string, params models.StrategyParams) (Strategy, error) {
	factory, ok := builtinStrategies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q (available: %s)",
			models.ErrInvalidArgument, name, strings.Join(BuiltinStrategies(), ", "))
	}
	return factory(params)
}

// ParamGrid expands every combination of lookbacks and thresholds,
// skipping combinations whose exit is not below entry.
func ParamGrid(lookbacks []int, entries, exits []float64, alignment string) []models.StrategyParams {
	var grid []models.StrategyParams
	for _, lb := range lookbacks {
		for _, en := range entries {
			for _, ex := range exits {
				if ex >= en {
					continue
				}
				grid = append(grid, models.StrategyParams{Lookback: lb, EntryZ: en, ExitZ: ex, Alignment: alignment})
			}
		}
	}
	return grid
}
