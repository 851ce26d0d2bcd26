package models

import (
	"math"
	"time"
)

// SignalType represents a trading signal direction.
type SignalType string

const (
	SignalLong  SignalType = "LONG"
	SignalShort SignalType = "SHORT"
	SignalFlat  SignalType = "FLAT"
)

// SignalFromUnit maps a net unit value to its signal direction.
func SignalFromUnit(unit int) SignalType {
	switch {
	case unit > 0:
		return SignalLong
	case unit < 0:
		return SignalShort
	default:
		return SignalFlat
	}
}

// StrategyParams is the configuration a pairs backtest is keyed by.
type StrategyParams struct {
	Lookback  int     `mapstructure:"lookback" json:"lookback" yaml:"lookback"`
	EntryZ    float64 `mapstructure:"entry_z" json:"entry_z" yaml:"entry_z"`
	ExitZ     float64 `mapstructure:"exit_z" json:"exit_z" yaml:"exit_z"`
	Alignment string  `mapstructure:"alignment" json:"alignment" yaml:"alignment"`
}

// PairBacktestResult represents the outcome of a pairs backtest run.
type PairBacktestResult struct {
	ID           string         `json:"id" yaml:"id"`
	StrategyName string         `json:"strategy_name" yaml:"strategy_name"`
	Primary      string         `json:"primary" yaml:"primary"`
	Secondary    string         `json:"secondary" yaml:"secondary"`
	Params       StrategyParams `json:"params" yaml:"params"`
	From         time.Time      `json:"from" yaml:"from"`
	To           time.Time      `json:"to" yaml:"to"`
	TradingDays  int            `json:"trading_days" yaml:"trading_days"`

	TotalReturn     float64  `json:"total_return" yaml:"total_return"`
	CAGR            *float64 `json:"cagr,omitempty" yaml:"cagr,omitempty"`
	SharpeRatio     *float64 `json:"sharpe_ratio,omitempty" yaml:"sharpe_ratio,omitempty"`
	SortinoRatio    *float64 `json:"sortino_ratio,omitempty" yaml:"sortino_ratio,omitempty"`
	APR             *float64 `json:"apr,omitempty" yaml:"apr,omitempty"`
	MaxDrawdown     float64  `json:"max_drawdown" yaml:"max_drawdown"`
	MaxDrawdownDays int      `json:"max_drawdown_days" yaml:"max_drawdown_days"`
	Transitions     int      `json:"transitions" yaml:"transitions"`
	DaysInMarket    int      `json:"days_in_market" yaml:"days_in_market"`

	// NetReturn is the commission- and budget-constrained return; nil when
	// the cost model was not applied.
	NetReturn *float64 `json:"net_return,omitempty" yaml:"net_return,omitempty"`

	Daily      []SeriesPoint `json:"daily_returns,omitempty" yaml:"-"`
	Cumulative []SeriesPoint `json:"cumulative_returns,omitempty" yaml:"-"`
	Units      []int         `json:"units,omitempty" yaml:"-"`

	Duration time.Duration `json:"duration_ns" yaml:"-"`
}

// SeriesPoint represents a point on a date-indexed series.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// PairOrder is one leg order produced by the commission-constrained simulation.
type PairOrder struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"` // signed share delta
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
}

// OptionalFloat returns nil for NaN or infinite values so results can be
// serialized; encoding/json rejects non-finite floats.
func OptionalFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NullableSeries converts a series into pointers, mapping undefined
// entries to nil.
func NullableSeries(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = OptionalFloat(v)
	}
	return out
}
