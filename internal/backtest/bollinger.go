package backtest

import (
	"fmt"

	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
)

// Evaluation is a strategy's full output on one pair.
type Evaluation struct {
	Signals     *Signals
	Allocations Positions
	Daily       []float64
	Cumulative  []float64
}

// Evaluate runs strategy s on p and derives the return series.
func Evaluate(s Strategy, p *pair.Pair) (*Evaluation, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: strategy is nil", models.ErrInvalidArgument)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: pair is nil", models.ErrTypeMismatch)
	}
	sig, err := s.Signals(p)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", s.Name(), p.Name(), err)
	}
	p1, p2 := p.PrimaryClosed(), p.SecondaryClosed()
	alloc, err := sig.Positions.Allocations(p1, p2)
	if err != nil {
		return nil, err
	}
	daily, err := DailyReturns(alloc, p1, p2)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Signals:     sig,
		Allocations: alloc,
		Daily:       daily,
		Cumulative:  CumulativeReturns(daily),
	}, nil
}

// ════════════════════════════════════════════════════════════════════
// BollingerPair
// ════════════════════════════════════════════════════════════════════

// BollingerPair binds a Bollinger strategy configuration to a pair. Every
// accessor recomputes from the pair's prices; use Engine for cached runs.
type BollingerPair struct {
	pair     *pair.Pair
	strategy *BollingerStrategy
}

// NewBollingerPair validates the configuration against the pair and uses
// AlignCurrent hedge ratios.
func NewBollingerPair(p *pair.Pair, lookback int, entryZ, exitZ float64) (*BollingerPair, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: pair must not be nil", models.ErrTypeMismatch)
	}
	s, err := NewBollingerStrategy(lookback, entryZ, exitZ, pair.AlignCurrent)
	if err != nil {
		return nil, err
	}
	if lookback >= p.Len() {
		return nil, fmt.Errorf("%w: lookback %d must be less than the pair's %d dates",
			models.ErrInvalidArgument, lookback, p.Len())
	}
	return &BollingerPair{pair: p, strategy: s}, nil
}

// WithAlignment returns a copy using the given hedge-ratio alignment.
func (b *BollingerPair) WithAlignment(a pair.Alignment) *BollingerPair {
	s := *b.strategy
	s.Alignment = a
	return &BollingerPair{pair: b.pair, strategy: &s}
}

// Pair returns the underlying pair.
func (b *BollingerPair) Pair() *pair.Pair { return b.pair }

// Strategy returns the strategy configuration.
func (b *BollingerPair) Strategy() *BollingerStrategy { return b.strategy }

// HedgeRatios returns the rolling OLS hedge ratios.
func (b *BollingerPair) HedgeRatios() (pair.HedgeRatios, error) {
	return b.pair.HedgeRatios(b.strategy.Lookback, b.strategy.Alignment)
}

// Units returns the long, short and net unit series.
func (b *BollingerPair) Units() (UnitState, error) {
	sig, err := b.strategy.Signals(b.pair)
	if err != nil {
		return UnitState{}, err
	}
	return sig.Units, nil
}

// Positions returns the per-date share ratios unit*[1, -h].
func (b *BollingerPair) Positions() (Positions, error) {
	sig, err := b.strategy.Signals(b.pair)
	if err != nil {
		return nil, err
	}
	return sig.Positions, nil
}

// DailyReturns returns the strategy's daily returns.
func (b *BollingerPair) DailyReturns() ([]float64, error) {
	ev, err := Evaluate(b.strategy, b.pair)
	if err != nil {
		return nil, err
	}
	return ev.Daily, nil
}

// CumulativeReturns returns the compounded returns.
func (b *BollingerPair) CumulativeReturns() ([]float64, error) {
	ev, err := Evaluate(b.strategy, b.pair)
	if err != nil {
		return nil, err
	}
	return ev.Cumulative, nil
}

// CAGR annualizes the cumulative return over the pair's calendar range.
func (b *BollingerPair) CAGR() (float64, error) {
	cum, err := b.CumulativeReturns()
	if err != nil {
		return 0, err
	}
	return CAGR(cum, b.pair.Start(), b.pair.End())
}

// Sharpe returns the annualized Sharpe ratio of the daily returns.
func (b *BollingerPair) Sharpe() (float64, error) {
	daily, err := b.DailyReturns()
	if err != nil {
		return 0, err
	}
	return Sharpe(daily)
}

// APR returns the trading-day annualized return.
func (b *BollingerPair) APR() (float64, error) {
	daily, err := b.DailyReturns()
	if err != nil {
		return 0, err
	}
	return APR(daily)
}

// NetReturn replays the positions as whole-share orders under cm.
func (b *BollingerPair) NetReturn(cm CostModel) (CostResult, error) {
	pos, err := b.Positions()
	if err != nil {
		return CostResult{}, err
	}
	return SimulateCosts(NewCostInput(b.pair, pos, b.strategy.Lookback), cm)
}
