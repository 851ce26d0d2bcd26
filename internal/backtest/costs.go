package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Commission and Budget Simulation
// ════════════════════════════════════════════════════════════════════

// CostModel describes how theoretical positions become whole-share orders
// and what each order costs.
type CostModel struct {
	Decimals     int     `mapstructure:"decimals" yaml:"decimals" json:"decimals"`                // ratio precision; shares = trunc(pos, Decimals) * 10^Decimals
	Rate         float64 `mapstructure:"rate" yaml:"rate" json:"rate"`                            // commission per share
	Minimum      float64 `mapstructure:"minimum" yaml:"minimum" json:"minimum"`                   // minimum commission per non-zero order
	InitialUnits float64 `mapstructure:"initial_units" yaml:"initial_units" json:"initial_units"` // starting cash buys this many shares of each leg
}

// DefaultCostModel returns a per-share broker schedule of $0.0035 with a
// $0.35 minimum, trading thousandths of the hedge vector.
func DefaultCostModel() CostModel {
	return CostModel{
		Decimals:     3,
		Rate:         0.0035,
		Minimum:      0.35,
		InitialUnits: 1000,
	}
}

// Validate checks the model's ranges.
func (c CostModel) Validate() error {
	if c.Decimals < 0 {
		return fmt.Errorf("%w: cost decimals must be >= 0, got %d", models.ErrInvalidArgument, c.Decimals)
	}
	if c.Rate < 0 || c.Minimum < 0 {
		return fmt.Errorf("%w: commission rate and minimum must be >= 0", models.ErrInvalidArgument)
	}
	if c.InitialUnits <= 0 {
		return fmt.Errorf("%w: initial units must be > 0, got %v", models.ErrInvalidArgument, c.InitialUnits)
	}
	return nil
}

// Commission returns the fee of an order of qty shares: zero for no order,
// otherwise max(|qty|*Rate, Minimum).
func (c CostModel) Commission(qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	fee := qty.Abs().Mul(decimal.NewFromFloat(c.Rate))
	return decimal.Max(fee, decimal.NewFromFloat(c.Minimum))
}

// CostInput is everything the cost simulation reads.
type CostInput struct {
	Dates     []time.Time
	Symbols   [2]string
	Positions Positions
	P1, P2    []float64
	Lookback  int
}

// NewCostInput assembles the simulation input for positions on p.
func NewCostInput(p *pair.Pair, pos Positions, lookback int) CostInput {
	p1, p2 := p.Symbols()
	return CostInput{
		Dates:     p.Dates(),
		Symbols:   [2]string{p1, p2},
		Positions: pos,
		P1:        p.PrimaryClosed(),
		P2:        p.SecondaryClosed(),
		Lookback:  lookback,
	}
}

// CommissionReturn is SimulateCosts for callers that only need the final
// return and hold no dates or symbols.
func CommissionReturn(pos Positions, p1, p2 []float64, lookback int, cm CostModel) (float64, error) {
	res, err := SimulateCosts(CostInput{
		Dates:     make([]time.Time, len(pos)),
		Positions: pos,
		P1:        p1,
		P2:        p2,
		Lookback:  lookback,
	}, cm)
	if err != nil {
		return 0, err
	}
	return res.Return, nil
}

// StrategyCosts runs s on p and replays its positions under cm.
func StrategyCosts(s Strategy, p *pair.Pair, cm CostModel) (CostResult, error) {
	if s == nil || p == nil {
		return CostResult{}, fmt.Errorf("%w: strategy and pair are required", models.ErrInvalidArgument)
	}
	sig, err := s.Signals(p)
	if err != nil {
		return CostResult{}, err
	}
	return SimulateCosts(NewCostInput(p, sig.Positions, s.Params().Lookback), cm)
}

// CostResult is the outcome of the cost simulation.
type CostResult struct {
	InitialBudget float64            `json:"initial_budget"`
	FinalBudget   float64            `json:"final_budget"`
	Return        float64            `json:"return"`
	Commission    float64            `json:"commission"`
	Orders        []models.PairOrder `json:"orders"`
}

// SimulateCosts replays the positions as whole-share orders. Shares held
// on date i in [lookback, n-1) are trunc(pos, Decimals) * 10^Decimals;
// every other date is flat, so the last date liquidates. Each order moves
// cash by -qty*price and pays its commission. The starting cash is
// InitialUnits shares of each leg at the first prices, truncated to cents.
// Undefined positions count as flat.
func SimulateCosts(in CostInput, cm CostModel) (CostResult, error) {
	if err := cm.Validate(); err != nil {
		return CostResult{}, err
	}
	n := len(in.Positions)
	if n < 2 || len(in.P1) != n || len(in.P2) != n || len(in.Dates) != n {
		return CostResult{}, fmt.Errorf("%w: cost simulation needs aligned inputs of at least 2 dates", models.ErrInvalidValue)
	}
	if in.Lookback < 0 || in.Lookback >= n {
		return CostResult{}, fmt.Errorf("%w: lookback %d out of range for %d dates", models.ErrInvalidArgument, in.Lookback, n)
	}

	scale := decimal.New(1, int32(cm.Decimals))
	held := make([][2]decimal.Decimal, n)
	for i := in.Lookback; i < n-1; i++ {
		for k := 0; k < 2; k++ {
			v := in.Positions[i][k]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			tr, err := utils.TruncateDecimal(v, cm.Decimals)
			if err != nil {
				return CostResult{}, err
			}
			held[i][k] = tr.Mul(scale)
		}
	}

	prices := [2][]float64{in.P1, in.P2}
	initial := decimal.NewFromFloat(cm.InitialUnits).Mul(
		decimal.NewFromFloat(in.P1[0]).Add(decimal.NewFromFloat(in.P2[0])))
	budget := initial.Truncate(2)
	totalComm := decimal.Zero

	var orders []models.PairOrder
	for i := 1; i < n; i++ {
		for k := 0; k < 2; k++ {
			qty := held[i][k].Sub(held[i-1][k])
			if qty.IsZero() {
				continue
			}
			price := decimal.NewFromFloat(prices[k][i])
			comm := cm.Commission(qty)
			budget = budget.Sub(qty.Mul(price)).Sub(comm)
			totalComm = totalComm.Add(comm)
			orders = append(orders, models.PairOrder{
				Date:       in.Dates[i],
				Symbol:     in.Symbols[k],
				Quantity:   qty.InexactFloat64(),
				Price:      prices[k][i],
				Commission: comm.InexactFloat64(),
			})
		}
	}

	ret := budget.Div(initial).Sub(decimal.NewFromInt(1))
	return CostResult{
		InitialBudget: initial.Truncate(2).InexactFloat64(),
		FinalBudget:   budget.InexactFloat64(),
		Return:        ret.InexactFloat64(),
		Commission:    totalComm.InexactFloat64(),
		Orders:        orders,
	}, nil
}
