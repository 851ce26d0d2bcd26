package pair

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// BudgetLevel is the capital needed to hold a whole number of shares of
// both legs when the hedge ratio is truncated to Decimals places.
type BudgetLevel struct {
	Decimals int        `json:"decimals"`
	Ratio    [2]float64 `json:"ratio"`
	Shares   [2]int64   `json:"shares"`
	Budget   float64    `json:"budget"`
}

// Budget returns the capital, truncated to cents, required to buy
// |trunc(ratio[k], dec)| * 10^dec shares of each leg at the first common
// date's prices.
func (p *Pair) Budget(ratio []float64, dec int) (float64, error) {
	lvl, err := p.budgetLevel(ratio, dec)
	if err != nil {
		return 0, err
	}
	return lvl.Budget, nil
}

// BudgetTable evaluates Budget at 4, 3, 2 and 1 decimal places.
func (p *Pair) BudgetTable(ratio []float64) ([]BudgetLevel, error) {
	levels := make([]BudgetLevel, 0, 4)
	for dec := 4; dec >= 1; dec-- {
		lvl, err := p.budgetLevel(ratio, dec)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

func (p *Pair) budgetLevel(ratio []float64, dec int) (BudgetLevel, error) {
	if len(ratio) != 2 {
		return BudgetLevel{}, fmt.Errorf("%w: hedge ratio must have length 2, got %d", models.ErrInvalidValue, len(ratio))
	}
	if dec < 0 {
		return BudgetLevel{}, fmt.Errorf("%w: decimal places must be >= 0, got %d", models.ErrInvalidArgument, dec)
	}
	for _, r := range ratio {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return BudgetLevel{}, fmt.Errorf("%w: hedge ratio must be finite, got %v", models.ErrInvalidValue, ratio)
		}
	}

	scale := decimal.New(1, int32(dec))
	prices := [2]decimal.Decimal{decimal.NewFromFloat(p.p1[0]), decimal.NewFromFloat(p.p2[0])}

	lvl := BudgetLevel{Decimals: dec}
	total := decimal.Zero
	for k := 0; k < 2; k++ {
		tr, err := utils.TruncateDecimal(ratio[k], dec)
		if err != nil {
			return BudgetLevel{}, err
		}
		shares := tr.Abs().Mul(scale)
		total = total.Add(prices[k].Mul(shares))
		lvl.Ratio[k] = tr.InexactFloat64()
		lvl.Shares[k] = shares.IntPart()
	}
	lvl.Budget = total.Truncate(2).InexactFloat64()
	return lvl, nil
}
