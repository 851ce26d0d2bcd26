// Package pair aligns two equity price series and provides the statistics
// a pairs strategy is built on: rolling OLS hedge ratios, spreads, capital
// budgets and cointegration tests.
package pair

import (
	"fmt"
	"time"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// MinOverlap is the fewest common trading dates a Pair accepts.
const MinOverlap = 2

// Pair owns two price series inner-joined on date. Primary is always the
// regression response.
type Pair struct {
	primary   *equity.Series
	secondary *equity.Series

	dates []time.Time
	p1    []float64
	p2    []float64
}

// New validates and aligns two series. It fails when either series is
// missing, when both carry the same symbol, or when they share fewer than
// MinOverlap dates.
func New(primary, secondary *equity.Series) (*Pair, error) {
	if primary == nil {
		return nil, fmt.Errorf("%w: primary must be an equity series", models.ErrTypeMismatch)
	}
	if secondary == nil {
		return nil, fmt.Errorf("%w: secondary must be an equity series", models.ErrTypeMismatch)
	}
	if primary.Symbol() == secondary.Symbol() {
		return nil, fmt.Errorf("%w: pair legs must be different instruments, both are %s",
			models.ErrInvalidValue, primary.Symbol())
	}

	idx := secondary.Index()
	var (
		dates  []time.Time
		p1, p2 []float64
	)
	for i := 0; i < primary.Len(); i++ {
		b := primary.At(i)
		j, ok := idx[b.Timestamp]
		if !ok {
			continue
		}
		dates = append(dates, b.Timestamp)
		p1 = append(p1, b.Price())
		p2 = append(p2, secondary.At(j).Price())
	}
	if len(dates) < MinOverlap {
		return nil, fmt.Errorf("%w: %s and %s share %d trading dates, need at least %d",
			models.ErrInvalidValue, primary.Symbol(), secondary.Symbol(), len(dates), MinOverlap)
	}

	return &Pair{primary: primary, secondary: secondary, dates: dates, p1: p1, p2: p2}, nil
}

// Primary returns the response-leg series as supplied to New.
func (p *Pair) Primary() *equity.Series { return p.primary }

// Secondary returns the regressor-leg series as supplied to New.
func (p *Pair) Secondary() *equity.Series { return p.secondary }

// Symbols returns the primary and secondary symbols.
func (p *Pair) Symbols() (string, string) {
	return p.primary.Symbol(), p.secondary.Symbol()
}

// Name returns "PRIMARY/SECONDARY".
func (p *Pair) Name() string {
	return p.primary.Symbol() + "/" + p.secondary.Symbol()
}

// Len returns the number of common dates.
func (p *Pair) Len() int { return len(p.dates) }

// Start returns the first common date.
func (p *Pair) Start() time.Time { return p.dates[0] }

// End returns the last common date.
func (p *Pair) End() time.Time { return p.dates[len(p.dates)-1] }

// Dates returns a copy of the common date index.
func (p *Pair) Dates() []time.Time {
	out := make([]time.Time, len(p.dates))
	copy(out, p.dates)
	return out
}

// PrimaryClosed returns the primary closes on the common index.
func (p *Pair) PrimaryClosed() []float64 { return cloneFloats(p.p1) }

// SecondaryClosed returns the secondary closes on the common index.
func (p *Pair) SecondaryClosed() []float64 { return cloneFloats(p.p2) }

// HedgeRatios estimates rolling OLS hedge ratios over the common index.
func (p *Pair) HedgeRatios(lookback int, align Alignment) (HedgeRatios, error) {
	slopes, err := EstimateHedgeRatios(p.p1, p.p2, lookback, align)
	if err != nil {
		return HedgeRatios{}, fmt.Errorf("hedge ratios for %s: %w", p.Name(), err)
	}
	return HedgeRatios{
		Dates:     p.Dates(),
		Slope:     slopes,
		Lookback:  lookback,
		Alignment: align,
	}, nil
}

// Spread combines the pair's closes with h into the price spread.
func (p *Pair) Spread(h HedgeRatios) ([]float64, error) {
	return Spread(p.p1, p.p2, h.Slope)
}

// PriceWindow holds both legs' closes over a validated date range.
type PriceWindow struct {
	Primary   string
	Secondary string
	Start     time.Time
	End       time.Time
	Dates     []time.Time
	P1        []float64
	P2        []float64
}

// ClosedBetween returns both legs' closes between start and end inclusive.
// Nil bounds default to the pair's own range. The range must be
// non-empty and lie within the pair's dates.
func (p *Pair) ClosedBetween(start, end *time.Time) (PriceWindow, error) {
	s, e := p.Start(), p.End()
	if start != nil {
		s = utils.TruncateDay(*start)
	}
	if end != nil {
		e = utils.TruncateDay(*end)
	}

	switch {
	case !e.After(s):
		return PriceWindow{}, fmt.Errorf("%w: end date %s must be after start date %s",
			models.ErrInvalidValue, utils.FormatDate(e), utils.FormatDate(s))
	case s.Before(p.Start()):
		return PriceWindow{}, fmt.Errorf("%w: start date %s is before pair start %s",
			models.ErrInvalidValue, utils.FormatDate(s), utils.FormatDate(p.Start()))
	case e.After(p.End()):
		return PriceWindow{}, fmt.Errorf("%w: end date %s is after pair end %s",
			models.ErrInvalidValue, utils.FormatDate(e), utils.FormatDate(p.End()))
	}

	w := PriceWindow{Primary: p.primary.Symbol(), Secondary: p.secondary.Symbol(), Start: s, End: e}
	for i, d := range p.dates {
		if d.Before(s) || d.After(e) {
			continue
		}
		w.Dates = append(w.Dates, d)
		w.P1 = append(w.P1, p.p1[i])
		w.P2 = append(w.P2, p.p2[i])
	}
	return w, nil
}

// ClosedBetweenDates is ClosedBetween for "YYYY-MM-DD" strings; an empty
// string selects the pair's own bound.
func (p *Pair) ClosedBetweenDates(start, end string) (PriceWindow, error) {
	var sp, ep *time.Time
	if start != "" {
		t, err := utils.ParseDate(start)
		if err != nil {
			return PriceWindow{}, fmt.Errorf("start date: %w", err)
		}
		sp = &t
	}
	if end != "" {
		t, err := utils.ParseDate(end)
		if err != nil {
			return PriceWindow{}, fmt.Errorf("end date: %w", err)
		}
		ep = &t
	}
	return p.ClosedBetween(sp, ep)
}

func cloneFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
