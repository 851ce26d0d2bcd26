package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
)

// Collect runs s on p through eng and gathers every report section. When
// costs is nil the commission-constrained run is omitted. Cointegration
// and budget sections are omitted when the pair is too short or too
// degenerate to test.
func Collect(ctx context.Context, eng *backtest.Engine, s backtest.Strategy, p *pair.Pair, costs *backtest.CostModel) (Input, error) {
	result, err := eng.Run(ctx, s, p)
	if err != nil {
		return Input{}, err
	}
	ev, err := backtest.Evaluate(s, p)
	if err != nil {
		return Input{}, err
	}
	window, err := p.ClosedBetween(nil, nil)
	if err != nil {
		return Input{}, err
	}
	in := Input{Result: result, Window: &window, Signals: ev.Signals}

	if costs != nil {
		cr, err := backtest.SimulateCosts(
			backtest.NewCostInput(p, ev.Signals.Positions, s.Params().Lookback), *costs)
		if err != nil {
			return Input{}, fmt.Errorf("cost simulation: %w", err)
		}
		in.Costs = &cr
	}

	cadf, err := p.CADF()
	switch {
	case err == nil:
		in.CADF = &cadf
	case !untestable(err):
		return Input{}, fmt.Errorf("cadf: %w", err)
	}

	joh, err := p.Johansen()
	switch {
	case err == nil:
		in.Johansen = &joh
		v := joh.Vector()
		if in.Budget, err = p.BudgetTable(v[:]); err != nil {
			return Input{}, fmt.Errorf("budget: %w", err)
		}
	case !untestable(err):
		return Input{}, fmt.Errorf("johansen: %w", err)
	}
	return in, nil
}

func untestable(err error) bool {
	return errors.Is(err, models.ErrInvalidArgument) || errors.Is(err, models.ErrUndefinedResult)
}
