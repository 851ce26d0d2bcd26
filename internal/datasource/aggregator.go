package datasource

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/internal/pair"
)

// FetchAll fetches every symbol concurrently. The first failure cancels
// the remaining fetches.
func FetchAll(ctx context.Context, p Provider, symbols ...string) ([]*equity.Series, error) {
	out := make([]*equity.Series, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range symbols {
		g.Go(func() error {
			s, err := p.FetchDaily(gctx, sym)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", sym, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchPair fetches both legs concurrently and aligns them into a pair.
func FetchPair(ctx context.Context, p Provider, primary, secondary string) (*pair.Pair, error) {
	legs, err := FetchAll(ctx, p, primary, secondary)
	if err != nil {
		return nil, err
	}
	return pair.New(legs[0], legs[1])
}

// FetchPairBetween is FetchPair restricted to [start, end]. Nil bounds
// leave that side of each leg's history open.
func FetchPairBetween(ctx context.Context, p Provider, primary, secondary string, start, end *time.Time) (*pair.Pair, error) {
	legs, err := FetchAll(ctx, p, primary, secondary)
	if err != nil {
		return nil, err
	}
	if start != nil || end != nil {
		for i, leg := range legs {
			lo, hi := leg.Start(), leg.End()
			if start != nil {
				lo = *start
			}
			if end != nil {
				hi = *end
			}
			// An open side never inverts the range; a leg that ends before
			// start (or begins after end) then reports no bars.
			if end == nil && hi.Before(lo) {
				hi = lo
			}
			if start == nil && lo.After(hi) {
				lo = hi
			}
			if legs[i], err = leg.Between(lo, hi); err != nil {
				return nil, err
			}
		}
	}
	return pair.New(legs[0], legs[1])
}
