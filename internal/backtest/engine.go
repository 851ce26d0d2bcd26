// Package backtest implements the pairs-trading backtest: Bollinger band
// signals on a hedged spread, position sizing, return series and
// performance metrics, plus an engine that caches and parallelizes runs.
package backtest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/pairtrade/internal/infra"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Engine Configuration
// ════════════════════════════════════════════════════════════════════

// Config holds all parameters for backtest runs.
type Config struct {
	RiskFreeRate float64       // annual rate used by Sortino (default: 0)
	Costs        *CostModel    // when set, every run also reports the commission-constrained return
	CacheTTL     time.Duration // result cache lifetime (default: 10m)
	MaxParallel  int           // sweep concurrency (default: GOMAXPROCS)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:    10 * time.Minute,
		MaxParallel: runtime.GOMAXPROCS(0),
	}
}

// Recorder receives engine telemetry. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	ObserveBacktest(strategy string, elapsed time.Duration, err error)
	ObserveCache(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBacktest(string, time.Duration, error) {}
func (nopRecorder) ObserveCache(bool)                            {}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRecorder sets the telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Engine
// ════════════════════════════════════════════════════════════════════

// Engine runs strategies against pairs. Results are cached by pair, date
// range and strategy parameters; the cache is only cleared explicitly by
// Invalidate or Flush, or when an entry's TTL elapses. Cached results are
// shared and must be treated as read-only.
type Engine struct {
	cfg   Config
	cache *infra.Cache[*models.PairBacktestResult]
	log   zerolog.Logger
	rec   Recorder
}

// NewEngine creates a new backtest engine with the given config.
func NewEngine(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = def.MaxParallel
	}
	e := &Engine{
		cfg:   cfg,
		cache: infra.NewCache[*models.PairBacktestResult](cfg.CacheTTL),
		log:   zerolog.Nop(),
		rec:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// CacheKey identifies a run of s on p.
func CacheKey(s Strategy, p *pair.Pair) string {
	params := s.Params()
	return fmt.Sprintf("%s|%s|%s|%s|lb=%d|entry=%g|exit=%g|%s",
		s.Name(), p.Name(), utils.FormatDate(p.Start()), utils.FormatDate(p.End()),
		params.Lookback, params.EntryZ, params.ExitZ, params.Alignment)
}

// Invalidate drops the cached result of s on p.
func (e *Engine) Invalidate(s Strategy, p *pair.Pair) {
	e.cache.Invalidate(CacheKey(s, p))
}

// Flush drops every cached result.
func (e *Engine) Flush() {
	e.cache.Flush()
}

// Run evaluates s on p and returns the result with its performance
// metrics, serving repeated configurations from the cache.
func (e *Engine) Run(ctx context.Context, s Strategy, p *pair.Pair) (*models.PairBacktestResult, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: strategy is nil", models.ErrInvalidArgument)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: pair is nil", models.ErrTypeMismatch)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(s, p)
	if cached, ok := e.cache.Get(key); ok {
		e.rec.ObserveCache(true)
		e.log.Debug().Str("key", key).Msg("backtest cache hit")
		return cached, nil
	}
	e.rec.ObserveCache(false)

	started := time.Now()
	result, err := e.run(s, p)
	elapsed := time.Since(started)
	e.rec.ObserveBacktest(s.Name(), elapsed, err)
	if err != nil {
		e.log.Warn().Err(err).Str("pair", p.Name()).Str("strategy", s.Name()).Msg("backtest failed")
		return nil, err
	}
	result.Duration = elapsed

	e.cache.Set(key, result)
	e.log.Info().
		Str("id", result.ID).
		Str("pair", p.Name()).
		Str("strategy", s.Name()).
		Int("lookback", result.Params.Lookback).
		Float64("total_return", result.TotalReturn).
		Dur("elapsed", elapsed).
		Msg("backtest complete")
	return result, nil
}

func (e *Engine) run(s Strategy, p *pair.Pair) (*models.PairBacktestResult, error) {
	ev, err := Evaluate(s, p)
	if err != nil {
		return nil, err
	}
	dates := p.Dates()
	p1Sym, p2Sym := p.Symbols()

	result := &models.PairBacktestResult{
		ID:           uuid.NewString(),
		StrategyName: s.Name(),
		Primary:      p1Sym,
		Secondary:    p2Sym,
		Params:       s.Params(),
		From:         p.Start(),
		To:           p.End(),
		TradingDays:  p.Len(),
		Transitions:  ev.Signals.Units.Transitions(),
		DaysInMarket: ev.Signals.Units.DaysInMarket(),
		Units:        ev.Signals.Units.Net,
		Daily:        seriesPoints(dates, ev.Daily),
		Cumulative:   seriesPoints(dates, ev.Cumulative),
	}

	m := ComputeMetrics(ev.Daily, ev.Cumulative, p.Start(), p.End(), e.cfg.RiskFreeRate)
	result.TotalReturn = m.TotalReturn
	result.CAGR = models.OptionalFloat(m.CAGR)
	result.SharpeRatio = models.OptionalFloat(m.Sharpe)
	result.SortinoRatio = models.OptionalFloat(m.Sortino)
	result.APR = models.OptionalFloat(m.APR)
	result.MaxDrawdown = m.MaxDrawdown
	result.MaxDrawdownDays = m.MaxDrawdownDays

	if e.cfg.Costs != nil {
		cost, err := SimulateCosts(NewCostInput(p, ev.Signals.Positions, s.Params().Lookback), *e.cfg.Costs)
		if err != nil {
			return nil, fmt.Errorf("cost simulation: %w", err)
		}
		result.NetReturn = models.OptionalFloat(cost.Return)
	}
	return result, nil
}

// ComputeMetrics derives every scalar metric from the return series.
// Metrics that are undefined for the input are NaN.
func ComputeMetrics(daily, cum []float64, start, end time.Time, riskFreeRate float64) Metrics {
	var m Metrics
	if len(cum) > 0 {
		m.TotalReturn = cum[len(cum)-1]
	}
	m.CAGR, _ = CAGR(cum, start, end)
	m.Sharpe, _ = Sharpe(daily)
	m.Sortino, _ = Sortino(daily, riskFreeRate)
	m.APR, _ = APR(daily)
	m.MaxDrawdown, m.MaxDrawdownDays = MaxDrawdown(cum)
	return m
}

// ════════════════════════════════════════════════════════════════════
// Parameter Sweep
// ════════════════════════════════════════════════════════════════════

// Sweep runs the Bollinger strategy for every parameter set concurrently.
// Results are returned in grid order. Runs are independent, so each is
// identical to a sequential Run of the same parameters. The first failure
// cancels the remaining runs.
func (e *Engine) Sweep(ctx context.Context, p *pair.Pair, grid []models.StrategyParams) ([]*models.PairBacktestResult, error) {
	results := make([]*models.PairBacktestResult, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)

	for i, params := range grid {
		g.Go(func() error {
			s, err := NewStrategy("bollinger", params)
			if err != nil {
				return fmt.Errorf("sweep params %+v: %w", params, err)
			}
			r, err := e.Run(gctx, s, p)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.log.Info().Str("pair", p.Name()).Int("runs", len(grid)).Msg("sweep complete")
	return results, nil
}

// BestBySharpe returns the result with the highest defined Sharpe ratio,
// or nil when none is defined.
func BestBySharpe(results []*models.PairBacktestResult) *models.PairBacktestResult {
	var best *models.PairBacktestResult
	for _, r := range results {
		if r == nil || r.SharpeRatio == nil {
			continue
		}
		if best == nil || *r.SharpeRatio > *best.SharpeRatio {
			best = r
		}
	}
	return best
}

func seriesPoints(dates []time.Time, values []float64) []models.SeriesPoint {
	out := make([]models.SeriesPoint, len(values))
	for i, v := range values {
		out[i] = models.SeriesPoint{Date: dates[i], Value: v}
	}
	return out
}
