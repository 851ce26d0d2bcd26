package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/internal/infra"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// Recorder receives provider telemetry. Status is one of "ok", "error",
// "cache_hit" or "breaker_open".
type Recorder interface {
	ObserveProvider(provider, status string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProvider(string, string) {}

// CachedProvider wraps a Provider with a shared store, a token-bucket rate
// limiter and a circuit breaker. Cache hits bypass both the limiter and
// the breaker.
type CachedProvider struct {
	inner   Provider
	store   infra.Store
	ttl     time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
	rec     Recorder
}

// CachedOption customizes a CachedProvider.
type CachedOption func(*CachedProvider)

// WithTTL sets how long fetched series stay in the store (default: 12h).
func WithTTL(ttl time.Duration) CachedOption {
	return func(c *CachedProvider) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRatePerMinute limits upstream calls. Zero or less disables the
// limiter.
func WithRatePerMinute(n int) CachedOption {
	return func(c *CachedProvider) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// WithProviderLogger sets the logger.
func WithProviderLogger(log zerolog.Logger) CachedOption {
	return func(c *CachedProvider) { c.log = log }
}

// WithProviderRecorder sets the telemetry sink.
func WithProviderRecorder(r Recorder) CachedOption {
	return func(c *CachedProvider) {
		if r != nil {
			c.rec = r
		}
	}
}

// NewCachedProvider wraps inner. A nil store falls back to a process-local
// memory store.
func NewCachedProvider(inner Provider, store infra.Store, opts ...CachedOption) *CachedProvider {
	if store == nil {
		store = infra.NewMemoryStore(12 * time.Hour)
	}
	c := &CachedProvider{
		inner: inner,
		store: store,
		ttl:   12 * time.Hour,
		log:   zerolog.Nop(),
		rec:   nopRecorder{},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     inner.Name(),
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Unknown symbols and caller cancellations say nothing about the
		// upstream's health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrTickerNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, models.ErrInvalidArgument)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the wrapped provider's name.
func (c *CachedProvider) Name() string { return c.inner.Name() }

// cachedSeries is the stored form of a series.
type cachedSeries struct {
	Symbol string         `json:"symbol"`
	Source string         `json:"source"`
	Bars   []models.OHLCV `json:"bars"`
}

func (c *CachedProvider) key(symbol string) string {
	return "bars:" + c.inner.Name() + ":" + symbol
}

// FetchDaily serves symbol from the store, fetching and storing it on a
// miss.
func (c *CachedProvider) FetchDaily(ctx context.Context, symbol string) (*equity.Series, error) {
	sym := utils.NormalizeTicker(symbol)
	key := c.key(sym)

	if s, ok := c.load(ctx, key); ok {
		c.rec.ObserveProvider(c.inner.Name(), "cache_hit")
		return s, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.FetchDaily(ctx, sym)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.rec.ObserveProvider(c.inner.Name(), "breaker_open")
		return nil, fmt.Errorf("%w: %s unavailable: %v", models.ErrDataUnavailable, c.inner.Name(), err)
	}
	if err != nil {
		c.rec.ObserveProvider(c.inner.Name(), "error")
		c.log.Warn().Err(err).Str("provider", c.inner.Name()).Str("symbol", sym).Msg("fetch failed")
		return nil, err
	}
	c.rec.ObserveProvider(c.inner.Name(), "ok")
	series := v.(*equity.Series)
	c.log.Debug().
		Str("provider", c.inner.Name()).
		Str("symbol", sym).
		Int("bars", series.Len()).
		Dur("elapsed", time.Since(started)).
		Msg("fetched daily bars")

	c.save(ctx, key, series)
	return series, nil
}

// Invalidate drops symbol from the store.
func (c *CachedProvider) Invalidate(ctx context.Context, symbol string) error {
	return c.store.Delete(ctx, c.key(utils.NormalizeTicker(symbol)))
}

func (c *CachedProvider) load(ctx context.Context, key string) (*equity.Series, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, infra.ErrCacheMiss) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}
	var cs cachedSeries
	if err := json.Unmarshal(data, &cs); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("discarding corrupt cache entry")
		return nil, false
	}
	s, err := equity.New(cs.Symbol, cs.Bars)
	if err != nil {
		return nil, false
	}
	return s.WithSource(cs.Source), true
}

func (c *CachedProvider) save(ctx context.Context, key string, s *equity.Series) {
	data, err := json.Marshal(cachedSeries{Symbol: s.Symbol(), Source: s.Source(), Bars: s.Bars()})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
