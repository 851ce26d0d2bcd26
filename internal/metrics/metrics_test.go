package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/datasource"
)

// Compile-time checks that Metrics plugs into both recorders.
var (
	_ backtest.Recorder   = (*Metrics)(nil)
	_ datasource.Recorder = (*Metrics)(nil)
)

func TestObserveBacktest(t *testing.T) {
	m := New()
	m.ObserveBacktest("Bollinger Pair", 3*time.Millisecond, nil)
	m.ObserveBacktest("Bollinger Pair", time.Millisecond, errors.New("boom"))
	m.ObserveBacktest("Bollinger Pair", time.Millisecond, nil)

	if got := testutil.ToFloat64(m.BacktestsTotal.WithLabelValues("Bollinger Pair", "ok")); got != 2 {
		t.Errorf("ok runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BacktestsTotal.WithLabelValues("Bollinger Pair", "error")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.BacktestDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestObserveCacheAndProvider(t *testing.T) {
	m := New()
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.ObserveProvider("Alpha Vantage", "ok")
	m.ObserveHTTP("POST", "/api/v1/backtest", 200)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ProviderRequests.WithLabelValues("Alpha Vantage", "ok")); got != 1 {
		t.Errorf("provider ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/backtest", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveCache(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{"pairtrade_backtest_cache_lookups_total", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveCache(true)
	if got := testutil.ToFloat64(b.CacheLookups.WithLabelValues("hit")); got != 0 {
		t.Errorf("second registry saw %v hits", got)
	}
}
