package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

// ── OHLCV Tests ──

func TestOHLCVPrice(t *testing.T) {
	bar := OHLCV{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100, AdjClose: 98.5}
	if got := bar.Price(); got != 98.5 {
		t.Errorf("Price() with AdjClose: got %v, want 98.5", got)
	}
	bar.AdjClose = 0
	if got := bar.Price(); got != 100 {
		t.Errorf("Price() without AdjClose: got %v, want 100", got)
	}
}

func TestOHLCVOmitsZeroAdjClose(t *testing.T) {
	data, err := json.Marshal(OHLCV{Close: 10})
	if err != nil {
		t.Fatalf("json.Marshal(OHLCV) error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if _, ok := raw["adj_close"]; ok {
		t.Errorf("adj_close should be omitted when zero: %s", data)
	}
}

// ── Signal Tests ──

func TestSignalFromUnit(t *testing.T) {
	tests := []struct {
		unit int
		want SignalType
	}{
		{1, SignalLong},
		{3, SignalLong},
		{-1, SignalShort},
		{0, SignalFlat},
	}
	for _, tt := range tests {
		if got := SignalFromUnit(tt.unit); got != tt.want {
			t.Errorf("SignalFromUnit(%d) = %q, want %q", tt.unit, got, tt.want)
		}
	}
}

// ── Optional Value Tests ──

func TestOptionalFloat(t *testing.T) {
	if got := OptionalFloat(math.NaN()); got != nil {
		t.Errorf("OptionalFloat(NaN) = %v, want nil", *got)
	}
	if got := OptionalFloat(math.Inf(-1)); got != nil {
		t.Errorf("OptionalFloat(-Inf) = %v, want nil", *got)
	}
	got := OptionalFloat(0.25)
	if got == nil || *got != 0.25 {
		t.Errorf("OptionalFloat(0.25) = %v, want 0.25", got)
	}
}

func TestNullableSeriesMarshalsUndefinedAsNull(t *testing.T) {
	series := NullableSeries([]float64{math.NaN(), 1.5, math.Inf(1)})
	data, err := json.Marshal(series)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	if string(data) != "[null,1.5,null]" {
		t.Errorf("got %s, want [null,1.5,null]", data)
	}
}

func TestPairBacktestResultOmitsUndefinedMetrics(t *testing.T) {
	r := PairBacktestResult{
		ID:          "r1",
		Primary:     "KO",
		Secondary:   "PEP",
		TotalReturn: 0.1,
		SharpeRatio: OptionalFloat(math.NaN()),
		CAGR:        OptionalFloat(0.04),
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal(PairBacktestResult) error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if _, ok := raw["sharpe_ratio"]; ok {
		t.Error("undefined sharpe_ratio should be omitted")
	}
	if raw["cagr"] != 0.04 {
		t.Errorf("cagr: got %v, want 0.04", raw["cagr"])
	}
}

// ── Error Tests ──

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrInvalidArgument, ErrTypeMismatch, ErrInvalidValue, ErrDataUnavailable, ErrUndefinedResult}
	for i, a := range all {
		wrapped := fmt.Errorf("context: %w", a)
		for j, b := range all {
			if got := errors.Is(wrapped, b); got != (i == j) {
				t.Errorf("errors.Is(%v, %v) = %v", wrapped, b, got)
			}
		}
	}
}
