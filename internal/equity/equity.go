// Package equity holds the immutable daily price series of a single
// instrument, as delivered by a market-data provider.
package equity

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// Series is an ordered sequence of daily bars for one symbol. Dates are
// strictly increasing. A Series is never mutated after New returns; every
// accessor hands out copies.
type Series struct {
	symbol string
	source string
	bars   []models.OHLCV
}

// New builds a Series from provider bars. Timestamps are truncated to the
// calendar day and sorted. Bars without a finite positive price are
// dropped. Two bars on the same day are rejected.
func New(symbol string, bars []models.OHLCV) (*Series, error) {
	symbol = utils.NormalizeTicker(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: series symbol must not be empty", models.ErrInvalidArgument)
	}

	clean := make([]models.OHLCV, 0, len(bars))
	for _, b := range bars {
		p := b.Price()
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			continue
		}
		b.Timestamp = utils.TruncateDay(b.Timestamp)
		clean = append(clean, b)
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("%w: %s has no valid price bars", models.ErrInvalidValue, symbol)
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Timestamp.Before(clean[j].Timestamp)
	})
	for i := 1; i < len(clean); i++ {
		if clean[i].Timestamp.Equal(clean[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: %s has duplicate bars on %s",
				models.ErrInvalidValue, symbol, utils.FormatDate(clean[i].Timestamp))
		}
	}

	return &Series{symbol: symbol, bars: clean}, nil
}

// WithSource returns a copy of s tagged with the provider name.
func (s *Series) WithSource(source string) *Series {
	return &Series{symbol: s.symbol, source: source, bars: s.bars}
}

// Symbol returns the canonical instrument symbol.
func (s *Series) Symbol() string { return s.symbol }

// Source returns the provider the series came from, if known.
func (s *Series) Source() string { return s.source }

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// Start returns the date of the first bar.
func (s *Series) Start() time.Time { return s.bars[0].Timestamp }

// End returns the date of the last bar.
func (s *Series) End() time.Time { return s.bars[len(s.bars)-1].Timestamp }

// At returns the i-th bar.
func (s *Series) At(i int) models.OHLCV { return s.bars[i] }

// Bars returns a copy of all bars.
func (s *Series) Bars() []models.OHLCV {
	out := make([]models.OHLCV, len(s.bars))
	copy(out, s.bars)
	return out
}

// Dates returns the bar dates in order.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Timestamp
	}
	return out
}

// Closed returns the adjusted closing prices in date order.
func (s *Series) Closed() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Price()
	}
	return out
}

// Index returns a date → position lookup.
func (s *Series) Index() map[time.Time]int {
	idx := make(map[time.Time]int, len(s.bars))
	for i, b := range s.bars {
		idx[b.Timestamp] = i
	}
	return idx
}

// Between returns the bars dated within [start, end].
func (s *Series) Between(start, end time.Time) (*Series, error) {
	start, end = utils.TruncateDay(start), utils.TruncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s",
			models.ErrInvalidValue, utils.FormatDate(end), utils.FormatDate(start))
	}
	lo := sort.Search(len(s.bars), func(i int) bool { return !s.bars[i].Timestamp.Before(start) })
	hi := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Timestamp.After(end) })
	if lo >= hi {
		return nil, fmt.Errorf("%w: %s has no bars between %s and %s",
			models.ErrDataUnavailable, s.symbol, utils.FormatDate(start), utils.FormatDate(end))
	}
	return &Series{symbol: s.symbol, source: s.source, bars: s.bars[lo:hi]}, nil
}

// FillForward re-indexes the series onto calendar, carrying the last known
// bar into dates that have no observation. Calendar dates before the first
// bar are skipped.
func (s *Series) FillForward(calendar []time.Time) *Series {
	idx := s.Index()
	out := make([]models.OHLCV, 0, len(calendar))
	var last *models.OHLCV
	cursor := 0
	for _, day := range calendar {
		day = utils.TruncateDay(day)
		for cursor < len(s.bars) && !s.bars[cursor].Timestamp.After(day) {
			last = &s.bars[cursor]
			cursor++
		}
		if i, ok := idx[day]; ok {
			out = append(out, s.bars[i])
			continue
		}
		if last == nil {
			continue
		}
		filled := *last
		filled.Timestamp = day
		filled.Volume = 0
		out = append(out, filled)
	}
	if len(out) == 0 {
		return s
	}
	return &Series{symbol: s.symbol, source: s.source, bars: out}
}
