package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// AlphaVantageURL is the default Alpha Vantage query endpoint.
const AlphaVantageURL = "https://www.alphavantage.co/query"

// AlphaVantage implements Provider with the TIME_SERIES_DAILY_ADJUSTED
// function. The free tier allows 5 calls per minute.
type AlphaVantage struct {
	httpSource
	apiKey string
}

// NewAlphaVantage creates an Alpha Vantage provider.
func NewAlphaVantage(apiKey string, opts ...HTTPOption) *AlphaVantage {
	return &AlphaVantage{
		httpSource: newHTTPSource(AlphaVantageURL, opts),
		apiKey:     apiKey,
	}
}

// Name returns the provider name.
func (a *AlphaVantage) Name() string { return "Alpha Vantage" }

// --- Alpha Vantage API types ---

type avDailyResponse struct {
	Meta        map[string]string     `json:"Meta Data"`
	TimeSeries  map[string]avDailyBar `json:"Time Series (Daily)"`
	Note        string                `json:"Note"`
	Information string                `json:"Information"`
	Error       string                `json:"Error Message"`
}

type avDailyBar struct {
	Open     string `json:"1. open"`
	High     string `json:"2. high"`
	Low      string `json:"3. low"`
	Close    string `json:"4. close"`
	AdjClose string `json:"5. adjusted close"`
	Volume   string `json:"6. volume"`
}

// FetchDaily returns the full daily adjusted history of symbol.
func (a *AlphaVantage) FetchDaily(ctx context.Context, symbol string) (*equity.Series, error) {
	sym := utils.NormalizeTicker(symbol)
	if err := utils.ValidateSymbol(sym); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	q.Set("symbol", sym)
	q.Set("outputsize", "full")
	q.Set("apikey", a.apiKey)

	data, err := a.get(ctx, a.baseURL+"?"+q.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("alphavantage daily %s: %w", sym, err)
	}

	var resp avDailyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse alphavantage daily %s: %v", models.ErrDataUnavailable, sym, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrTickerNotFound, sym, resp.Error)
	}
	// A response without the series is how the API reports a spent quota.
	if resp.TimeSeries == nil {
		return nil, fmt.Errorf("alphavantage daily %s: %w", sym, ErrRateLimited)
	}

	bars, err := parseAVBars(resp.TimeSeries)
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage daily %s: %v", models.ErrDataUnavailable, sym, err)
	}
	return buildSeries("alphavantage", sym, bars)
}

func parseAVBars(series map[string]avDailyBar) ([]models.OHLCV, error) {
	bars := make([]models.OHLCV, 0, len(series))
	for day, b := range series {
		ts, err := time.ParseInLocation(utils.DateLayout, day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad date %q", day)
		}
		bar := models.OHLCV{Timestamp: ts}
		fields := []struct {
			raw string
			dst *float64
		}{
			{b.Open, &bar.Open},
			{b.High, &bar.High},
			{b.Low, &bar.Low},
			{b.Close, &bar.Close},
			{b.AdjClose, &bar.AdjClose},
		}
		for _, f := range fields {
			if f.raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, fmt.Errorf("bad price %q on %s", f.raw, day)
			}
			*f.dst = v
		}
		if b.Volume != "" {
			v, err := strconv.ParseInt(b.Volume, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad volume %q on %s", b.Volume, day)
			}
			bar.Volume = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
