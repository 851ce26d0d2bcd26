package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// YahooURL is the default Yahoo Finance API host.
const YahooURL = "https://query1.finance.yahoo.com"

// YFinance implements Provider using the Yahoo Finance chart API.
type YFinance struct {
	httpSource
	now func() time.Time
}

// NewYFinance creates a new Yahoo Finance provider.
func NewYFinance(opts ...HTTPOption) *YFinance {
	return &YFinance{
		httpSource: newHTTPSource(YahooURL, opts),
		now:        time.Now,
	}
}

// Name returns the provider name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol           string `json:"symbol"`
	Currency         string `json:"currency"`
	ExchangeName     string `json:"exchangeName"`
	ExchangeTimezone string `json:"exchangeTimezoneName"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchDaily returns the full daily history of symbol from the chart API.
func (y *YFinance) FetchDaily(ctx context.Context, symbol string) (*equity.Series, error) {
	sym := utils.NormalizeTicker(symbol)
	if err := utils.ValidateSymbol(sym); err != nil {
		return nil, err
	}
	yfTicker := utils.ToYahooTicker(sym)

	q := url.Values{}
	q.Set("period1", "0")
	q.Set("period2", fmt.Sprint(y.now().Unix()))
	q.Set("interval", yfInterval(models.Timeframe1Day))
	q.Set("events", "div,split")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(yfTicker), q.Encode())

	data, err := y.get(ctx, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yfinance chart %s: %w", yfTicker, err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse yfinance chart: %v", models.ErrDataUnavailable, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTickerNotFound, sym, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
	}

	return buildSeries("yahoo", sym, parseYFCandles(resp.Chart.Result[0]))
}

// --- Helpers ---

// parseYFCandles converts the chart's parallel arrays into bars. Dates
// whose close is missing are skipped.
func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := models.OHLCV{
			Timestamp: utils.TruncateDay(time.Unix(ts, 0).UTC()),
			Close:     *q.Close[i],
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			c.AdjClose = *adjCloses[i]
		}
		candles = append(candles, c)
	}
	return candles
}

func yfInterval(tf models.Timeframe) string {
	switch tf {
	case models.Timeframe1Day:
		return "1d"
	case models.Timeframe1Week:
		return "1wk"
	case models.Timeframe1Mon:
		return "1mo"
	default:
		return "1d"
	}
}
