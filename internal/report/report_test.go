package report

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func generatePair(t *testing.T, n int, seed int64) *pair.Pair {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	days := utils.WeekdaysBetween(utils.Date(2022, 1, 3), utils.Date(2030, 1, 1))
	b1 := make([]models.OHLCV, n)
	b2 := make([]models.OHLCV, n)
	level, dev := 100.0, 0.0
	for i := 0; i < n; i++ {
		level += rng.NormFloat64() * 0.8
		dev = 0.7*dev + rng.NormFloat64()*1.5
		p1 := 2*level + 10 + dev
		b1[i] = models.OHLCV{Timestamp: days[i], Close: p1, AdjClose: p1}
		b2[i] = models.OHLCV{Timestamp: days[i], Close: level, AdjClose: level}
	}
	s1, err := equity.New("AAA", b1)
	require.NoError(t, err)
	s2, err := equity.New("BBB", b2)
	require.NoError(t, err)
	p, err := pair.New(s1, s2)
	require.NoError(t, err)
	return p
}

func collect(t *testing.T) Input {
	t.Helper()
	p := generatePair(t, 300, 7)
	s, err := backtest.NewBollingerStrategy(20, 1, 0, pair.AlignCurrent)
	require.NoError(t, err)
	cm := backtest.DefaultCostModel()
	in, err := Collect(context.Background(), backtest.NewEngine(backtest.DefaultConfig()), s, p, &cm)
	require.NoError(t, err)
	return in
}

func fixedConfig(format ReportFormat) ReportConfig {
	cfg := DefaultReportConfig()
	cfg.Format = format
	cfg.GeneratedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return cfg
}

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// ════════════════════════════════════════════════════════════════════
// Charts
// ════════════════════════════════════════════════════════════════════

func TestLineChartGapsOnNaN(t *testing.T) {
	svg := LineChart([]LineChartSeries{
		{Name: "a", Values: []float64{1, 2, math.NaN(), 4, 5}},
	}, nil, DefaultChartConfig())

	doc := parseHTML(t, svg)
	paths := doc.Find("path.series")
	require.Equal(t, 1, paths.Length())
	d, _ := paths.Attr("d")
	assert.Equal(t, 2, strings.Count(d, "M"), "NaN should split the line into two segments")
	assert.Equal(t, 2, strings.Count(d, "L"))
}

func TestLineChartEmpty(t *testing.T) {
	assert.Contains(t, LineChart(nil, nil, DefaultChartConfig()), "No data")
	allNaN := []LineChartSeries{{Name: "z", Values: []float64{math.NaN(), math.NaN()}}}
	assert.Contains(t, LineChart(allNaN, nil, DefaultChartConfig()), "No data points")
}

func TestZScoreChartBands(t *testing.T) {
	dates := utils.WeekdaysBetween(utils.Date(2024, 1, 1), utils.Date(2024, 1, 12))
	z := []float64{math.NaN(), math.NaN(), 0.5, 1.5, -1.2, 0.1, -0.3, 2.1, 0.4, -0.9}

	doc := parseHTML(t, ZScoreChart(dates, z, 1, 0.5, ChartConfig{}))
	assert.Equal(t, 4, doc.Find("line.ref").Length())

	doc = parseHTML(t, ZScoreChart(dates, z, 1, 0, ChartConfig{}))
	assert.Equal(t, 3, doc.Find("line.ref").Length(), "zero exit collapses to a single centre line")
	assert.Contains(t, doc.Text(), "Spread z-score")
}

func TestHorizontalBarChart(t *testing.T) {
	items := []BarItem{{Label: "up", Value: 3}, {Label: "down", Value: -2}, {Label: "flat", Value: 0}}
	svg := HorizontalBarChart(items, nil, DefaultChartConfig())
	doc := parseHTML(t, svg)
	assert.Equal(t, 3, doc.Find("rect.bar").Length())
	assert.Contains(t, svg, "#ef5350", "negative bars are red")

	assert.Contains(t, HorizontalBarChart(nil, nil, ChartConfig{}), "No data")
}

func TestBudgetChartLabels(t *testing.T) {
	svg := BudgetChart([]pair.BudgetLevel{
		{Decimals: 2, Budget: 12345.67},
		{Decimals: 1, Budget: 1234.5},
	}, DefaultChartConfig())
	assert.Contains(t, svg, "2 dp")
	assert.Contains(t, svg, "$12,345.67")
}

func TestEscapeXML(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; &quot;c&quot;", escapeXML(`a <b> & "c"`))
}

// ════════════════════════════════════════════════════════════════════
// Summary and formats
// ════════════════════════════════════════════════════════════════════

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want ReportFormat
	}{
		{"", FormatText},
		{"TEXT", FormatText},
		{"html", FormatHTML},
		{"json", FormatJSON},
		{"yml", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestBuildSummaryRequiresResult(t *testing.T) {
	_, err := BuildSummary(Input{}, DefaultReportConfig())
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = GenerateHTML(Input{}, DefaultReportConfig())
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestCollectFillsSections(t *testing.T) {
	in := collect(t)
	require.NotNil(t, in.Result)
	require.NotNil(t, in.Window)
	require.NotNil(t, in.Signals)
	require.NotNil(t, in.Costs)
	require.NotNil(t, in.CADF)
	require.NotNil(t, in.Johansen)
	assert.Len(t, in.Budget, 4)
	assert.Equal(t, 300, len(in.Window.Dates))

	s, err := BuildSummary(in, fixedConfig(FormatJSON))
	require.NoError(t, err)
	assert.Equal(t, "AAA / BBB Bollinger Pair backtest", s.Title)
	assert.Equal(t, len(in.Costs.Orders), s.Costs.Orders)
	require.NotNil(t, s.Cointegration.JohansenRank)
	assert.Equal(t, in.Johansen.Vector(), s.Cointegration.Vector)
}

func TestCollectShortPairSkipsCointegration(t *testing.T) {
	p := generatePair(t, 8, 1)
	s, err := backtest.NewBollingerStrategy(3, 1, 0, pair.AlignCurrent)
	require.NoError(t, err)
	in, err := Collect(context.Background(), backtest.NewEngine(backtest.DefaultConfig()), s, p, nil)
	require.NoError(t, err)
	assert.Nil(t, in.CADF)
	assert.Nil(t, in.Johansen)
	assert.Nil(t, in.Costs)
	assert.Empty(t, in.Budget)
}

func TestGenerateHTML(t *testing.T) {
	in := collect(t)
	html, err := GenerateHTML(in, fixedConfig(FormatHTML))
	require.NoError(t, err)

	doc := parseHTML(t, html)
	assert.Equal(t, "AAA / BBB Bollinger Pair backtest", doc.Find("title").Text())
	assert.Equal(t, 2, doc.Find(".ticker-badge").Length())
	assert.Equal(t, 9, doc.Find("#performance .metric").Length())
	assert.Equal(t, 1, doc.Find("#prices svg").Length())
	assert.Equal(t, 1, doc.Find("#zscore svg").Length())
	assert.Equal(t, 1, doc.Find("#returns svg").Length())
	assert.Equal(t, 3, doc.Find("#cointegration tbody tr").Length(), "one CADF row and two trace rows")
	assert.Equal(t, 4, doc.Find("#budget tbody tr").Length())
	assert.Equal(t, len(in.Costs.Orders), doc.Find("#costs table.orders tbody tr").Length())
	assert.Contains(t, doc.Find(".header-right").Text(), "01 Jun 2024")
}

func TestGenerateHTMLMinimal(t *testing.T) {
	in := Input{Result: &models.PairBacktestResult{
		Primary:      "KO",
		Secondary:    "PEP",
		StrategyName: "Hold",
		TotalReturn:  -0.05,
	}}
	cfg := fixedConfig(FormatHTML)
	cfg.Title = `<script>alert("x")</script>`
	html, err := GenerateHTML(in, cfg)
	require.NoError(t, err)

	doc := parseHTML(t, html)
	assert.Equal(t, 0, doc.Find("script").Length(), "title must be escaped")
	assert.Equal(t, 0, doc.Find("#prices").Length())
	assert.Equal(t, 0, doc.Find("#costs").Length())
	assert.Equal(t, 0, doc.Find("#cointegration").Length())

	var cagr string
	doc.Find("#performance .metric").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(".label").Text() == "CAGR" {
			cagr = sel.Find(".value").Text()
		}
	})
	assert.Equal(t, "n/a", cagr)
	assert.True(t, doc.Find("#performance .value.negative").Length() > 0)
}

func TestGenerateText(t *testing.T) {
	in := collect(t)
	out, err := GenerateText(in, fixedConfig(FormatText))
	require.NoError(t, err)
	for _, want := range []string{"AAA / BBB", "PERFORMANCE", "COMMISSION-CONSTRAINED RUN", "COINTEGRATION", "BUDGET", "Sharpe"} {
		assert.Contains(t, out, want)
	}
}

func TestGenerateJSON(t *testing.T) {
	in := collect(t)
	out, err := GenerateJSON(in, fixedConfig(FormatJSON))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "AAA", got["primary"])
	assert.Equal(t, "BBB", got["secondary"])
	assert.Contains(t, got, "costs")
	assert.Contains(t, got, "cointegration")
	params := got["params"].(map[string]any)
	assert.Equal(t, float64(20), params["lookback"])

	units := in.Result.Units
	assert.Equal(t, string(models.SignalFromUnit(units[len(units)-1])), got["position"])
}

func TestGenerateYAML(t *testing.T) {
	in := collect(t)
	out, err := GenerateYAML(in, fixedConfig(FormatYAML))
	require.NoError(t, err)

	var got Summary
	require.NoError(t, yaml.Unmarshal(out, &got))
	assert.Equal(t, "AAA", got.Primary)
	assert.Equal(t, 20, got.Params.Lookback)
	assert.Equal(t, "current", got.Params.Alignment)
	assert.Len(t, got.Budget, 4)
	assert.Equal(t, in.Result.TradingDays, got.TradingDays)
}

func TestRender(t *testing.T) {
	in := Input{Result: &models.PairBacktestResult{Primary: "KO", Secondary: "PEP", StrategyName: "Hold"}}
	for _, f := range []ReportFormat{FormatText, FormatHTML, FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, in, fixedConfig(f)), f)
		assert.Contains(t, buf.String(), "PEP", f)
	}

	var buf bytes.Buffer
	err := Render(&buf, in, fixedConfig("pdf"))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1.5m"},
		{3 * time.Hour, "3.0h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}
