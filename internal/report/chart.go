// Package report renders pairs backtest results as SVG charts, HTML pages,
// plain text, JSON and YAML.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// SVG Chart Generator
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 400)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 60)
	MarginBottom int    // bottom margin (default: 50)
	MarginLeft   int    // left margin (default: 70)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // axis label color (default: "#333333")
	FontSize     int    // axis label font size (default: 11)
	Title        string // chart title
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  60,
		MarginBottom: 50,
		MarginLeft:   70,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

func (c ChartConfig) withTitle(title string) ChartConfig {
	if c.Width == 0 {
		t := c.Title
		c = DefaultChartConfig()
		c.Title = t
	}
	if c.Title == "" {
		c.Title = title
	}
	return c
}

// ════════════════════════════════════════════════════════════════════
// Line Chart
// ════════════════════════════════════════════════════════════════════

// LineChartSeries represents a named data series for line charts.
type LineChartSeries struct {
	Name   string
	Values []float64
	Color  string // hex color (optional, auto-assigned if empty)
}

// RefLine is a dashed horizontal reference line, such as a z-score band.
type RefLine struct {
	Label string
	Value float64
	Color string
}

// LineChart generates an SVG line chart with one or more series.
// Labels are optional X-axis labels corresponding to data points. NaN
// values leave a gap in the line.
func LineChart(series []LineChartSeries, labels []string, cfg ChartConfig) string {
	return lineChart(series, labels, nil, "%.1f", cfg.withTitle("Line Chart"))
}

func lineChart(series []LineChartSeries, labels []string, refs []RefLine, yFormat string, cfg ChartConfig) string {
	if len(series) == 0 {
		return emptySVG(cfg, "No data")
	}

	px, py, pw, ph := cfg.plotArea()

	// Find global min/max
	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	maxLen := 0
	for _, s := range series {
		if len(s.Values) > maxLen {
			maxLen = len(s.Values)
		}
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if maxLen == 0 || minVal > maxVal {
		return emptySVG(cfg, "No data points")
	}
	for _, r := range refs {
		minVal = math.Min(minVal, r.Value)
		maxVal = math.Max(maxVal, r.Value)
	}

	vRange := maxVal - minVal
	if vRange < 0.001 {
		vRange = 1
	}
	minVal -= vRange * 0.05
	maxVal += vRange * 0.05
	vRange = maxVal - minVal

	xAt := func(i int) float64 {
		if maxLen == 1 {
			return float64(px) + float64(pw)/2
		}
		return float64(px) + float64(i)*float64(pw)/float64(maxLen-1)
	}
	yAt := func(v float64) float64 {
		return float64(py+ph) - (v-minVal)/vRange*float64(ph)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title)))

	// Y-axis grid
	gridLines := 5
	for i := 0; i <= gridLines; i++ {
		val := minVal + vRange*float64(i)/float64(gridLines)
		y := py + ph - int(float64(ph)*float64(i)/float64(gridLines))
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, fmt.Sprintf(yFormat, val)))
	}

	for _, r := range refs {
		color := r.Color
		if color == "" {
			color = "#9e9e9e"
		}
		y := yAt(r.Value)
		sb.WriteString(fmt.Sprintf(`<line class="ref" x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="6,4"/>`,
			px, y, px+pw, y, color))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="10" fill="%s">%s</text>`,
			px+pw+4, y+3, color, escapeXML(r.Label)))
	}

	// Draw series
	defaultColors := []string{"#2196f3", "#ff9800", "#4caf50", "#e91e63", "#9c27b0", "#00bcd4"}
	for si, s := range series {
		color := s.Color
		if color == "" {
			color = defaultColors[si%len(defaultColors)]
		}

		var pathParts []string
		pen := false
		for i, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				pen = false
				continue
			}
			cmd := "L"
			if !pen {
				cmd = "M"
				pen = true
			}
			pathParts = append(pathParts, fmt.Sprintf("%s%.1f,%.1f", cmd, xAt(i), yAt(v)))
		}
		if len(pathParts) > 0 {
			sb.WriteString(fmt.Sprintf(`<path class="series" d="%s" fill="none" stroke="%s" stroke-width="1.5"/>`,
				strings.Join(pathParts, " "), color))
		}

		// Legend
		ly := py + 10 + si*16
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`,
			px+10, ly, px+30, ly, color))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			px+35, ly+4, cfg.TextColor, escapeXML(s.Name)))
	}

	// X-axis labels
	if len(labels) > 0 {
		interval := maxLen / 6
		if interval < 1 {
			interval = 1
		}
		for i := 0; i < len(labels) && i < maxLen; i += interval {
			sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
				xAt(i), py+ph+18, cfg.FontSize-1, cfg.TextColor, escapeXML(labels[i])))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Pair Charts
// ════════════════════════════════════════════════════════════════════

// PriceChart plots both legs' closes over a window.
func PriceChart(w pair.PriceWindow, cfg ChartConfig) string {
	cfg = cfg.withTitle(fmt.Sprintf("%s and %s closing prices", w.Primary, w.Secondary))
	return lineChart([]LineChartSeries{
		{Name: w.Primary, Values: w.P1},
		{Name: w.Secondary, Values: w.P2},
	}, dateLabels(w.Dates), nil, "%.2f", cfg)
}

// ZScoreChart plots the spread z-score with the entry and exit bands.
func ZScoreChart(dates []time.Time, z []float64, entryZ, exitZ float64, cfg ChartConfig) string {
	cfg = cfg.withTitle("Spread z-score")
	refs := []RefLine{
		{Label: fmt.Sprintf("+%.2g", entryZ), Value: entryZ, Color: "#ef5350"},
		{Label: fmt.Sprintf("-%.2g", entryZ), Value: -entryZ, Color: "#26a69a"},
	}
	if exitZ != 0 {
		refs = append(refs,
			RefLine{Label: fmt.Sprintf("+%.2g", exitZ), Value: exitZ},
			RefLine{Label: fmt.Sprintf("-%.2g", exitZ), Value: -exitZ})
	} else {
		refs = append(refs, RefLine{Label: "0", Value: 0})
	}
	return lineChart([]LineChartSeries{{Name: "z", Values: z, Color: "#3f51b5"}},
		dateLabels(dates), refs, "%.1f", cfg)
}

// ReturnsChart plots cumulative returns as percentages.
func ReturnsChart(dates []time.Time, cumulative []float64, cfg ChartConfig) string {
	cfg = cfg.withTitle("Cumulative return")
	pct := make([]float64, len(cumulative))
	for i, v := range cumulative {
		pct[i] = v * 100
	}
	return lineChart([]LineChartSeries{{Name: "strategy %", Values: pct, Color: "#4caf50"}},
		dateLabels(dates), []RefLine{{Label: "0%", Value: 0}}, "%.1f%%", cfg)
}

func dateLabels(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = utils.FormatDate(d)
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Bar Chart (Horizontal)
// ════════════════════════════════════════════════════════════════════

// BarItem represents a single bar in a horizontal bar chart.
type BarItem struct {
	Label string
	Value float64
	Color string // optional
}

// HorizontalBarChart generates an SVG horizontal bar chart. format
// renders each bar's value label.
func HorizontalBarChart(items []BarItem, format func(float64) string, cfg ChartConfig) string {
	cfg = cfg.withTitle("Comparison")
	if len(items) == 0 {
		return emptySVG(cfg, "No data")
	}
	if format == nil {
		format = func(v float64) string { return fmt.Sprintf("%.1f", v) }
	}
	cfg.MarginLeft = 120 // wider for labels

	px, py, pw, ph := cfg.plotArea()

	maxVal := 0.0
	minVal := 0.0
	for _, item := range items {
		maxVal = math.Max(maxVal, item.Value)
		minVal = math.Min(minVal, item.Value)
	}

	hasNegative := minVal < 0
	valRange := maxVal - minVal
	if valRange < 0.001 {
		valRange = 1
	}
	if maxVal == 0 {
		maxVal = 1
	}

	barH := float64(ph) / float64(len(items)) * 0.7
	if barH > 30 {
		barH = 30
	}
	gap := (float64(ph) - barH*float64(len(items))) / float64(len(items)+1)

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title)))

	// Zero line for mixed positive/negative
	zeroX := float64(px)
	if hasNegative {
		zeroX = float64(px) + (-minVal/valRange)*float64(pw)
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#999" stroke-width="1"/>`,
			zeroX, py, zeroX, py+ph))
	}

	for i, item := range items {
		by := float64(py) + gap + float64(i)*(barH+gap)
		color := item.Color
		if color == "" {
			color = "#4caf50"
			if item.Value < 0 {
				color = "#ef5350"
			}
		}

		var bx, bw float64
		switch {
		case !hasNegative:
			bx = float64(px)
			bw = item.Value / maxVal * float64(pw)
		case item.Value >= 0:
			bx = zeroX
			bw = item.Value / valRange * float64(pw)
		default:
			bw = -item.Value / valRange * float64(pw)
			bx = zeroX - bw
		}

		sb.WriteString(fmt.Sprintf(`<rect class="bar" x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"/>`,
			bx, by, bw, barH, color))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(item.Label)))
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%s</text>`,
			bx+bw+5, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(format(item.Value))))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// BudgetChart compares the capital each truncation level needs.
func BudgetChart(levels []pair.BudgetLevel, cfg ChartConfig) string {
	cfg = cfg.withTitle("Budget by hedge-ratio precision")
	items := make([]BarItem, len(levels))
	for i, l := range levels {
		items[i] = BarItem{Label: fmt.Sprintf("%d dp", l.Decimals), Value: l.Budget, Color: "#2196f3"}
	}
	return HorizontalBarChart(items, utils.FormatUSD, cfg)
}

// ════════════════════════════════════════════════════════════════════
// SVG helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
