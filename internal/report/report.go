package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator: chart and template rendering
// ════════════════════════════════════════════════════════════════════

// ReportFormat specifies the output format.
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
	FormatYAML ReportFormat = "yaml"
)

// ParseFormat maps a user-supplied format name to a ReportFormat.
func ParseFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "html":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q", models.ErrInvalidArgument, s)
}

// ReportConfig controls report generation behaviour.
type ReportConfig struct {
	Format      ReportFormat // output format (default: text)
	Title       string       // custom report title (optional)
	Author      string       // default: "pairtrade"
	GeneratedAt time.Time    // report timestamp (default: now)
	ChartCfg    ChartConfig  // chart rendering config
}

// DefaultReportConfig returns sensible defaults.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Format:   FormatText,
		Author:   "pairtrade",
		ChartCfg: DefaultChartConfig(),
	}
}

// Input is everything a report can show. Only Result is required; the
// other sections are rendered when present.
type Input struct {
	Result   *models.PairBacktestResult
	Window   *pair.PriceWindow
	Signals  *backtest.Signals
	Costs    *backtest.CostResult
	CADF     *pair.CADFResult
	Johansen *pair.JohansenResult
	Budget   []pair.BudgetLevel
}

// ════════════════════════════════════════════════════════════════════
// Summary: serializable view
// ════════════════════════════════════════════════════════════════════

// Summary is the machine-readable report. Undefined metrics are omitted.
type Summary struct {
	Title       string                `json:"title" yaml:"title"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	ID          string                `json:"id,omitempty" yaml:"id,omitempty"`
	Primary     string                `json:"primary" yaml:"primary"`
	Secondary   string                `json:"secondary" yaml:"secondary"`
	Strategy    string                `json:"strategy" yaml:"strategy"`
	Params      models.StrategyParams `json:"params" yaml:"params"`
	From        string                `json:"from" yaml:"from"`
	To          string                `json:"to" yaml:"to"`
	TradingDays int                   `json:"trading_days" yaml:"trading_days"`

	TotalReturn     float64           `json:"total_return" yaml:"total_return"`
	CAGR            *float64          `json:"cagr,omitempty" yaml:"cagr,omitempty"`
	Sharpe          *float64          `json:"sharpe,omitempty" yaml:"sharpe,omitempty"`
	Sortino         *float64          `json:"sortino,omitempty" yaml:"sortino,omitempty"`
	APR             *float64          `json:"apr,omitempty" yaml:"apr,omitempty"`
	MaxDrawdown     float64           `json:"max_drawdown" yaml:"max_drawdown"`
	MaxDrawdownDays int               `json:"max_drawdown_days" yaml:"max_drawdown_days"`
	Transitions     int               `json:"transitions" yaml:"transitions"`
	DaysInMarket    int               `json:"days_in_market" yaml:"days_in_market"`
	Position        models.SignalType `json:"position" yaml:"position"` // direction held on the last day

	Costs         *CostSummary         `json:"costs,omitempty" yaml:"costs,omitempty"`
	Cointegration *CointegrationReport `json:"cointegration,omitempty" yaml:"cointegration,omitempty"`
	Budget        []BudgetRow          `json:"budget,omitempty" yaml:"budget,omitempty"`
}

// CostSummary condenses a commission-constrained simulation.
type CostSummary struct {
	InitialBudget float64 `json:"initial_budget" yaml:"initial_budget"`
	FinalBudget   float64 `json:"final_budget" yaml:"final_budget"`
	Return        float64 `json:"return" yaml:"return"`
	Commission    float64 `json:"commission" yaml:"commission"`
	Orders        int     `json:"orders" yaml:"orders"`
}

// CointegrationReport holds the CADF and Johansen outcomes.
type CointegrationReport struct {
	CADFStatistic    *float64   `json:"cadf_statistic,omitempty" yaml:"cadf_statistic,omitempty"`
	CADFCritical5    *float64   `json:"cadf_critical_5pct,omitempty" yaml:"cadf_critical_5pct,omitempty"`
	CADFLag          int        `json:"cadf_lag" yaml:"cadf_lag"`
	CADFCointegrated bool       `json:"cadf_cointegrated" yaml:"cadf_cointegrated"`
	JohansenRank     *int       `json:"johansen_rank_95,omitempty" yaml:"johansen_rank_95,omitempty"`
	TraceStat        []float64  `json:"trace_stat,omitempty" yaml:"trace_stat,omitempty"`
	Vector           [2]float64 `json:"vector" yaml:"vector"`
}

// BudgetRow is one budget-table level.
type BudgetRow struct {
	Decimals int        `json:"decimals" yaml:"decimals"`
	Ratio    [2]float64 `json:"ratio" yaml:"ratio"`
	Shares   [2]int64   `json:"shares" yaml:"shares"`
	Budget   float64    `json:"budget" yaml:"budget"`
}

// BuildSummary flattens the input into its serializable summary.
func BuildSummary(in Input, cfg ReportConfig) (*Summary, error) {
	r := in.Result
	if r == nil {
		return nil, fmt.Errorf("%w: report needs a backtest result", models.ErrInvalidArgument)
	}
	s := &Summary{
		Title:           reportTitle(r, cfg),
		GeneratedAt:     generatedAt(cfg),
		ID:              r.ID,
		Primary:         r.Primary,
		Secondary:       r.Secondary,
		Strategy:        r.StrategyName,
		Params:          r.Params,
		From:            utils.FormatDate(r.From),
		To:              utils.FormatDate(r.To),
		TradingDays:     r.TradingDays,
		TotalReturn:     r.TotalReturn,
		CAGR:            r.CAGR,
		Sharpe:          r.SharpeRatio,
		Sortino:         r.SortinoRatio,
		APR:             r.APR,
		MaxDrawdown:     r.MaxDrawdown,
		MaxDrawdownDays: r.MaxDrawdownDays,
		Transitions:     r.Transitions,
		DaysInMarket:    r.DaysInMarket,
		Position:        models.SignalFlat,
	}
	if n := len(r.Units); n > 0 {
		s.Position = models.SignalFromUnit(r.Units[n-1])
	}
	if c := in.Costs; c != nil {
		s.Costs = &CostSummary{
			InitialBudget: c.InitialBudget,
			FinalBudget:   c.FinalBudget,
			Return:        c.Return,
			Commission:    c.Commission,
			Orders:        len(c.Orders),
		}
	}
	if in.CADF != nil || in.Johansen != nil {
		cr := &CointegrationReport{}
		if c := in.CADF; c != nil {
			cr.CADFStatistic = models.OptionalFloat(c.Statistic)
			if crit, ok := c.Critical["5%"]; ok {
				cr.CADFCritical5 = models.OptionalFloat(crit)
			}
			cr.CADFLag = c.UsedLag
			cr.CADFCointegrated = c.Cointegrated("5%")
		}
		if j := in.Johansen; j != nil && len(j.Eigenvectors) > 0 {
			rank := j.Rank(pair.Level95)
			cr.JohansenRank = &rank
			cr.TraceStat = j.TraceStat
			cr.Vector = j.Vector()
		}
		s.Cointegration = cr
	}
	for _, l := range in.Budget {
		s.Budget = append(s.Budget, BudgetRow(l))
	}
	return s, nil
}

func reportTitle(r *models.PairBacktestResult, cfg ReportConfig) string {
	if cfg.Title != "" {
		return cfg.Title
	}
	return fmt.Sprintf("%s / %s %s backtest", r.Primary, r.Secondary, r.StrategyName)
}

func generatedAt(cfg ReportConfig) time.Time {
	if cfg.GeneratedAt.IsZero() {
		return time.Now().UTC()
	}
	return cfg.GeneratedAt
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// Render writes the report in cfg.Format to w.
func Render(w io.Writer, in Input, cfg ReportConfig) error {
	var (
		out []byte
		err error
	)
	switch cfg.Format {
	case FormatHTML:
		var s string
		s, err = GenerateHTML(in, cfg)
		out = []byte(s)
	case FormatJSON:
		out, err = GenerateJSON(in, cfg)
	case FormatYAML:
		out, err = GenerateYAML(in, cfg)
	case FormatText, "":
		var s string
		s, err = GenerateText(in, cfg)
		out = []byte(s)
	default:
		return fmt.Errorf("%w: unknown report format %q", models.ErrInvalidArgument, cfg.Format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// GenerateJSON renders the summary as indented JSON.
func GenerateJSON(in Input, cfg ReportConfig) ([]byte, error) {
	s, err := BuildSummary(in, cfg)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

// GenerateYAML renders the summary as YAML.
func GenerateYAML(in Input, cfg ReportConfig) ([]byte, error) {
	s, err := BuildSummary(in, cfg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateHTML generates a self-contained HTML report with inline charts.
func GenerateHTML(in Input, cfg ReportConfig) (string, error) {
	s, err := BuildSummary(in, cfg)
	if err != nil {
		return "", err
	}

	data := buildReportData(s, in, cfg)

	tmpl, err := template.New("report").Parse(ReportTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}

// GenerateText generates a plain-text report (terminal / CLI friendly).
func GenerateText(in Input, cfg ReportConfig) (string, error) {
	s, err := BuildSummary(in, cfg)
	if err != nil {
		return "", err
	}
	return renderTextReport(s, in, cfg), nil
}

// ════════════════════════════════════════════════════════════════════
// Report Data: flattened for template rendering
// ════════════════════════════════════════════════════════════════════

// ReportData is the template model passed to the HTML template.
type ReportData struct {
	Title       string
	Primary     string
	Secondary   string
	Strategy    string
	Params      string
	Period      string
	Author      string
	GeneratedAt string

	Metrics       []MetricRow
	Costs         []MetricRow
	Orders        []OrderRow
	Cointegration []CointRow
	Budget        []BudgetDisplayRow

	// Charts (embedded SVG strings)
	PriceChart   template.HTML
	ZScoreChart  template.HTML
	ReturnsChart template.HTML
	BudgetChart  template.HTML
}

// MetricRow is a labelled figure; Class is "positive", "negative" or "".
type MetricRow struct {
	Label string
	Value string
	Class string
}

// OrderRow is a formatted simulated order.
type OrderRow struct {
	Date       string
	Symbol     string
	Quantity   string
	Price      string
	Commission string
	Class      string
}

// CointRow is one cointegration test outcome.
type CointRow struct {
	Test      string
	Statistic string
	Critical  string
	Result    string
	Class     string
}

// BudgetDisplayRow is a formatted budget level.
type BudgetDisplayRow struct {
	Decimals int
	Ratio    string
	Shares   string
	Budget   string
}

func buildReportData(s *Summary, in Input, cfg ReportConfig) ReportData {
	cc := cfg.ChartCfg
	if cc.Width == 0 {
		cc = DefaultChartConfig()
	}
	author := cfg.Author
	if author == "" {
		author = "pairtrade"
	}

	data := ReportData{
		Title:       s.Title,
		Primary:     s.Primary,
		Secondary:   s.Secondary,
		Strategy:    s.Strategy,
		Params:      formatParams(s.Params),
		Period:      fmt.Sprintf("%s to %s (%d days)", s.From, s.To, s.TradingDays),
		Author:      author,
		GeneratedAt: s.GeneratedAt.Format("02 Jan 2006 15:04 MST"),
		Metrics:     metricRows(s),
	}

	if c := s.Costs; c != nil {
		data.Costs = []MetricRow{
			{Label: "Initial budget", Value: utils.FormatUSD(c.InitialBudget)},
			{Label: "Final budget", Value: utils.FormatUSD(c.FinalBudget)},
			{Label: "Net return", Value: utils.FormatPct(c.Return), Class: signClass(c.Return)},
			{Label: "Commission", Value: utils.FormatUSD(c.Commission)},
			{Label: "Orders", Value: fmt.Sprintf("%d", c.Orders)},
		}
		for _, o := range in.Costs.Orders {
			data.Orders = append(data.Orders, OrderRow{
				Date:       utils.FormatDate(o.Date),
				Symbol:     o.Symbol,
				Quantity:   fmt.Sprintf("%+.0f", o.Quantity),
				Price:      utils.FormatUSD(o.Price),
				Commission: utils.FormatUSD(o.Commission),
				Class:      signClass(o.Quantity),
			})
		}
	}

	data.Cointegration = cointRows(in)

	for _, b := range s.Budget {
		data.Budget = append(data.Budget, BudgetDisplayRow{
			Decimals: b.Decimals,
			Ratio:    fmt.Sprintf("[%g, %g]", b.Ratio[0], b.Ratio[1]),
			Shares:   fmt.Sprintf("%d / %d", b.Shares[0], b.Shares[1]),
			Budget:   utils.FormatUSD(b.Budget),
		})
	}
	if len(in.Budget) > 0 {
		data.BudgetChart = template.HTML(BudgetChart(in.Budget, cc))
	}

	if in.Window != nil && len(in.Window.Dates) > 0 {
		data.PriceChart = template.HTML(PriceChart(*in.Window, cc))
	}

	dates := make([]time.Time, len(in.Result.Cumulative))
	cum := make([]float64, len(in.Result.Cumulative))
	for i, p := range in.Result.Cumulative {
		dates[i] = p.Date
		cum[i] = p.Value
	}
	if len(cum) > 0 {
		data.ReturnsChart = template.HTML(ReturnsChart(dates, cum, cc))
	}
	if in.Signals != nil && len(in.Signals.Spread) == len(dates) && s.Params.Lookback > 0 {
		z := backtest.ZScores(in.Signals.Spread, s.Params.Lookback)
		data.ZScoreChart = template.HTML(ZScoreChart(dates, z, s.Params.EntryZ, s.Params.ExitZ, cc))
	}

	return data
}

func metricRows(s *Summary) []MetricRow {
	return []MetricRow{
		{Label: "Total return", Value: utils.FormatPct(s.TotalReturn), Class: signClass(s.TotalReturn)},
		{Label: "CAGR", Value: formatOptional(s.CAGR, utils.FormatPct), Class: optionalClass(s.CAGR)},
		{Label: "APR", Value: formatOptional(s.APR, utils.FormatPct), Class: optionalClass(s.APR)},
		{Label: "Sharpe", Value: formatOptional(s.Sharpe, utils.FormatRatio), Class: optionalClass(s.Sharpe)},
		{Label: "Sortino", Value: formatOptional(s.Sortino, utils.FormatRatio), Class: optionalClass(s.Sortino)},
		{Label: "Max drawdown", Value: utils.FormatPct(-s.MaxDrawdown), Class: signClass(-s.MaxDrawdown)},
		{Label: "Drawdown days", Value: fmt.Sprintf("%d", s.MaxDrawdownDays)},
		{Label: "Transitions", Value: fmt.Sprintf("%d", s.Transitions)},
		{Label: "Days in market", Value: fmt.Sprintf("%d", s.DaysInMarket)},
	}
}

func cointRows(in Input) []CointRow {
	var rows []CointRow
	if c := in.CADF; c != nil {
		row := CointRow{
			Test:      fmt.Sprintf("CADF (lag %d)", c.UsedLag),
			Statistic: fmt.Sprintf("%.4f", c.Statistic),
			Critical:  fmt.Sprintf("%.4f (5%%)", c.Critical["5%"]),
			Result:    "not cointegrated",
		}
		if c.Cointegrated("5%") {
			row.Result, row.Class = "cointegrated", "positive"
		}
		rows = append(rows, row)
	}
	if j := in.Johansen; j != nil {
		for i := range j.TraceStat {
			row := CointRow{
				Test:      fmt.Sprintf("Johansen trace r<=%d", i),
				Statistic: fmt.Sprintf("%.4f", j.TraceStat[i]),
				Critical:  fmt.Sprintf("%.4f (95%%)", j.TraceCrit[i][pair.Level95]),
				Result:    "not rejected",
			}
			if j.TraceStat[i] > j.TraceCrit[i][pair.Level95] {
				row.Result, row.Class = "rejected", "positive"
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func formatParams(p models.StrategyParams) string {
	return fmt.Sprintf("lookback %d, entry %g, exit %g, %s", p.Lookback, p.EntryZ, p.ExitZ, p.Alignment)
}

func formatOptional(v *float64, f func(float64) string) string {
	if v == nil {
		return "n/a"
	}
	return f(*v)
}

func optionalClass(v *float64) string {
	if v == nil {
		return ""
	}
	return signClass(*v)
}

func signClass(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	}
	return ""
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(s *Summary, in Input, cfg ReportConfig) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", s.Title))
	sb.WriteString(fmt.Sprintf("  Generated: %s\n", s.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(line + "\n\n")

	sb.WriteString(fmt.Sprintf("  %s / %s  %s to %s (%d days)\n", s.Primary, s.Secondary, s.From, s.To, s.TradingDays))
	sb.WriteString(fmt.Sprintf("  %s: %s\n", s.Strategy, formatParams(s.Params)))
	sb.WriteString(fmt.Sprintf("  Position on %s: %s\n", s.To, s.Position))
	sb.WriteString(thinLine + "\n")

	sb.WriteString("\n  ■ PERFORMANCE\n")
	for _, m := range metricRows(s) {
		sb.WriteString(fmt.Sprintf("    %-16s %s\n", m.Label, m.Value))
	}
	sb.WriteString(thinLine + "\n")

	if c := s.Costs; c != nil {
		sb.WriteString("\n  ■ COMMISSION-CONSTRAINED RUN\n")
		sb.WriteString(fmt.Sprintf("    Budget: %s -> %s (%s)\n",
			utils.FormatUSD(c.InitialBudget), utils.FormatUSD(c.FinalBudget), utils.FormatPct(c.Return)))
		sb.WriteString(fmt.Sprintf("    Commission: %s over %d orders\n", utils.FormatUSD(c.Commission), c.Orders))
		sb.WriteString(thinLine + "\n")
	}

	if rows := cointRows(in); len(rows) > 0 {
		sb.WriteString("\n  ■ COINTEGRATION\n")
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("    %-24s %10s  crit %s  %s\n", r.Test, r.Statistic, r.Critical, r.Result))
		}
		if s.Cointegration != nil && s.Cointegration.JohansenRank != nil {
			v := s.Cointegration.Vector
			sb.WriteString(fmt.Sprintf("    Vector: [%.6f, %.6f]\n", v[0], v[1]))
		}
		sb.WriteString(thinLine + "\n")
	}

	if len(s.Budget) > 0 {
		sb.WriteString("\n  ■ BUDGET\n")
		for _, b := range s.Budget {
			sb.WriteString(fmt.Sprintf("    %d dp  shares %d / %d  %s\n", b.Decimals, b.Shares[0], b.Shares[1], utils.FormatUSD(b.Budget)))
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n" + line + "\n")
	return sb.String()
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
