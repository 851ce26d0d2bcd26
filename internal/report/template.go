package report

// ReportTemplate is the HTML template for a pairs backtest report.
// Charts are inlined as SVG so the page has no external assets.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1, h2, h3 { font-weight: 600; }
  h1 { font-size: 1.5rem; margin-bottom: 4px; }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-left h1 { color: var(--accent); }
  .header-right { text-align: right; }
  .ticker-badge {
    display: inline-block;
    background: var(--accent);
    color: white;
    padding: 2px 12px;
    border-radius: 4px;
    font-weight: 700;
    font-size: 1.1rem;
    margin-right: 8px;
  }

  .metric-grid {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(160px, 1fr));
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
    margin-bottom: 16px;
  }
  .metric { text-align: center; }
  .metric .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .metric .value { font-size: 1rem; font-weight: 600; }
  .positive { color: var(--green); }
  .negative { color: var(--red); }

  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.9rem; }
  th { background: var(--section-bg); text-align: left; padding: 8px; font-weight: 600; }
  td { padding: 8px; border-bottom: 1px solid var(--border); }

  .chart-container { margin: 12px 0; overflow-x: auto; }
  .chart-container svg { max-width: 100%; height: auto; }

  .section { margin: 20px 0; }
  .footer {
    margin-top: 30px;
    padding-top: 12px;
    border-top: 2px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }

  @media print {
    body { max-width: 100%; padding: 10px; }
    .section { page-break-inside: avoid; }
  }
</style>
</head>
<body>

<div class="header">
  <div class="header-left">
    <h1><span class="ticker-badge">{{.Primary}}</span><span class="ticker-badge">{{.Secondary}}</span> {{.Strategy}}</h1>
    <p class="muted">{{.Params}} · {{.Period}}</p>
  </div>
  <div class="header-right">
    <p class="muted">{{.GeneratedAt}}</p>
    <p class="muted">{{.Author}}</p>
  </div>
</div>

<div class="section" id="performance">
  <h2>Performance</h2>
  <div class="metric-grid">
    {{range .Metrics}}
    <div class="metric">
      <div class="label">{{.Label}}</div>
      <div class="value {{.Class}}">{{.Value}}</div>
    </div>
    {{end}}
  </div>
</div>

{{if .PriceChart}}
<div class="section" id="prices">
  <h2>Prices</h2>
  <div class="chart-container">{{.PriceChart}}</div>
</div>
{{end}}

{{if .ZScoreChart}}
<div class="section" id="zscore">
  <h2>Spread z-score</h2>
  <div class="chart-container">{{.ZScoreChart}}</div>
</div>
{{end}}

{{if .ReturnsChart}}
<div class="section" id="returns">
  <h2>Cumulative return</h2>
  <div class="chart-container">{{.ReturnsChart}}</div>
</div>
{{end}}

{{if .Cointegration}}
<div class="section" id="cointegration">
  <h2>Cointegration</h2>
  <table>
    <thead><tr><th>Test</th><th>Statistic</th><th>Critical</th><th>Result</th></tr></thead>
    <tbody>
    {{range .Cointegration}}
    <tr>
      <td>{{.Test}}</td>
      <td>{{.Statistic}}</td>
      <td>{{.Critical}}</td>
      <td class="{{.Class}}">{{.Result}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
</div>
{{end}}

{{if .Costs}}
<div class="section" id="costs">
  <h2>Commission-constrained run</h2>
  <div class="metric-grid">
    {{range .Costs}}
    <div class="metric">
      <div class="label">{{.Label}}</div>
      <div class="value {{.Class}}">{{.Value}}</div>
    </div>
    {{end}}
  </div>
  {{if .Orders}}
  <table class="orders">
    <thead><tr><th>Date</th><th>Symbol</th><th>Quantity</th><th>Price</th><th>Commission</th></tr></thead>
    <tbody>
    {{range .Orders}}
    <tr>
      <td>{{.Date}}</td>
      <td>{{.Symbol}}</td>
      <td class="{{.Class}}">{{.Quantity}}</td>
      <td>{{.Price}}</td>
      <td>{{.Commission}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
  {{end}}
</div>
{{end}}

{{if .Budget}}
<div class="section" id="budget">
  <h2>Budget</h2>
  <table>
    <thead><tr><th>Decimals</th><th>Ratio</th><th>Shares</th><th>Budget</th></tr></thead>
    <tbody>
    {{range .Budget}}
    <tr>
      <td>{{.Decimals}}</td>
      <td>{{.Ratio}}</td>
      <td>{{.Shares}}</td>
      <td>{{.Budget}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
  {{if .BudgetChart}}<div class="chart-container">{{.BudgetChart}}</div>{{end}}
</div>
{{end}}

<div class="footer">
  <p>Backtest results are hypothetical and ignore slippage and borrowing costs.</p>
  <p>Generated on {{.GeneratedAt}}</p>
</div>

</body>
</html>`
