package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/datasource"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/internal/report"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ============================================================
// Request / Response types
// ============================================================

// PairRequest identifies a pair and an optional date range.
type PairRequest struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	From      string `json:"from,omitempty"` // YYYY-MM-DD
	To        string `json:"to,omitempty"`   // YYYY-MM-DD
}

// StrategyRequest overrides the server's default strategy. Numbers are
// accepted as floats so that non-integral lookbacks can be rejected
// explicitly.
type StrategyRequest struct {
	Strategy  string   `json:"strategy,omitempty"`
	Lookback  *float64 `json:"lookback,omitempty"`
	EntryZ    *float64 `json:"entry_z,omitempty"`
	ExitZ     *float64 `json:"exit_z,omitempty"`
	Alignment string   `json:"alignment,omitempty"`
}

// BacktestRequest is the body for POST /api/v1/backtest.
type BacktestRequest struct {
	PairRequest
	StrategyRequest
	Costs  *bool `json:"costs,omitempty"`  // default: costs.enabled
	Series bool  `json:"series,omitempty"` // include daily and cumulative series
}

// BacktestResponse is the payload of POST /api/v1/backtest.
type BacktestResponse struct {
	Result *models.PairBacktestResult `json:"result"`
	Costs  *backtest.CostResult       `json:"costs,omitempty"`
}

// SweepRequest is the body for POST /api/v1/sweep.
type SweepRequest struct {
	PairRequest
	Lookbacks []int     `json:"lookbacks"`
	EntryZ    []float64 `json:"entry_z"`
	ExitZ     []float64 `json:"exit_z"`
	Alignment string    `json:"alignment,omitempty"`
}

// SweepResponse is the payload of POST /api/v1/sweep.
type SweepResponse struct {
	Runs    int                          `json:"runs"`
	Results []*models.PairBacktestResult `json:"results"`
	Best    *models.PairBacktestResult   `json:"best,omitempty"`
}

// HedgeRequest is the body for POST /api/v1/hedge.
type HedgeRequest struct {
	PairRequest
	Lookback  *float64 `json:"lookback,omitempty"`
	Alignment string   `json:"alignment,omitempty"`
}

// HedgeResponse holds rolling hedge ratios. Undefined dates are null.
type HedgeResponse struct {
	Primary   string      `json:"primary"`
	Secondary string      `json:"secondary"`
	Lookback  int         `json:"lookback"`
	Alignment string      `json:"alignment"`
	Dates     []string    `json:"dates"`
	Ratios    []*float64  `json:"hedge_ratio"`
	Spread    []*float64  `json:"spread"`
	Latest    *[2]float64 `json:"latest_vector,omitempty"`
}

// CointegrationResponse is the payload of POST /api/v1/cointegration.
type CointegrationResponse struct {
	Primary          string               `json:"primary"`
	Secondary        string               `json:"secondary"`
	CADF             *pair.CADFResult     `json:"cadf,omitempty"`
	CADFCointegrated bool                 `json:"cadf_cointegrated_5pct"`
	Johansen         *pair.JohansenResult `json:"johansen,omitempty"`
	JohansenRank     int                  `json:"johansen_rank_95"`
	Vector           *[2]float64          `json:"vector,omitempty"`
}

// BudgetRequest is the body for POST /api/v1/budget. Without Ratio the
// Johansen vector is used; without Decimals the full table is returned.
type BudgetRequest struct {
	PairRequest
	Ratio    []float64 `json:"ratio,omitempty"`
	Decimals *float64  `json:"decimals,omitempty"`
}

// BudgetResponse is the payload of POST /api/v1/budget.
type BudgetResponse struct {
	Ratio  []float64          `json:"ratio"`
	Budget *float64           `json:"budget,omitempty"`
	Levels []pair.BudgetLevel `json:"levels,omitempty"`
}

// ============================================================
// Request resolution
// ============================================================

func (s *Server) loadPair(ctx context.Context, req PairRequest) (*pair.Pair, error) {
	primary, secondary := utils.NormalizeTicker(req.Primary), utils.NormalizeTicker(req.Secondary)
	if err := utils.ValidateSymbol(primary); err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	if err := utils.ValidateSymbol(secondary); err != nil {
		return nil, fmt.Errorf("secondary: %w", err)
	}
	var from, to *time.Time
	if req.From != "" {
		t, err := utils.ParseDate(req.From)
		if err != nil {
			return nil, err
		}
		from = &t
	}
	if req.To != "" {
		t, err := utils.ParseDate(req.To)
		if err != nil {
			return nil, err
		}
		to = &t
	}
	return datasource.FetchPairBetween(ctx, s.provider, primary, secondary, from, to)
}

func (s *Server) resolveStrategy(req StrategyRequest) (backtest.Strategy, error) {
	def := s.defaultStrategy()
	name := def.Name
	if req.Strategy != "" {
		name = req.Strategy
	}
	params := def.StrategyParams
	if req.Lookback != nil {
		lb, err := pair.LookbackFromFloat(*req.Lookback)
		if err != nil {
			return nil, err
		}
		params.Lookback = lb
	}
	if req.EntryZ != nil {
		params.EntryZ = *req.EntryZ
	}
	if req.ExitZ != nil {
		params.ExitZ = *req.ExitZ
	}
	if req.Alignment != "" {
		params.Alignment = req.Alignment
	}
	return backtest.NewStrategy(name, params)
}

// stripSeries returns a copy of r without its per-date series.
func stripSeries(r *models.PairBacktestResult) *models.PairBacktestResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Daily, c.Cumulative, c.Units = nil, nil, nil
	return &c
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if !s.decode(w, r, &req) {
		return
	}
	strat, err := s.resolveStrategy(req.StrategyRequest)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	p, err := s.loadPair(r.Context(), req.PairRequest)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	result, err := s.engine.Run(r.Context(), strat, p)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	resp := BacktestResponse{Result: result}
	withCosts := s.cfg.Costs.Enabled
	if req.Costs != nil {
		withCosts = *req.Costs
	}
	if withCosts {
		cr, err := backtest.StrategyCosts(strat, p, s.cfg.Costs.CostModel)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		resp.Costs = &cr
	}
	if !req.Series {
		resp.Result = stripSeries(result)
	}

	s.wsHub.Broadcast(WSMessage{Type: MsgBacktestComplete, Data: stripSeries(result)})
	s.writeData(w, resp)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Lookbacks) == 0 || len(req.EntryZ) == 0 || len(req.ExitZ) == 0 {
		s.writeError(w, http.StatusBadRequest, "lookbacks, entry_z and exit_z are required")
		return
	}
	alignment := req.Alignment
	if alignment == "" {
		alignment = s.defaultStrategy().Alignment
	}
	grid := backtest.ParamGrid(req.Lookbacks, req.EntryZ, req.ExitZ, alignment)
	if len(grid) == 0 {
		s.writeError(w, http.StatusBadRequest, "parameter grid is empty: every exit_z must be below an entry_z")
		return
	}
	p, err := s.loadPair(r.Context(), req.PairRequest)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	results, err := s.engine.Sweep(r.Context(), p, grid)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	resp := SweepResponse{Runs: len(results), Results: make([]*models.PairBacktestResult, len(results))}
	for i, res := range results {
		resp.Results[i] = stripSeries(res)
	}
	resp.Best = stripSeries(backtest.BestBySharpe(results))

	s.wsHub.Broadcast(WSMessage{Type: MsgSweepComplete, Data: map[string]interface{}{
		"pair": p.Name(),
		"runs": len(results),
		"best": resp.Best,
	}})
	s.writeData(w, resp)
}

func (s *Server) handleHedge(w http.ResponseWriter, r *http.Request) {
	var req HedgeRequest
	if !s.decode(w, r, &req) {
		return
	}
	lookback := s.defaultStrategy().Lookback
	if req.Lookback != nil {
		lb, err := pair.LookbackFromFloat(*req.Lookback)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		lookback = lb
	}
	alignStr := req.Alignment
	if alignStr == "" {
		alignStr = s.defaultStrategy().Alignment
	}
	align, err := pair.ParseAlignment(alignStr)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	p, err := s.loadPair(r.Context(), req.PairRequest)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	h, err := p.HedgeRatios(lookback, align)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	spread, err := p.Spread(h)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	primary, secondary := p.Symbols()
	resp := HedgeResponse{
		Primary:   primary,
		Secondary: secondary,
		Lookback:  lookback,
		Alignment: align.String(),
		Ratios:    models.NullableSeries(h.Slope),
		Spread:    models.NullableSeries(spread),
	}
	for _, d := range p.Dates() {
		resp.Dates = append(resp.Dates, utils.FormatDate(d))
	}
	for i := h.Len() - 1; i >= 0; i-- {
		if h.Defined(i) {
			v := h.Vector(i)
			resp.Latest = &v
			break
		}
	}
	s.writeData(w, resp)
}

func (s *Server) handleCointegration(w http.ResponseWriter, r *http.Request) {
	var req PairRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.loadPair(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	cadf, err := p.CADF()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	joh, err := p.Johansen()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	primary, secondary := p.Symbols()
	v := joh.Vector()
	s.writeData(w, CointegrationResponse{
		Primary:          primary,
		Secondary:        secondary,
		CADF:             &cadf,
		CADFCointegrated: cadf.Cointegrated("5%"),
		Johansen:         &joh,
		JohansenRank:     joh.Rank(pair.Level95),
		Vector:           &v,
	})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.loadPair(r.Context(), req.PairRequest)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	ratio := req.Ratio
	if ratio == nil {
		v, err := p.CointegrationVector()
		if err != nil {
			s.writeErr(w, err)
			return
		}
		ratio = v[:]
	}

	resp := BudgetResponse{Ratio: ratio}
	if req.Decimals != nil {
		dec, err := utils.DecimalsFromFloat(*req.Decimals)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		b, err := p.Budget(ratio, dec)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		resp.Budget = &b
	} else {
		if resp.Levels, err = p.BudgetTable(ratio); err != nil {
			s.writeErr(w, err)
			return
		}
	}
	s.writeData(w, resp)
}

// handleReport renders a full report. Query parameters: primary,
// secondary, from, to, strategy, lookback, entry_z, exit_z, alignment and
// format (html, text, json or yaml).
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := report.ParseFormat(q.Get("format"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	sreq := StrategyRequest{Strategy: q.Get("strategy"), Alignment: q.Get("alignment")}
	for key, dst := range map[string]**float64{"lookback": &sreq.Lookback, "entry_z": &sreq.EntryZ, "exit_z": &sreq.ExitZ} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a number", key))
			return
		}
		*dst = &v
	}
	strat, err := s.resolveStrategy(sreq)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	p, err := s.loadPair(r.Context(), PairRequest{
		Primary: q.Get("primary"), Secondary: q.Get("secondary"), From: q.Get("from"), To: q.Get("to"),
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var costs *backtest.CostModel
	if s.cfg.Costs.Enabled {
		cm := s.cfg.Costs.CostModel
		costs = &cm
	}
	in, err := report.Collect(r.Context(), s.engine, strat, p, costs)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	cfg := report.DefaultReportConfig()
	cfg.Format = format
	var buf bytes.Buffer
	if err := report.Render(&buf, in, cfg); err != nil {
		s.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func contentType(f report.ReportFormat) string {
	switch f {
	case report.FormatHTML:
		return "text/html; charset=utf-8"
	case report.FormatJSON:
		return "application/json"
	case report.FormatYAML:
		return "application/yaml"
	}
	return "text/plain; charset=utf-8"
}
