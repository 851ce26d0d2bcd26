package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/config"
	"github.com/seenimoa/pairtrade/internal/datasource"
	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/internal/metrics"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// pairProvider serves a mean-reverting KO/PEP pair: KO tracks twice PEP
// plus an AR(1) deviation. ZZZ is unknown and RATE is throttled.
type pairProvider struct {
	once   sync.Once
	series map[string]*equity.Series
}

func (f *pairProvider) Name() string { return "fake" }

func (f *pairProvider) build() {
	days := utils.WeekdaysBetween(utils.Date(2023, 1, 2), utils.Date(2023, 12, 29))
	rng := rand.New(rand.NewSource(42))
	ko := make([]models.OHLCV, len(days))
	pep := make([]models.OHLCV, len(days))
	level, dev := 100.0, 0.0
	for i, d := range days {
		level += rng.NormFloat64() * 0.8
		dev = 0.7*dev + rng.NormFloat64()*1.5
		p1 := 2*level + 10 + dev
		ko[i] = models.OHLCV{Timestamp: d, Close: p1, AdjClose: p1}
		pep[i] = models.OHLCV{Timestamp: d, Close: level, AdjClose: level}
	}
	f.series = map[string]*equity.Series{}
	for sym, bars := range map[string][]models.OHLCV{"KO": ko, "PEP": pep} {
		s, err := equity.New(sym, bars)
		if err != nil {
			panic(err)
		}
		f.series[sym] = s
	}
}

func (f *pairProvider) FetchDaily(_ context.Context, symbol string) (*equity.Series, error) {
	f.once.Do(f.build)
	switch symbol {
	case "RATE":
		return nil, datasource.ErrRateLimited
	}
	s, ok := f.series[symbol]
	if !ok {
		return nil, datasource.ErrTickerNotFound
	}
	return s, nil
}

type testEnv struct {
	srv      *Server
	provider *pairProvider
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Data.APIKey = "SECRETKEY999"

	m := metrics.New()
	prov := &pairProvider{}
	srv, err := NewServer(Deps{
		Config:   cfg,
		Provider: prov,
		Engine:   backtest.NewEngine(cfg.EngineConfig(), backtest.WithRecorder(m)),
		Metrics:  m,
		Logger:   zerolog.Nop(),
		Version:  "test",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Hub().Run(ctx)
	return &testEnv{srv: srv, provider: prov, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

// decodeData decodes the envelope's data field into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

// ════════════════════════════════════════════════════════════════════
// Construction and basics
// ════════════════════════════════════════════════════════════════════

func TestNewServerValidatesDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	cfg, err := config.Default()
	require.NoError(t, err)
	_, err = NewServer(Deps{Config: cfg, Provider: &pairProvider{}})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := env.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		var data map[string]interface{}
		resp := decodeData(t, rec, &data)
		assert.True(t, resp.Success)
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "test", data["version"])
		assert.Equal(t, "fake", data["provider"])
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/v1/")

	rec = env.do(t, http.MethodGet, "/missing.js", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStrategies(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/strategies", "")
	var names []string
	decodeData(t, rec, &names)
	assert.Equal(t, []string{"bollinger", "hold", "static"}, names)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidArgument, http.StatusBadRequest},
		{models.ErrTypeMismatch, http.StatusBadRequest},
		{models.ErrInvalidValue, http.StatusBadRequest},
		{datasource.ErrTickerNotFound, http.StatusNotFound},
		{datasource.ErrRateLimited, http.StatusTooManyRequests},
		{&datasource.ErrHTTP{StatusCode: 500}, http.StatusBadGateway},
		{models.ErrUndefinedResult, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Backtest
// ════════════════════════════════════════════════════════════════════

func TestHandleBacktest(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/backtest",
		`{"primary":"ko","secondary":"$pep","lookback":20,"entry_z":1,"exit_z":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data BacktestResponse
	resp := decodeData(t, rec, &data)
	assert.True(t, resp.Success)
	require.NotNil(t, data.Result)
	assert.Equal(t, "KO", data.Result.Primary)
	assert.Equal(t, "PEP", data.Result.Secondary)
	assert.Equal(t, 20, data.Result.Params.Lookback)
	assert.Nil(t, data.Result.Daily, "series are stripped unless requested")
	assert.Greater(t, data.Result.Transitions, 0)

	require.NotNil(t, data.Costs, "costs are enabled by default")
	require.NotNil(t, data.Result.NetReturn)
	assert.InDelta(t, data.Costs.Return, *data.Result.NetReturn, 1e-12)
}

func TestHandleBacktestSeriesAndRange(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/backtest",
		`{"primary":"KO","secondary":"PEP","from":"2023-03-01","to":"2023-08-31","series":true,"costs":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data BacktestResponse
	decodeData(t, rec, &data)
	assert.Nil(t, data.Costs)
	assert.Equal(t, utils.Date(2023, 3, 1), data.Result.From)
	assert.Equal(t, utils.Date(2023, 8, 31), data.Result.To)
	assert.Len(t, data.Result.Daily, data.Result.TradingDays)
	assert.Len(t, data.Result.Units, data.Result.TradingDays)
}

func TestHandleBacktestErrors(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{not json`, http.StatusBadRequest},
		{"missing primary", `{"secondary":"PEP"}`, http.StatusBadRequest},
		{"fractional lookback", `{"primary":"KO","secondary":"PEP","lookback":2.5}`, http.StatusBadRequest},
		{"unknown strategy", `{"primary":"KO","secondary":"PEP","strategy":"momentum"}`, http.StatusBadRequest},
		{"bad alignment", `{"primary":"KO","secondary":"PEP","alignment":"sideways"}`, http.StatusBadRequest},
		{"bad date", `{"primary":"KO","secondary":"PEP","from":"01/02/2023"}`, http.StatusBadRequest},
		{"end before start", `{"primary":"KO","secondary":"PEP","from":"2023-06-01","to":"2023-05-01"}`, http.StatusBadRequest},
		{"lookback too long", `{"primary":"KO","secondary":"PEP","from":"2023-06-01","to":"2023-06-14"}`, http.StatusBadRequest},
		{"unknown ticker", `{"primary":"ZZZ","secondary":"PEP"}`, http.StatusNotFound},
		{"rate limited", `{"primary":"RATE","secondary":"PEP"}`, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/backtest", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			resp := decodeData(t, rec, nil)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Sweep, hedge, cointegration, budget
// ════════════════════════════════════════════════════════════════════

func TestHandleSweep(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/sweep",
		`{"primary":"KO","secondary":"PEP","lookbacks":[10,20],"entry_z":[1,1.5],"exit_z":[0,0.5]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data SweepResponse
	decodeData(t, rec, &data)
	assert.Equal(t, 8, data.Runs)
	require.Len(t, data.Results, 8)
	assert.Equal(t, 10, data.Results[0].Params.Lookback)
	assert.Equal(t, 20, data.Results[7].Params.Lookback)
	require.NotNil(t, data.Best)
	for _, r := range data.Results {
		if r.SharpeRatio != nil {
			assert.LessOrEqual(t, *r.SharpeRatio, *data.Best.SharpeRatio)
		}
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sweep",
		`{"primary":"KO","secondary":"PEP","lookbacks":[10],"entry_z":[1],"exit_z":[2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sweep", `{"primary":"KO","secondary":"PEP"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHedge(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/hedge", `{"primary":"KO","secondary":"PEP","lookback":20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data HedgeResponse
	decodeData(t, rec, &data)
	assert.Equal(t, "current", data.Alignment)
	require.Len(t, data.Ratios, len(data.Dates))
	for i := 0; i < 20; i++ {
		assert.Nil(t, data.Ratios[i], "index %d precedes the first full window", i)
	}
	require.NotNil(t, data.Ratios[20])
	require.NotNil(t, data.Latest)
	assert.Equal(t, 1.0, data.Latest[0])
	assert.Equal(t, -*data.Ratios[len(data.Ratios)-1], data.Latest[1])

	rec = env.do(t, http.MethodPost, "/api/v1/hedge", `{"primary":"KO","secondary":"PEP","lookback":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCointegration(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/cointegration", `{"primary":"KO","secondary":"PEP"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data CointegrationResponse
	decodeData(t, rec, &data)
	require.NotNil(t, data.CADF)
	require.NotNil(t, data.Johansen)
	assert.True(t, data.CADFCointegrated, "an AR(1) spread should reject the unit root, stat %v", data.CADF.Statistic)
	assert.GreaterOrEqual(t, data.JohansenRank, 1)
	require.NotNil(t, data.Vector)

	rec = env.do(t, http.MethodPost, "/api/v1/cointegration",
		`{"primary":"KO","secondary":"PEP","from":"2023-06-01","to":"2023-06-14"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "ten observations are too few")
}

func TestHandleBudget(t *testing.T) {
	env := newTestEnv(t)
	p, err := datasource.FetchPair(context.Background(), env.provider, "KO", "PEP")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/budget", `{"primary":"KO","secondary":"PEP","ratio":[1,-2],"decimals":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data BudgetResponse
	decodeData(t, rec, &data)
	want, err := p.Budget([]float64{1, -2}, 2)
	require.NoError(t, err)
	require.NotNil(t, data.Budget)
	assert.Equal(t, want, *data.Budget)

	rec = env.do(t, http.MethodPost, "/api/v1/budget", `{"primary":"KO","secondary":"PEP"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = BudgetResponse{}
	decodeData(t, rec, &data)
	assert.Len(t, data.Levels, 4)
	assert.Len(t, data.Ratio, 2)

	rec = env.do(t, http.MethodPost, "/api/v1/budget", `{"primary":"KO","secondary":"PEP","ratio":[1,-2],"decimals":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/budget", `{"primary":"KO","secondary":"PEP","ratio":[1]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ════════════════════════════════════════════════════════════════════
// Report
// ════════════════════════════════════════════════════════════════════

func TestHandleReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/report?primary=KO&secondary=PEP&format=html", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")

	rec = env.do(t, http.MethodGet, "/api/v1/report?primary=KO&secondary=PEP&format=yaml&lookback=30", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "primary: KO")
	assert.Contains(t, rec.Body.String(), "lookback: 30")

	rec = env.do(t, http.MethodGet, "/api/v1/report?primary=KO&secondary=PEP", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PERFORMANCE")

	rec = env.do(t, http.MethodGet, "/api/v1/report?primary=KO&secondary=PEP&format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/report?primary=KO&secondary=PEP&lookback=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ════════════════════════════════════════════════════════════════════
// Configuration
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "SECRETKEY999")
	assert.Contains(t, body, "SEC...999")

	rec = env.do(t, http.MethodGet, "/api/v1/config/keys", "")
	var keys []config.KeyStatus
	decodeData(t, rec, &keys)
	require.Len(t, keys, 2)
	assert.True(t, keys[0].IsSet)
	assert.True(t, keys[0].Required)
}

func TestHandleUpdateStrategy(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/config/strategy", `{"lookback":30,"entry_z":1.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/backtest", `{"primary":"KO","secondary":"PEP"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var data BacktestResponse
	decodeData(t, rec, &data)
	assert.Equal(t, 30, data.Result.Params.Lookback)
	assert.Equal(t, 1.5, data.Result.Params.EntryZ)

	rec = env.do(t, http.MethodPut, "/api/v1/config/strategy", `{"name":"momentum"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPut, "/api/v1/config/strategy", `{"exit_z":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "exit must stay below entry")
	rec = env.do(t, http.MethodPut, "/api/v1/config/strategy", `{"entry_z":1,"exit_z":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPut, "/api/v1/config/strategy", `{"lookback":20.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "fractional lookback")
	assert.Equal(t, 30, env.srv.defaultStrategy().Lookback, "rejected updates leave the default unchanged")
	assert.Equal(t, 1.5, env.srv.defaultStrategy().EntryZ)
}

func TestHandleUpdateStrategyExplicitZero(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/config/strategy", `{"exit_z":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0.5, env.srv.defaultStrategy().ExitZ)

	rec = env.do(t, http.MethodPut, "/api/v1/config/strategy", `{"exit_z":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0.0, env.srv.defaultStrategy().ExitZ)
	assert.Equal(t, 1.0, env.srv.defaultStrategy().EntryZ, "absent fields are kept")
}

// ════════════════════════════════════════════════════════════════════
// Metrics and WebSocket
// ════════════════════════════════════════════════════════════════════

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/backtest", `{"primary":"KO","secondary":"PEP"}`)
	env.do(t, http.MethodPost, "/api/v1/backtest", `{"primary":"KO","secondary":"PEP"}`)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pairtrade_http_requests_total{code="200",method="POST",route="/api/v1/backtest"} 2`)
	assert.Contains(t, body, `pairtrade_backtest_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `pairtrade_backtests_total{status="ok",strategy="Bollinger Pair"} 1`)
}

func TestWebSocketBacktestNotification(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.srv.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgPong, msg.Type)

	resp, err := http.Post(ts.URL+"/api/v1/backtest", "application/json",
		bytes.NewBufferString(`{"primary":"KO","secondary":"PEP"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var note struct {
		Type string                    `json:"type"`
		Data models.PairBacktestResult `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&note))
	assert.Equal(t, MsgBacktestComplete, note.Type)
	assert.Equal(t, "KO", note.Data.Primary)
	assert.NotEmpty(t, note.Data.ID)
}

func TestWSHubDropsClientsOnShutdown(t *testing.T) {
	hub := NewWSHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := &WSClient{hub: hub, send: make(chan WSMessage, 1)}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(WSMessage{Type: "a"})
	hub.Broadcast(WSMessage{Type: "b"})
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond,
		"a client whose buffer is full is dropped")

	cancel()
	<-done
	hub.Register(&WSClient{hub: hub, send: make(chan WSMessage)}) // must not block after shutdown
	hub.Unregister(client)
}
