package api

import (
	"net/http"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/config"
	"github.com/seenimoa/pairtrade/internal/pair"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config   config.Config         `json:"config"`
	Strategy config.StrategyConfig `json:"default_strategy"`
}

// handleGetConfig returns the running configuration with credentials
// masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, ConfigResponse{
		Config:   s.cfg.Redacted(),
		Strategy: s.defaultStrategy(),
	})
}

// handleGetConfigKeys reports which credentials are set and where from.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, config.CheckAPIKeys(s.cfg))
}

// StrategyUpdate is the body for PUT /api/v1/config/strategy. Absent
// fields keep their current value; an explicit 0 is applied.
type StrategyUpdate struct {
	Name      string   `json:"name,omitempty"`
	Lookback  *float64 `json:"lookback,omitempty"`
	EntryZ    *float64 `json:"entry_z,omitempty"`
	ExitZ     *float64 `json:"exit_z,omitempty"`
	Alignment string   `json:"alignment,omitempty"`
}

// handleUpdateStrategy replaces the default strategy used by requests that
// do not name one. The merged settings must pass StrategyConfig.Validate
// and build a strategy. The change is not persisted.
func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	var upd StrategyUpdate
	if !s.decode(w, r, &upd) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.strategy
	if upd.Name != "" {
		next.Name = upd.Name
	}
	if upd.Lookback != nil {
		lb, err := pair.LookbackFromFloat(*upd.Lookback)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		next.Lookback = lb
	}
	if upd.EntryZ != nil {
		next.EntryZ = *upd.EntryZ
	}
	if upd.ExitZ != nil {
		next.ExitZ = *upd.ExitZ
	}
	if upd.Alignment != "" {
		next.Alignment = upd.Alignment
	}
	if err := next.Validate(); err != nil {
		s.writeErr(w, err)
		return
	}
	if _, err := backtest.NewStrategy(next.Name, next.StrategyParams); err != nil {
		s.writeErr(w, err)
		return
	}
	s.strategy = next
	s.log.Info().Str("strategy", next.Name).Interface("params", next.StrategyParams).Msg("default strategy updated")
	s.writeData(w, next)
}
