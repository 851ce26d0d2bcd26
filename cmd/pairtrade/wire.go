package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/config"
	"github.com/seenimoa/pairtrade/internal/datasource"
	"github.com/seenimoa/pairtrade/internal/infra"
	"github.com/seenimoa/pairtrade/internal/metrics"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// app bundles the long-lived collaborators every command needs.
type app struct {
	provider datasource.Provider
	store    infra.Store
	engine   *backtest.Engine
	metrics  *metrics.Metrics
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	raw, err := datasource.Open(datasource.Options{
		Name:    cfg.Data.Provider,
		APIKey:  cfg.Data.APIKey,
		BaseURL: cfg.Data.BaseURL,
		Timeout: cfg.Data.Timeout,
		CSVDir:  cfg.Data.CSVDir,
	})
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	provider := datasource.NewCachedProvider(raw, store,
		datasource.WithTTL(cfg.Cache.TTL),
		datasource.WithRatePerMinute(cfg.Data.RatePerMin),
		datasource.WithProviderLogger(log),
		datasource.WithProviderRecorder(m),
	)
	engine := backtest.NewEngine(cfg.EngineConfig(),
		backtest.WithLogger(log),
		backtest.WithRecorder(m),
	)
	log.Debug().
		Str("provider", raw.Name()).
		Str("cache", cfg.Cache.Backend).
		Msg("application wired")
	return &app{provider: provider, store: store, engine: engine, metrics: m}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config) (infra.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return infra.NewRedisStore(ctx, infra.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.Prefix,
		})
	default:
		return infra.NewMemoryStore(cfg.Cache.TTL), nil
	}
}

// pairArgs holds the flags shared by every command that loads a pair.
type pairArgs struct {
	from, to string
}

func (pa pairArgs) bounds() (start, end *time.Time, err error) {
	if pa.from != "" {
		t, err := utils.ParseDate(pa.from)
		if err != nil {
			return nil, nil, err
		}
		start = &t
	}
	if pa.to != "" {
		t, err := utils.ParseDate(pa.to)
		if err != nil {
			return nil, nil, err
		}
		end = &t
	}
	return start, end, nil
}

// loadPair validates both tickers and fetches the aligned pair.
func (a *app) loadPair(ctx context.Context, primary, secondary string, pa pairArgs) (*pair.Pair, error) {
	primary, secondary = utils.NormalizeTicker(primary), utils.NormalizeTicker(secondary)
	for _, sym := range []string{primary, secondary} {
		if err := utils.ValidateSymbol(sym); err != nil {
			return nil, err
		}
	}
	start, end, err := pa.bounds()
	if err != nil {
		return nil, err
	}
	return datasource.FetchPairBetween(ctx, a.provider, primary, secondary, start, end)
}

// addStrategyFlags registers the flags read by strategyFromFlags.
func addStrategyFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", "", "strategy name (bollinger, static, hold)")
	cmd.Flags().Float64("lookback", 0, "rolling window length in days")
	cmd.Flags().Float64("entry", 0, "entry z-score")
	cmd.Flags().Float64("exit", 0, "exit z-score")
	cmd.Flags().String("alignment", "", "hedge ratio alignment (current, previous)")
}

// strategyFromFlags builds the configured default strategy with any flags
// the user set applied on top.
func strategyFromFlags(cmd *cobra.Command, cfg *config.Config) (backtest.Strategy, error) {
	flags := cmd.Flags()
	name := cfg.Strategy.Name
	params := cfg.Strategy.StrategyParams
	if flags.Changed("strategy") {
		name, _ = flags.GetString("strategy")
	}
	if flags.Changed("lookback") {
		v, _ := flags.GetFloat64("lookback")
		lb, err := pair.LookbackFromFloat(v)
		if err != nil {
			return nil, err
		}
		params.Lookback = lb
	}
	if flags.Changed("entry") {
		params.EntryZ, _ = flags.GetFloat64("entry")
	}
	if flags.Changed("exit") {
		params.ExitZ, _ = flags.GetFloat64("exit")
	}
	if flags.Changed("alignment") {
		params.Alignment, _ = flags.GetString("alignment")
	}
	return backtest.NewStrategy(name, params)
}

// addPairFlags registers --from and --to.
func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first date, YYYY-MM-DD (default: earliest common date)")
	cmd.Flags().String("to", "", "last date, YYYY-MM-DD (default: latest common date)")
}

func pairFromFlags(cmd *cobra.Command) pairArgs {
	var pa pairArgs
	pa.from, _ = cmd.Flags().GetString("from")
	pa.to, _ = cmd.Flags().GetString("to")
	return pa
}
