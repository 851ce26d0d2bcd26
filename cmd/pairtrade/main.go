// pairtrade: pairs-trading backtests over daily equity prices.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/pairtrade/api"
	"github.com/seenimoa/pairtrade/internal/config"
	"github.com/seenimoa/pairtrade/internal/logging"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root PersistentPreRunE.
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pairtrade",
	Short: "Pairs-trading backtests for daily equity prices",
	Long: `pairtrade fetches daily closes for two equities, estimates rolling
hedge ratios and backtests Bollinger-band mean reversion on the spread.
It also runs cointegration tests (CADF, Johansen), sizes whole-share
budgets and serves everything over an HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		if p, _ := cmd.Flags().GetString("provider"); p != "" {
			cfg.Data.Provider = p
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		log = logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("provider", "", "market data provider override (alphavantage, yahoo, csv)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(cointCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pairtrade %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := api.NewServer(api.Deps{
			Config:   cfg,
			Provider: a.provider,
			Engine:   a.engine,
			Metrics:  a.metrics,
			Logger:   log,
			Version:  version,
		})
		if err != nil {
			return err
		}
		fmt.Printf("🌐 Starting pairtrade API server on %s (provider: %s)\n", cfg.Addr(), a.provider.Name())
		return srv.ListenAndServe(ctx, cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  pairtrade: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", time.Now().UTC().Format(time.RFC1123))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Data Provider: %s\n", cfg.Data.Provider)
		fmt.Printf("    Cache:         %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL)
		fmt.Printf("    Strategy:      %s (lookback %d, entry %.2f, exit %.2f, %s)\n",
			cfg.Strategy.Name, cfg.Strategy.Lookback, cfg.Strategy.EntryZ, cfg.Strategy.ExitZ, cfg.Strategy.Alignment)
		costs := "disabled"
		if cfg.Costs.Enabled {
			costs = fmt.Sprintf("%d dp, %.4f per share, min %.2f", cfg.Costs.Decimals, cfg.Costs.Rate, cfg.Costs.Minimum)
		}
		fmt.Printf("    Costs:         %s\n", costs)
		fmt.Printf("    API Server:    %s\n", cfg.Addr())
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			} else if !k.Required {
				status = "– not needed"
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if cfg.Cache.Backend == "redis" {
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()
			store, err := openStore(ctx, cfg)
			if err != nil {
				fmt.Printf("    %-25s ❌ %v\n", "Redis:", err)
			} else {
				fmt.Printf("    %-25s ✅ reachable\n", "Redis:")
				store.Close()
			}
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
