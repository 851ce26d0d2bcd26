package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/internal/report"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// --- Backtest Command ---

var backtestCmd = &cobra.Command{
	Use:   "backtest [primary] [secondary]",
	Short: "Backtest a pair with the configured strategy",
	Long: `Backtest a pair of equities. The primary leg is regressed on the
secondary over a rolling window and the resulting spread is traded on
z-score bands.

Examples:
  pairtrade backtest KO PEP
  pairtrade backtest KO PEP --lookback 30 --entry 1.5 --exit 0.5
  pairtrade backtest KO PEP --from 2020-01-01 --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		strat, err := strategyFromFlags(cmd, cfg)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.loadPair(ctx, args[0], args[1], pairFromFlags(cmd))
		if err != nil {
			return err
		}
		result, err := a.engine.Run(ctx, strat, p)
		if err != nil {
			return err
		}
		var costs *backtest.CostResult
		if cfg.Costs.Enabled {
			cr, err := backtest.StrategyCosts(strat, p, cfg.Costs.CostModel)
			if err != nil {
				return err
			}
			costs = &cr
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(struct {
				Result *models.PairBacktestResult `json:"result"`
				Costs  *backtest.CostResult       `json:"costs,omitempty"`
			}{result, costs})
		}
		printResult(result)
		if costs != nil {
			fmt.Println()
			fmt.Printf("  Commission-constrained (%d orders):\n", len(costs.Orders))
			fmt.Printf("    Budget:      %s → %s\n", utils.FormatUSD(costs.InitialBudget), utils.FormatUSD(costs.FinalBudget))
			fmt.Printf("    Commission:  %s\n", utils.FormatUSD(costs.Commission))
			fmt.Printf("    Net return:  %s\n", utils.FormatPct(costs.Return))
		}
		return nil
	},
}

func init() {
	addPairFlags(backtestCmd)
	addStrategyFlags(backtestCmd)
	backtestCmd.Flags().Bool("json", false, "print the result as JSON")
}

func printResult(r *models.PairBacktestResult) {
	fmt.Printf("📊 %s / %s: %s\n", r.Primary, r.Secondary, r.StrategyName)
	fmt.Printf("   %s → %s, %d trading days, lookback %d, entry %.2f, exit %.2f\n",
		utils.FormatDate(r.From), utils.FormatDate(r.To), r.TradingDays,
		r.Params.Lookback, r.Params.EntryZ, r.Params.ExitZ)
	fmt.Println()
	fmt.Printf("    Total return:  %s\n", utils.FormatPct(r.TotalReturn))
	fmt.Printf("    CAGR:          %s\n", optionalPct(r.CAGR))
	fmt.Printf("    APR:           %s\n", optionalPct(r.APR))
	fmt.Printf("    Sharpe:        %s\n", optionalRatio(r.SharpeRatio))
	fmt.Printf("    Sortino:       %s\n", optionalRatio(r.SortinoRatio))
	fmt.Printf("    Max drawdown:  %s over %d days\n", utils.FormatPct(r.MaxDrawdown), r.MaxDrawdownDays)
	fmt.Printf("    Transitions:   %d (%d days in market)\n", r.Transitions, r.DaysInMarket)
}

func optionalPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return utils.FormatPct(*v)
}

func optionalRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return utils.FormatRatio(*v)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Sweep Command ---

var sweepCmd = &cobra.Command{
	Use:   "sweep [primary] [secondary]",
	Short: "Backtest every combination of lookback and thresholds",
	Long: `Run the Bollinger pair strategy over a parameter grid in parallel and
rank the runs by Sharpe ratio. Combinations whose exit is not below the
entry are skipped.

Example:
  pairtrade sweep KO PEP --lookbacks 10,20,40 --entries 1,1.5,2 --exits 0,0.5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lookbacks, _ := cmd.Flags().GetIntSlice("lookbacks")
		entries, _ := cmd.Flags().GetFloat64Slice("entries")
		exits, _ := cmd.Flags().GetFloat64Slice("exits")
		alignment, _ := cmd.Flags().GetString("alignment")
		top, _ := cmd.Flags().GetInt("top")
		if alignment == "" {
			alignment = cfg.Strategy.Alignment
		}
		grid := backtest.ParamGrid(lookbacks, entries, exits, alignment)
		if len(grid) == 0 {
			return fmt.Errorf("%w: parameter grid is empty", models.ErrInvalidArgument)
		}

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.loadPair(ctx, args[0], args[1], pairFromFlags(cmd))
		if err != nil {
			return err
		}

		start := time.Now()
		results, err := a.engine.Sweep(ctx, p, grid)
		if err != nil {
			return err
		}
		sort.SliceStable(results, func(i, j int) bool {
			return sharpeOf(results[i]) > sharpeOf(results[j])
		})
		if top > 0 && len(results) > top {
			results = results[:top]
		}

		fmt.Printf("🔁 %s: %d runs in %s\n\n", p.Name(), len(grid), report.FormatDuration(time.Since(start)))
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "lookback\tentry\texit\ttotal\tsharpe\tmax dd\ttrades\t")
		for _, r := range results {
			fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%s\t%s\t%s\t%d\t\n",
				r.Params.Lookback, r.Params.EntryZ, r.Params.ExitZ,
				utils.FormatPct(r.TotalReturn), optionalRatio(r.SharpeRatio),
				utils.FormatPct(r.MaxDrawdown), r.Transitions)
		}
		return tw.Flush()
	},
}

func init() {
	addPairFlags(sweepCmd)
	sweepCmd.Flags().IntSlice("lookbacks", []int{10, 20, 40, 60}, "lookback windows")
	sweepCmd.Flags().Float64Slice("entries", []float64{1, 1.5, 2}, "entry z-scores")
	sweepCmd.Flags().Float64Slice("exits", []float64{0, 0.5}, "exit z-scores")
	sweepCmd.Flags().String("alignment", "", "hedge ratio alignment (current, previous)")
	sweepCmd.Flags().Int("top", 10, "show only the best N runs (0 for all)")
}

func sharpeOf(r *models.PairBacktestResult) float64 {
	if r.SharpeRatio == nil {
		return -1e308
	}
	return *r.SharpeRatio
}

// --- Cointegration Command ---

var cointCmd = &cobra.Command{
	Use:     "coint [primary] [secondary]",
	Aliases: []string{"cointegration"},
	Short:   "Run the CADF and Johansen cointegration tests",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.loadPair(ctx, args[0], args[1], pairFromFlags(cmd))
		if err != nil {
			return err
		}
		cadf, err := p.CADF()
		if err != nil {
			return err
		}
		joh, err := p.Johansen()
		if err != nil {
			return err
		}

		fmt.Printf("🔗 %s: %d observations\n\n", p.Name(), p.Len())
		fmt.Println("  Cointegrated ADF:")
		fmt.Printf("    Hedge ratio:   %.4f (intercept %.4f)\n", cadf.HedgeRatio, cadf.Intercept)
		fmt.Printf("    Statistic:     %.4f (lag %d)\n", cadf.Statistic, cadf.UsedLag)
		for _, level := range []string{"1%", "5%", "10%"} {
			mark := "✗"
			if cadf.Cointegrated(level) {
				mark = "✓"
			}
			fmt.Printf("    %-4s critical:  %.4f %s\n", level, cadf.Critical[level], mark)
		}
		fmt.Println()
		fmt.Println("  Johansen trace:")
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "    r ≤\tstatistic\t90%\t95%\t99%\t")
		for i := range joh.TraceStat {
			c := joh.TraceCrit[i]
			fmt.Fprintf(tw, "    %d\t%.4f\t%.4f\t%.4f\t%.4f\t\n", i, joh.TraceStat[i], c[0], c[1], c[2])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		v := joh.Vector()
		fmt.Printf("\n    Rank (95%%):    %d\n", joh.Rank(pair.Level95))
		fmt.Printf("    Vector:        [%.4f, %.4f]\n", v[0], v[1])
		return nil
	},
}

func init() {
	addPairFlags(cointCmd)
}

// --- Budget Command ---

var budgetCmd = &cobra.Command{
	Use:   "budget [primary] [secondary]",
	Short: "Size the cheapest whole-share position for a hedge ratio",
	Long: `Compute the budget needed to buy whole shares of both legs in the given
ratio, truncated to 4 down to 1 decimal places. Without --ratio the
Johansen cointegration vector is used.

Example:
  pairtrade budget KO PEP --ratio 1,-0.85`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.loadPair(ctx, args[0], args[1], pairFromFlags(cmd))
		if err != nil {
			return err
		}

		ratio, _ := cmd.Flags().GetFloat64Slice("ratio")
		if len(ratio) == 0 {
			v, err := p.CointegrationVector()
			if err != nil {
				return err
			}
			ratio = v[:]
		}
		levels, err := p.BudgetTable(ratio)
		if err != nil {
			return err
		}
		primary, secondary := p.Symbols()
		fmt.Printf("💰 %s: ratio [%s] at %s\n\n", p.Name(), formatRatio(ratio), utils.FormatDate(p.End()))
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "decimals\t%s\t%s\tbudget\t\n", primary, secondary)
		for _, l := range levels {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t\n", l.Decimals, l.Shares[0], l.Shares[1], utils.FormatUSD(l.Budget))
		}
		return tw.Flush()
	},
}

func init() {
	addPairFlags(budgetCmd)
	budgetCmd.Flags().Float64Slice("ratio", nil, "hedge ratio as primary,secondary")
}

func formatRatio(r []float64) string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return strings.Join(parts, ", ")
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report [primary] [secondary]",
	Short: "Generate a backtest report",
	Long: `Generate a full report for one pair: performance metrics, price,
z-score and equity charts, cointegration tests, commission-constrained
orders and the budget table.

Examples:
  pairtrade report KO PEP --format html --out ko-pep.html
  pairtrade report KO PEP --format yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		rf, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		strat, err := strategyFromFlags(cmd, cfg)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.loadPair(ctx, args[0], args[1], pairFromFlags(cmd))
		if err != nil {
			return err
		}

		var costs *backtest.CostModel
		if cfg.Costs.Enabled {
			costs = &cfg.Costs.CostModel
		}
		in, err := report.Collect(ctx, a.engine, strat, p, costs)
		if err != nil {
			return err
		}

		rc := report.DefaultReportConfig()
		rc.Format = rf
		rc.GeneratedAt = time.Now()
		if out == "" {
			return report.Render(os.Stdout, in, rc)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := report.Render(f, in, rc); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("📄 Report written to %s\n", out)
		return nil
	},
}

func init() {
	addPairFlags(reportCmd)
	addStrategyFlags(reportCmd)
	reportCmd.Flags().String("format", "text", "output format (text, html, json, yaml)")
	reportCmd.Flags().StringP("out", "o", "", "write to file instead of stdout")
}
