// Command arena-tournament runs a strategy tournament over a date range and
// prints the ranked results.
//
// Exit codes: 0 on success, 1 when no strategies are discoverable, 2 on an
// unrecoverable data-load failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"quantarena/internal/backtest"
	"quantarena/internal/config"
	"quantarena/internal/data"
	"quantarena/internal/domain"
	"quantarena/internal/store"
	"quantarena/internal/strategy"
	"quantarena/internal/tournament"
	"quantarena/internal/util"
)

const (
	exitOK           = 0
	exitNoStrategies = 1
	exitDataFailure  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath    = flag.String("config", "", "path to YAML config (defaults apply when empty)")
		startStr   = flag.String("start", "", "start date YYYY-MM-DD")
		endStr     = flag.String("end", "", "end date YYYY-MM-DD (default today)")
		dataMode   = flag.String("data", "", "data source: synthetic, parquet, or alpaca (overrides config)")
		strategies = flag.String("strategies", "", "comma-separated strategy names (default all registered)")
		seed       = flag.Uint64("seed", 0, "stress/synthetic seed (overrides config when nonzero)")
		stressOn   = flag.Bool("stress", false, "enable the stress scenario generator")
		save       = flag.Bool("save", false, "persist results to SQLite and Parquet")
	)
	flag.Parse()

	// Local development credentials, if present.
	_ = godotenv.Load()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitDataFailure
	}
	applyOverrides(cfg, *dataMode, *seed, flagPassed("seed"), *stressOn)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitDataFailure
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	start, end, err := parseRange(*startStr, *endStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dates: %v\n", err)
		return exitDataFailure
	}

	names := splitNames(*strategies)
	reg := strategy.Default()
	if len(reg.Names()) == 0 {
		fmt.Fprintln(os.Stderr, "no strategies registered")
		return exitNoStrategies
	}
	for _, name := range names {
		if _, ok := reg.Get(name); !ok {
			fmt.Fprintf(os.Stderr, "unknown strategy %q (have: %s)\n", name, strings.Join(reg.Names(), ", "))
			return exitNoStrategies
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := loadProvider(ctx, cfg, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading data: %v\n", err)
		return exitDataFailure
	}

	slog.Info("starting tournament",
		"mode", cfg.Data.Mode,
		"symbols", len(provider.Universe()),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"stress", cfg.Stress.Enabled)

	results, err := tournament.New(cfg, reg).Run(ctx, provider, names, start, end)
	if err != nil && len(results) == 0 {
		fmt.Fprintf(os.Stderr, "tournament: %v\n", err)
		return exitDataFailure
	}
	if err != nil {
		slog.Warn("tournament interrupted, showing completed runs", "error", err)
	}

	printRanking(results)

	if *save {
		if err := persist(ctx, cfg, results, start, end); err != nil {
			fmt.Fprintf(os.Stderr, "saving results: %v\n", err)
			return exitDataFailure
		}
	}
	return exitOK
}

// applyOverrides layers command-line flags over the loaded configuration.
// The seed is applied whenever the flag was passed, so an explicit -seed 0
// overrides a nonzero config seed.
func applyOverrides(cfg *config.Config, dataMode string, seed uint64, seedSet, stressOn bool) {
	if dataMode != "" {
		cfg.Data.Mode = dataMode
	}
	if seedSet {
		cfg.Stress.Seed = seed
	}
	if stressOn {
		cfg.Stress.Enabled = true
	}
}

// flagPassed reports whether the named flag appeared on the command line.
func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := util.Day(time.Now().UTC())
	if endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr, err)
		}
		end = parsed
	}

	start := end.AddDate(-1, 0, 0)
	if startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
		}
		start = parsed
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func loadProvider(ctx context.Context, cfg *config.Config, start, end time.Time) (data.Provider, error) {
	symbols := cfg.Data.Symbols
	if len(symbols) == 0 {
		symbols = data.DefaultUniverse()
	}

	switch cfg.Data.Mode {
	case "synthetic":
		return data.Synthetic(symbols, start, end, cfg.Stress.Seed), nil
	case "parquet":
		return data.FromParquet(ctx, cfg.Data, start, end)
	case "alpaca":
		return data.FetchAlpaca(ctx, cfg.Data, start, end)
	default:
		return nil, fmt.Errorf("unknown data mode %q", cfg.Data.Mode)
	}
}

func printRanking(results []backtest.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSTRATEGY\tRETURN\tCAGR\tSHARPE\tMAX DD\tWIN RATE\tPROFIT FACTOR\tTRADES")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%.2f%%\t%.2f%%\t%.2f\t%.2f%%\t%.1f%%\t%s\t%d\n",
			i+1, r.Name,
			r.Metrics.TotalReturn*100,
			r.Metrics.CAGR*100,
			r.Metrics.Sharpe,
			r.Metrics.MaxDrawdown*100,
			r.Metrics.WinRate*100,
			formatProfitFactor(r.Metrics.ProfitFactor),
			r.Metrics.Trades)
	}
	w.Flush()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

// persist writes the run to SQLite and each equity curve to Parquet.
func persist(ctx context.Context, cfg *config.Config, results []backtest.Result, start, end time.Time) error {
	db, err := store.NewSQLiteStore(cfg.Data.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	run := store.RunRecord{
		CreatedAt: time.Now().UTC(),
		StartDate: start,
		EndDate:   end,
		DataMode:  cfg.Data.Mode,
		Seed:      cfg.Stress.Seed,
		Stress:    cfg.Stress.Enabled,
	}
	records := make([]store.ResultRecord, len(results))
	ledgers := make(map[string][]domain.Trade, len(results))
	for i, r := range results {
		records[i] = store.ResultRecord{
			Rank:         i + 1,
			Strategy:     r.Name,
			TotalReturn:  r.Metrics.TotalReturn,
			CAGR:         r.Metrics.CAGR,
			Sharpe:       r.Metrics.Sharpe,
			MaxDrawdown:  r.Metrics.MaxDrawdown,
			WinRate:      r.Metrics.WinRate,
			ProfitFactor: r.Metrics.ProfitFactor,
			Trades:       r.Metrics.Trades,
		}
		ledgers[r.Name] = r.Ledger
	}

	runID, err := db.SaveTournament(ctx, run, records, ledgers)
	if err != nil {
		return err
	}

	ps := store.NewParquetStore(cfg.Data.DataDir)
	label := fmt.Sprintf("run-%d", runID)
	for _, r := range results {
		if err := ps.WriteEquityCurve(label, r.Name, r.Curve); err != nil {
			return err
		}
	}
	slog.Info("results saved", "run_id", runID, "strategies", len(results))
	return nil
}
