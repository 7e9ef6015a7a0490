package data

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantarena/internal/config"
	"quantarena/internal/domain"
	"quantarena/internal/store"
	"quantarena/internal/util"
)

// Alpaca free-tier data limit.
const alpacaRequestsPerMinute = 200

// FromParquet loads the configured symbols from the Parquet store and
// returns a static provider over [start, end].
func FromParquet(ctx context.Context, cfg config.Data, start, end time.Time) (*Static, error) {
	s := store.NewParquetStore(cfg.DataDir)

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		listed, err := s.ListSymbols(ctx, cfg.Market)
		if err != nil {
			return nil, fmt.Errorf("listing symbols: %w", err)
		}
		symbols = listed
	}

	bars := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		bs, err := s.ReadBars(ctx, sym, cfg.Market, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", sym, err)
		}
		if len(bs) > 0 {
			bars[sym] = bs
		}
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return NewStatic(bars), nil
}

// FetchAlpaca pulls daily bars for the configured symbols from the Alpaca
// market-data API and returns a static provider. When a data directory is
// configured, fetched bars are also written to the Parquet store so later
// runs can use parquet mode offline.
func FetchAlpaca(ctx context.Context, cfg config.Data, start, end time.Time) (*Static, error) {
	if cfg.AlpacaAPIKey == "" || cfg.AlpacaAPISecret == "" {
		return nil, fmt.Errorf("alpaca mode requires api credentials")
	}

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = DefaultUniverse()
	}

	opts := marketdata.ClientOpts{
		APIKey:    cfg.AlpacaAPIKey,
		APISecret: cfg.AlpacaAPISecret,
	}
	if cfg.AlpacaDataURL != "" {
		opts.BaseURL = cfg.AlpacaDataURL
	}
	client := marketdata.NewClient(opts)

	limiter := util.NewRateLimiter(alpacaRequestsPerMinute)
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, 3, 2*time.Second, func() error {
		var err error
		multiBars, err = client.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "iex",
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	bars := make(map[string][]domain.Bar, len(multiBars))
	var flat []domain.Bar
	for symbol, alpacaBars := range multiBars {
		sym := strings.ToUpper(symbol)
		for _, ab := range alpacaBars {
			b := domain.Bar{
				Symbol: sym,
				Date:   util.Day(ab.Timestamp),
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: int64(ab.Volume),
			}
			bars[sym] = append(bars[sym], b)
			flat = append(flat, b)
		}
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	if cfg.DataDir != "" {
		s := store.NewParquetStore(cfg.DataDir)
		if err := s.WriteBars(ctx, flat, cfg.Market); err != nil {
			slog.Warn("persisting fetched bars failed", "error", err)
		}
	}
	return NewStatic(bars), nil
}
