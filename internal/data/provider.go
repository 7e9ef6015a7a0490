// Package data supplies the immutable daily price series a tournament runs
// against: deterministic synthetic walks, Parquet files on disk, or bars
// fetched from the Alpaca market-data API.
package data

import (
	"errors"
	"sort"

	"quantarena/internal/domain"
)

// ErrNoData reports that a source produced no bars for the requested range.
var ErrNoData = errors.New("no bar data for requested range")

// Provider serves an already-loaded, immutable range of daily bars. All
// methods are safe for concurrent readers; nothing mutates a Provider after
// construction.
type Provider interface {
	// Universe returns the covered symbols, sorted.
	Universe() []string

	// Bars returns the symbol's bars in date order. The returned slice is
	// shared and must be treated as read-only.
	Bars(symbol string) []domain.Bar
}

// Static is a Provider over an in-memory bar set.
type Static struct {
	symbols []string
	bars    map[string][]domain.Bar
}

// NewStatic builds a Static provider, sorting each symbol's bars by date.
// Symbols without bars are dropped.
func NewStatic(bars map[string][]domain.Bar) *Static {
	s := &Static{bars: make(map[string][]domain.Bar, len(bars))}
	for sym, bs := range bars {
		if len(bs) == 0 {
			continue
		}
		sorted := make([]domain.Bar, len(bs))
		copy(sorted, bs)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		s.bars[sym] = sorted
		s.symbols = append(s.symbols, sym)
	}
	sort.Strings(s.symbols)
	return s
}

// Universe returns the covered symbols, sorted.
func (s *Static) Universe() []string { return s.symbols }

// Bars returns the symbol's bars in date order, or nil if uncovered.
func (s *Static) Bars(symbol string) []domain.Bar { return s.bars[symbol] }

// DefaultUniverse is the built-in 15-stock universe used when no symbols are
// configured.
func DefaultUniverse() []string {
	return []string{
		"AAPL", "MSFT", "GOOGL", "AMZN", "META",
		"TSLA", "NVDA", "JPM", "JNJ", "V",
		"WMT", "PG", "MA", "HD", "BAC",
	}
}
