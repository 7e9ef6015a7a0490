// Package tournament runs many strategies against one identical scenario and
// ranks the outcomes deterministically.
package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"quantarena/internal/backtest"
	"quantarena/internal/config"
	"quantarena/internal/data"
	"quantarena/internal/domain"
	"quantarena/internal/strategy"
	"quantarena/internal/stress"
)

// Coordinator schedules strategy runs over a shared, immutable scenario.
type Coordinator struct {
	cfg *config.Config
	reg *strategy.Registry
	log *slog.Logger
}

// New creates a Coordinator over the given registry.
func New(cfg *config.Config, reg *strategy.Registry) *Coordinator {
	return &Coordinator{cfg: cfg, reg: reg, log: slog.Default().With("component", "tournament")}
}

// Run executes the named strategies (all registered ones when names is empty)
// over [start, end] and returns results ranked by Sharpe descending, total
// return descending, then name ascending. When stress is enabled the
// scenario is realized once and shared verbatim by every run.
//
// Cancellation keeps every already-completed result and abandons the rest;
// the context error is returned alongside the partial ranking.
func (c *Coordinator) Run(ctx context.Context, provider data.Provider, names []string, start, end time.Time) ([]backtest.Result, error) {
	descriptors, err := c.resolve(names)
	if err != nil {
		return nil, err
	}

	provider, err = c.realizeScenario(provider)
	if err != nil {
		return nil, err
	}

	workers := c.cfg.Tournament.MaxWorkers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(descriptors) {
		workers = len(descriptors)
	}

	jobs := make(chan strategy.Descriptor)
	var (
		mu      sync.Mutex
		results []backtest.Result
		wg      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for desc := range jobs {
				res, err := c.runOne(ctx, desc, provider, start, end)
				if err != nil {
					if ctx.Err() == nil {
						c.log.Warn("strategy run failed", "strategy", desc.Name, "error", err)
					}
					continue
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, desc := range descriptors {
		select {
		case jobs <- desc:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	rank(results)
	return results, ctx.Err()
}

func (c *Coordinator) runOne(ctx context.Context, desc strategy.Descriptor, provider data.Provider, start, end time.Time) (backtest.Result, error) {
	driver, err := backtest.New(desc.Name, desc.New(), provider, c.cfg)
	if err != nil {
		return backtest.Result{}, err
	}
	return driver.Run(ctx, start, end)
}

// resolve maps names to descriptors, defaulting to every registered
// strategy.
func (c *Coordinator) resolve(names []string) ([]strategy.Descriptor, error) {
	if len(names) == 0 {
		all := c.reg.All()
		if len(all) == 0 {
			return nil, fmt.Errorf("no strategies registered")
		}
		return all, nil
	}

	descriptors := make([]strategy.Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := c.reg.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// realizeScenario applies the stress generator to the whole provider once,
// symbol by symbol in sorted order so the seeded stream is consumed
// identically on every run.
func (c *Coordinator) realizeScenario(provider data.Provider) (data.Provider, error) {
	if !c.cfg.Stress.Enabled {
		return provider, nil
	}

	gen, err := stress.NewGenerator(c.cfg.Stress)
	if err != nil {
		return nil, err
	}

	realized := make(map[string][]domain.Bar)
	for _, sym := range provider.Universe() {
		realized[sym] = gen.Realize(provider.Bars(sym))
	}
	c.log.Info("stress scenario realized", "symbols", len(realized), "seed", c.cfg.Stress.Seed)
	return data.NewStatic(realized), nil
}

// rank orders results by Sharpe descending, total return descending, then
// name ascending, independent of completion order.
func rank(results []backtest.Result) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Metrics.Sharpe != b.Metrics.Sharpe {
			return a.Metrics.Sharpe > b.Metrics.Sharpe
		}
		if a.Metrics.TotalReturn != b.Metrics.TotalReturn {
			return a.Metrics.TotalReturn > b.Metrics.TotalReturn
		}
		return a.Name < b.Name
	})
}
