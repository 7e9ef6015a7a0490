// Package backtest runs one strategy through the day loop: pending orders,
// risk rules, the strategy's decision, execution, and equity recording, in
// that fixed order every day.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"quantarena/internal/analytics"
	"quantarena/internal/config"
	"quantarena/internal/data"
	"quantarena/internal/domain"
	"quantarena/internal/engine"
	"quantarena/internal/strategy"
)

// State is the driver's lifecycle phase.
type State string

const (
	StateInit     State = "init"
	StateRunning  State = "running"
	StateComplete State = "complete"
)

// Result is one strategy's finished run.
type Result struct {
	Name        string
	Ledger      []domain.Trade
	Curve       []domain.EquityPoint
	Metrics     analytics.Metrics
	Diagnostics []string
}

// Driver executes a single strategy over a date range. One Driver belongs to
// one run; Run can be called once.
type Driver struct {
	name     string
	strat    strategy.Strategy
	provider data.Provider
	cfg      *config.Config

	eng   *engine.Engine
	diags *domain.Diagnostics
	state State
	log   *slog.Logger
}

// New builds a driver around a fresh strategy instance and an immutable
// provider.
func New(name string, strat strategy.Strategy, provider data.Provider, cfg *config.Config) (*Driver, error) {
	universe := provider.Universe()
	if len(universe) == 0 {
		return nil, data.ErrNoData
	}

	diags := &domain.Diagnostics{}
	eng, err := engine.New(cfg.Trading, cfg.Risk, universe, diags)
	if err != nil {
		return nil, err
	}

	return &Driver{
		name:     name,
		strat:    strat,
		provider: provider,
		cfg:      cfg,
		eng:      eng,
		diags:    diags,
		state:    StateInit,
		log:      slog.Default().With("strategy", name),
	}, nil
}

// State returns the driver's current lifecycle phase.
func (d *Driver) State() State { return d.state }

// Run executes the day loop over [start, end] and returns the finished
// result. Days execute in a fixed sub-order: resolve pending orders, apply
// risk rules, invoke the strategy, execute its actions, record equity.
func (d *Driver) Run(ctx context.Context, start, end time.Time) (Result, error) {
	if d.state != StateInit {
		return Result{}, fmt.Errorf("driver for %s already ran", d.name)
	}
	if err := d.strat.Init(); err != nil {
		return Result{}, fmt.Errorf("initializing strategy %s: %w", d.name, err)
	}
	d.state = StateRunning

	universe := d.provider.Universe()
	days, barsByDay := d.indexBars(start, end)
	if len(days) == 0 {
		return Result{}, data.ErrNoData
	}

	history := make(map[string][]domain.Bar, len(universe))
	lastClose := make(map[string]float64, len(universe))
	var curve []domain.EquityPoint

	for _, day := range days {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		todays := barsByDay[day]

		// Prior days' conditional orders resolve before anything new today
		// can touch state.
		for _, sym := range universe {
			if bar, ok := todays[sym]; ok {
				d.eng.EvaluatePending(bar)
			}
		}
		for _, sym := range universe {
			if bar, ok := todays[sym]; ok {
				d.eng.ApplyRiskRules(bar)
			}
		}

		for _, sym := range universe {
			if bar, ok := todays[sym]; ok {
				history[sym] = append(history[sym], bar)
				lastClose[sym] = bar.Close
			}
		}

		snap := d.snapshotFor(day, universe, history, lastClose)
		if len(snap.Prices) == 0 {
			continue
		}
		actions := d.decide(day, snap)
		d.execute(day, actions, lastClose)

		curve = append(curve, domain.EquityPoint{Date: day, Value: d.equity(lastClose)})
	}

	d.eng.ExpirePending(days[len(days)-1])
	d.state = StateComplete

	ledger := d.eng.Ledger()
	return Result{
		Name:        d.name,
		Ledger:      ledger,
		Curve:       curve,
		Metrics:     analytics.Compute(curve, ledger),
		Diagnostics: d.diags.Entries(),
	}, nil
}

// indexBars collects the provider's bars in [start, end] keyed by day, plus
// the sorted union of trading days.
func (d *Driver) indexBars(start, end time.Time) ([]time.Time, map[time.Time]map[string]domain.Bar) {
	barsByDay := make(map[time.Time]map[string]domain.Bar)
	for _, sym := range d.provider.Universe() {
		for _, bar := range d.provider.Bars(sym) {
			if bar.Date.Before(start) || bar.Date.After(end) {
				continue
			}
			day := bar.Date
			if barsByDay[day] == nil {
				barsByDay[day] = make(map[string]domain.Bar)
			}
			barsByDay[day][sym] = bar
		}
	}

	days := make([]time.Time, 0, len(barsByDay))
	for day := range barsByDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, barsByDay
}

// snapshotFor builds the read-only view handed to the strategy. A symbol
// without a bar today still shows its last known close.
func (d *Driver) snapshotFor(day time.Time, universe []string, history map[string][]domain.Bar, lastClose map[string]float64) strategy.Snapshot {
	prices := make(map[string]float64, len(lastClose))
	hist := make(map[string][]domain.Bar, len(history))
	for sym, px := range lastClose {
		prices[sym] = px
	}
	for sym, bars := range history {
		hist[sym] = bars[:len(bars):len(bars)]
	}
	return strategy.Snapshot{
		Date:     day,
		Prices:   prices,
		History:  hist,
		Universe: universe,
		Cash:     d.eng.Cash(),
	}
}

// decision carries the outcome of one strategy invocation between
// goroutines.
type decision struct {
	actions  []domain.Action
	panicked any
}

// decide invokes the strategy with a panic guard and the configured
// wall-clock fuse. A panicking or overrunning strategy degrades to a hold
// for the day.
func (d *Driver) decide(day time.Time, snap strategy.Snapshot) []domain.Action {
	view := make(strategy.PortfolioView)
	for sym, qty := range d.eng.Holdings() {
		view[sym] = qty
	}

	ch := make(chan decision, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- decision{panicked: r}
			}
		}()
		ch <- decision{actions: d.strat.Next(snap, view)}
	}()

	timeout := time.Duration(d.cfg.Tournament.StrategyTimeout)
	if timeout <= 0 {
		dec := <-ch
		return d.settle(day, dec)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case dec := <-ch:
		return d.settle(day, dec)
	case <-timer.C:
		d.diags.Add(day, "strategy decision exceeded %s, holding", timeout)
		return nil
	}
}

func (d *Driver) settle(day time.Time, dec decision) []domain.Action {
	if dec.panicked != nil {
		d.diags.Add(day, "strategy panicked: %v, holding", dec.panicked)
		d.log.Warn("strategy panicked", "date", day.Format("2006-01-02"), "panic", fmt.Sprint(dec.panicked))
		return nil
	}
	return dec.actions
}

// execute turns the day's actions into orders. Market actions fill at the
// day's close; conditional actions rest as pending orders. Rejections are
// recorded and never stop the run.
func (d *Driver) execute(day time.Time, actions []domain.Action, lastClose map[string]float64) {
	for _, a := range actions {
		var side domain.OrderSide
		switch a.Type {
		case domain.ActionBuy:
			side = domain.OrderSideBuy
		case domain.ActionSell:
			side = domain.OrderSideSell
		case domain.ActionHold:
			continue
		default:
			d.diags.Add(day, "unknown action type %q for %s", a.Type, a.Symbol)
			continue
		}

		kind := a.Kind
		if kind == "" {
			kind = domain.OrderKindMarket
		}
		order := domain.Order{
			Symbol: a.Symbol,
			Side:   side,
			Kind:   kind,
			Price:  a.Price,
			Qty:    a.Qty,
		}
		if _, err := d.eng.Submit(order, lastClose[a.Symbol], day); err != nil {
			d.diags.Add(day, "action rejected: %v", err)
		}
	}
}

// equity marks every holding at its last known close; a position that never
// printed a bar is carried at cost.
func (d *Driver) equity(lastClose map[string]float64) float64 {
	total := d.eng.Cash()
	for _, p := range d.eng.Positions() {
		if px, ok := lastClose[p.Symbol]; ok {
			total += float64(p.Qty) * px
		} else {
			total += float64(p.Qty) * p.AvgCost
		}
	}
	return total
}
