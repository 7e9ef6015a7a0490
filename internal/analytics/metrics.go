// Package analytics computes performance metrics from a finished run's
// equity curve and trade ledger. Everything here is a pure function of its
// inputs.
package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"quantarena/internal/domain"
)

// tradingDaysPerYear annualizes the Sharpe ratio.
const tradingDaysPerYear = 252.0

// Metrics summarizes one strategy's run. ProfitFactor is +Inf when the run
// closed winning trades but no losing ones.
type Metrics struct {
	TotalReturn  float64
	CAGR         float64
	Sharpe       float64
	MaxDrawdown  float64
	WinRate      float64
	ProfitFactor float64
	Trades       int
}

// Compute derives the full metric set from an equity curve and the ledger
// that produced it. Neither input is mutated. A curve with fewer than two
// points yields zero-valued return metrics.
func Compute(curve []domain.EquityPoint, ledger []domain.Trade) Metrics {
	m := Metrics{Trades: len(ledger)}
	m.WinRate, m.ProfitFactor = closedTradeStats(ledger)

	if len(curve) < 2 || curve[0].Value <= 0 {
		return m
	}

	first, last := curve[0], curve[len(curve)-1]
	m.TotalReturn = last.Value/first.Value - 1
	m.CAGR = cagr(first, last)
	m.Sharpe = sharpe(dailyReturns(curve))
	m.MaxDrawdown = maxDrawdown(curve)
	return m
}

// cagr annualizes growth over the actual elapsed calendar time. Windows
// shorter than a year are not extrapolated; they report the plain return.
func cagr(first, last domain.EquityPoint) float64 {
	if last.Value <= 0 {
		return -1
	}
	years := last.Date.Sub(first.Date).Hours() / 24 / 365.25
	if years < 1 {
		years = 1
	}
	return math.Pow(last.Value/first.Value, 1/years) - 1
}

func dailyReturns(curve []domain.EquityPoint) []float64 {
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, curve[i].Value/prev-1)
	}
	return rets
}

func sharpe(rets []float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	mean := stat.Mean(rets, nil)
	std := stat.StdDev(rets, nil)
	if std < 1e-9 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func maxDrawdown(curve []domain.EquityPoint) float64 {
	peak := curve[0].Value
	worst := 0.0
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// lot is an open FIFO buy lot awaiting a matching sell.
type lot struct {
	qty   int64
	price float64
}

// closedTradeStats matches sells against buy lots first-in-first-out and
// derives win rate and profit factor from the closed round trips. Each
// matched chunk counts as one closed trade.
func closedTradeStats(ledger []domain.Trade) (winRate, profitFactor float64) {
	open := make(map[string][]lot)
	var wins, closed int
	var grossGain, grossLoss float64

	for _, t := range ledger {
		switch t.Side {
		case domain.OrderSideBuy:
			open[t.Symbol] = append(open[t.Symbol], lot{qty: t.Qty, price: t.FillPrice})
		case domain.OrderSideSell:
			remaining := t.Qty
			lots := open[t.Symbol]
			for remaining > 0 && len(lots) > 0 {
				matched := lots[0].qty
				if matched > remaining {
					matched = remaining
				}
				pnl := (t.FillPrice - lots[0].price) * float64(matched)
				closed++
				if pnl > 0 {
					wins++
					grossGain += pnl
				} else {
					grossLoss += -pnl
				}
				lots[0].qty -= matched
				remaining -= matched
				if lots[0].qty == 0 {
					lots = lots[1:]
				}
			}
			open[t.Symbol] = lots
		}
	}

	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}
	switch {
	case grossLoss > 0:
		profitFactor = grossGain / grossLoss
	case grossGain > 0:
		profitFactor = math.Inf(1)
	}
	return winRate, profitFactor
}
