package analytics

import (
	"math"
	"testing"
	"time"

	"quantarena/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func curveOf(values ...float64) []domain.EquityPoint {
	curve := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		curve[i] = domain.EquityPoint{Date: day(i), Value: v}
	}
	return curve
}

func buy(sym string, qty int64, price float64) domain.Trade {
	return domain.Trade{Symbol: sym, Side: domain.OrderSideBuy, Qty: qty, FillPrice: price}
}

func sell(sym string, qty int64, price float64) domain.Trade {
	return domain.Trade{Symbol: sym, Side: domain.OrderSideSell, Qty: qty, FillPrice: price}
}

func TestComputeEmptyAndShortCurves(t *testing.T) {
	m := Compute(nil, nil)
	if m != (Metrics{}) {
		t.Errorf("empty inputs produced non-zero metrics: %+v", m)
	}
	m = Compute(curveOf(100000), nil)
	if m.TotalReturn != 0 || m.Sharpe != 0 {
		t.Errorf("single-point curve produced return metrics: %+v", m)
	}
}

func TestTotalReturn(t *testing.T) {
	m := Compute(curveOf(100000, 101000, 110000), nil)
	if math.Abs(m.TotalReturn-0.10) > 1e-9 {
		t.Errorf("total return = %v, want 0.10", m.TotalReturn)
	}
}

func TestCAGRShortWindowNotExtrapolated(t *testing.T) {
	// Ten days, +10%: annualizing would explode this to over 3000%.
	m := Compute(curveOf(100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110), nil)
	if math.Abs(m.CAGR-m.TotalReturn) > 1e-9 {
		t.Errorf("short-window CAGR = %v, want plain return %v", m.CAGR, m.TotalReturn)
	}
}

func TestCAGRMultiYear(t *testing.T) {
	curve := []domain.EquityPoint{
		{Date: day(0), Value: 100000},
		{Date: day(0).AddDate(2, 0, 0), Value: 144000},
	}
	m := Compute(curve, nil)
	// 44% over two years is roughly 20% a year.
	if m.CAGR < 0.19 || m.CAGR > 0.21 {
		t.Errorf("two-year CAGR = %v, want about 0.20", m.CAGR)
	}
}

func TestSharpeZeroOnFlatCurve(t *testing.T) {
	m := Compute(curveOf(100000, 100000, 100000, 100000), nil)
	if m.Sharpe != 0 {
		t.Errorf("flat curve Sharpe = %v, want 0", m.Sharpe)
	}
}

func TestSharpeSign(t *testing.T) {
	up := Compute(curveOf(100, 101, 103, 104, 107), nil)
	if up.Sharpe <= 0 {
		t.Errorf("rising curve Sharpe = %v, want positive", up.Sharpe)
	}
	down := Compute(curveOf(100, 98, 97, 95, 91), nil)
	if down.Sharpe >= 0 {
		t.Errorf("falling curve Sharpe = %v, want negative", down.Sharpe)
	}
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 120, trough 90: drawdown 25%.
	m := Compute(curveOf(100, 120, 90, 110), nil)
	if math.Abs(m.MaxDrawdown-0.25) > 1e-9 {
		t.Errorf("max drawdown = %v, want 0.25", m.MaxDrawdown)
	}
	m = Compute(curveOf(100, 105, 110, 120), nil)
	if m.MaxDrawdown != 0 {
		t.Errorf("monotonic curve drawdown = %v, want 0", m.MaxDrawdown)
	}
}

func TestFIFOMatching(t *testing.T) {
	// Two lots at 100 and 120; sell 15 at 110 matches the 100-lot (win, +100)
	// then 5 of the 120-lot (loss, -50).
	ledger := []domain.Trade{
		buy("AAPL", 10, 100),
		buy("AAPL", 10, 120),
		sell("AAPL", 15, 110),
	}
	m := Compute(curveOf(100000, 100050), ledger)
	if math.Abs(m.WinRate-0.5) > 1e-9 {
		t.Errorf("win rate = %v, want 0.5", m.WinRate)
	}
	if math.Abs(m.ProfitFactor-2.0) > 1e-9 {
		t.Errorf("profit factor = %v, want 2.0", m.ProfitFactor)
	}
	if m.Trades != 3 {
		t.Errorf("trades = %d, want 3", m.Trades)
	}
}

func TestFIFOSeparatesSymbols(t *testing.T) {
	ledger := []domain.Trade{
		buy("AAPL", 10, 100),
		buy("MSFT", 10, 200),
		sell("MSFT", 10, 210),
		sell("AAPL", 10, 90),
	}
	m := Compute(curveOf(100000, 100000), ledger)
	if math.Abs(m.WinRate-0.5) > 1e-9 {
		t.Errorf("win rate = %v, want 0.5", m.WinRate)
	}
}

func TestProfitFactorNoLosses(t *testing.T) {
	ledger := []domain.Trade{buy("AAPL", 10, 100), sell("AAPL", 10, 110)}
	m := Compute(curveOf(100000, 100100), ledger)
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("profit factor = %v, want +Inf", m.ProfitFactor)
	}
	if m.WinRate != 1.0 {
		t.Errorf("win rate = %v, want 1.0", m.WinRate)
	}
}

func TestNoClosedTrades(t *testing.T) {
	// An open position with no sell has nothing to score.
	m := Compute(curveOf(100000, 101000), []domain.Trade{buy("AAPL", 10, 100)})
	if m.WinRate != 0 || m.ProfitFactor != 0 {
		t.Errorf("open-only ledger: win rate %v, profit factor %v, want zeros", m.WinRate, m.ProfitFactor)
	}
	if m.Trades != 1 {
		t.Errorf("trades = %d, want 1", m.Trades)
	}
}

func TestComputeDoesNotMutateInputs(t *testing.T) {
	curve := curveOf(100, 120, 90)
	ledger := []domain.Trade{buy("AAPL", 10, 100), sell("AAPL", 4, 110)}
	Compute(curve, ledger)
	if curve[1].Value != 120 || ledger[0].Qty != 10 {
		t.Error("Compute mutated its inputs")
	}
}
