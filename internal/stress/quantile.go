package stress

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// shortHistoryPrior is returned when there is too little history to estimate
// a tail quantile.
const shortHistoryPrior = -0.15

// features is the technical snapshot the quantile stage computes over a
// trailing price window. It exists so a trained regression model can consume
// it; without one the empirical estimate below is used.
type features struct {
	MeanReturn    float64
	Volatility    float64
	Momentum      float64
	PricePosition float64
	MaxDrawdown   float64
	VolTrend      float64
}

// calcFeatures summarizes the trailing lookback window of the close path,
// oldest first.
func calcFeatures(history []float64, lookback int) features {
	if len(history) < 2 {
		return features{PricePosition: 0.5}
	}

	prices := history
	if len(prices) > lookback {
		prices = prices[len(prices)-lookback:]
	}
	rets := returnsOf(prices)

	f := features{
		MeanReturn: stat.Mean(rets, nil),
		Volatility: stat.PopStdDev(rets, nil),
	}

	if len(rets) >= 10 {
		f.Momentum = stat.Mean(rets[len(rets)-5:], nil) - stat.Mean(rets[len(rets)-10:len(rets)-5], nil)
		prevVol := stat.PopStdDev(rets[len(rets)-10:len(rets)-5], nil)
		if prevVol > 0 {
			f.VolTrend = stat.PopStdDev(rets[len(rets)-5:], nil) - prevVol
		}
	}

	lo, hi := prices[0], prices[0]
	for _, p := range prices {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	if hi > lo {
		f.PricePosition = (prices[len(prices)-1] - lo) / (hi - lo)
	} else {
		f.PricePosition = 0.5
	}

	cum, peak := 1.0, 1.0
	for _, r := range rets {
		cum *= 1 + r
		peak = math.Max(peak, cum)
		if dd := (cum - peak) / peak; dd < f.MaxDrawdown {
			f.MaxDrawdown = dd
		}
	}
	return f
}

// predictQuantile estimates the return at the given tail quantile from the
// empirical distribution of day returns over the trailing lookback window.
// Short histories get a fixed prior; the result is clamped to [-50%, -5%].
func predictQuantile(history []float64, level float64, lookback int) float64 {
	if len(history) < 10 {
		return shortHistoryPrior
	}

	prices := history
	if len(prices) > lookback {
		prices = prices[len(prices)-lookback:]
	}
	rets := returnsOf(prices)
	if len(rets) == 0 {
		return shortHistoryPrior
	}

	sorted := make([]float64, len(rets))
	copy(sorted, rets)
	sort.Float64s(sorted)
	q := stat.Quantile(level, stat.LinInterp, sorted, nil)

	return math.Max(math.Min(q, -0.05), -0.50)
}

func returnsOf(prices []float64) []float64 {
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, prices[i]/prices[i-1]-1)
	}
	return rets
}
