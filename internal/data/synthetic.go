package data

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"quantarena/internal/domain"
	"quantarena/internal/util"
)

// minSyntheticPrice floors the synthetic walk.
const minSyntheticPrice = 5.0

// Synthetic generates a deterministic daily bar series per symbol over the
// weekdays in [start, end]. Every value derives from (symbol, date, seed)
// alone, so any sub-range of a longer run reproduces the identical bars.
func Synthetic(symbols []string, start, end time.Time, seed uint64) *Static {
	days := util.TradingDays(start, end)
	bars := make(map[string][]domain.Bar, len(symbols))

	for _, sym := range symbols {
		price := basePrice(sym)
		series := make([]domain.Bar, 0, len(days))

		for _, d := range days {
			dateStr := d.Format("2006-01-02")
			rng := drawStream(fmt.Sprintf("%s-%s-%d", sym, dateStr, seed))

			// Daily change in [-4.5%, +4.5%] on the previous close.
			changePct := rng.Float64()*9.0 - 4.5
			price = round2(price * (1 + changePct/100))
			if price < minSyntheticPrice {
				price = minSyntheticPrice
			}

			// Intraday range around the close, 2% baseline spread.
			ohlc := drawStream(fmt.Sprintf("%s-%s-%d-ohlc", sym, dateStr, seed))
			spread := price * 0.02
			open := price + (ohlc.Float64()-0.5)*spread
			high := math.Max(open, price) + (0.1+ohlc.Float64()*0.5)*spread
			low := math.Min(open, price) - (0.1+ohlc.Float64()*0.5)*spread

			vol := drawStream(fmt.Sprintf("%s-%s-%d-vol", sym, dateStr, seed))
			baseVol := 1_000_000 + int64(symbolHash(sym)%500_000)
			volScale := 1.0 + math.Min((high-low)/math.Max(price, 1.0), 0.5)
			volume := int64(float64(baseVol) * volScale * (0.7 + vol.Float64()*0.6))

			series = append(series, domain.Bar{
				Symbol: sym,
				Date:   d,
				Open:   round2(open),
				High:   round2(high),
				Low:    round2(low),
				Close:  price,
				Volume: volume,
			})
		}
		bars[sym] = series
	}
	return NewStatic(bars)
}

// basePrice anchors a symbol's walk in [50, 300).
func basePrice(sym string) float64 {
	return 50 + float64(symbolHash(sym)%250)
}

func symbolHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func drawStream(key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key))
	return rand.New(rand.NewSource(h.Sum64()))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
