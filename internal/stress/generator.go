// Package stress perturbs day returns with up to three escalating scenario
// stages: jump diffusion, extreme-value draws, and quantile-predicted tails.
// One seeded stream drives all randomness, so the same seed and configuration
// always reproduce the same perturbed series.
package stress

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"quantarena/internal/config"
	"quantarena/internal/domain"
)

// crashCeiling caps every extreme draw at a 5% drop minimum.
const crashCeiling = -0.05

// paretoAlpha is the fixed Pareto tail exponent.
const paretoAlpha = 2.5

// Generator applies the staged stress model. Not safe for concurrent use;
// each run owns its own Generator.
type Generator struct {
	cfg    config.Stress
	rng    *rand.Rand
	pareto distuv.Pareto
}

// NewGenerator validates the configuration and seeds the random stream.
func NewGenerator(cfg config.Stress) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("stress config: %w", err)
	}
	src := rand.NewSource(cfg.Seed)
	return &Generator{
		cfg: cfg,
		rng: rand.New(src),
		pareto: distuv.Pareto{
			Xm:    math.Abs(cfg.TailThreshold),
			Alpha: paretoAlpha,
			Src:   src,
		},
	}, nil
}

// PerturbReturn maps a base day return to its stressed value. history is the
// instrument's close path up to but not including the day, oldest first.
//
// Stage draws are consumed in a fixed order regardless of which stage ends up
// supplying the return, so the stream stays aligned across configurations
// that toggle later stages.
func (g *Generator) PerturbReturn(base float64, history []float64) float64 {
	if !g.cfg.Enabled {
		return base
	}

	ret := base

	if g.cfg.JumpEnabled && g.rng.Float64() < g.cfg.JumpProbability {
		size := g.cfg.JumpSizes[g.rng.Intn(len(g.cfg.JumpSizes))]
		switch g.cfg.JumpDirection {
		case "down":
			size = -math.Abs(size)
		case "up":
			size = math.Abs(size)
		}
		ret = base + size
	}

	if g.cfg.ExtremeEnabled && g.rng.Float64() < g.cfg.ExtremeProbability {
		ret = g.extremeDraw()
	}

	// The quantile stage is not probabilistic: when enabled, its prediction
	// overrides whatever the earlier stages produced.
	if g.cfg.QuantileEnabled {
		ret = predictQuantile(history, g.cfg.QuantileLevel, g.cfg.LookbackDays)
	}

	return ret
}

// Realize maps one instrument's base series to its stressed series. The close
// path is rebuilt from perturbed day returns; open, high, and low scale by the
// day's close factor and volume is untouched. The first bar anchors the path.
func (g *Generator) Realize(bars []domain.Bar) []domain.Bar {
	if !g.cfg.Enabled || len(bars) == 0 {
		return bars
	}

	out := make([]domain.Bar, len(bars))
	out[0] = bars[0]
	history := make([]float64, 0, len(bars))
	history = append(history, bars[0].Close)

	for i := 1; i < len(bars); i++ {
		baseRet := 0.0
		if bars[i-1].Close > 0 {
			baseRet = bars[i].Close/bars[i-1].Close - 1
		}
		ret := g.PerturbReturn(baseRet, history)

		closePx := out[i-1].Close * (1 + ret)
		if closePx < 0.01 {
			closePx = 0.01
		}

		factor := 1.0
		if bars[i].Close > 0 {
			factor = closePx / bars[i].Close
		}

		b := bars[i]
		b.Open *= factor
		b.High *= factor
		b.Low *= factor
		b.Close = closePx
		out[i] = b
		history = append(history, closePx)
	}
	return out
}

// extremeDraw samples one crash-sized return from the configured tail
// distribution. Every path caps the result at crashCeiling.
func (g *Generator) extremeDraw() float64 {
	switch g.cfg.Distribution {
	case "gev":
		return math.Min(g.gevDraw(), crashCeiling)
	case "pareto":
		return math.Min(-g.pareto.Rand(), crashCeiling)
	default:
		// Threshold fallback: the configured tail with a ±20% variation.
		variation := (g.rng.Float64()*0.4 - 0.2) * math.Abs(g.cfg.TailThreshold)
		return math.Min(g.cfg.TailThreshold+variation, crashCeiling)
	}
}

// gevDraw samples a generalized-extreme-value variate by inverse CDF, with
// the Gumbel limit when the shape is effectively zero.
func (g *Generator) gevDraw() float64 {
	u := g.rng.Float64()
	c := g.cfg.ExtremeShape
	loc := g.cfg.TailThreshold
	scale := g.cfg.ExtremeScale

	if math.Abs(c) < 1e-10 {
		return loc - scale*math.Log(-math.Log(u))
	}
	return loc + (scale/c)*(1-math.Pow(-math.Log(u), -c))
}
