package stress

import (
	"math"
	"testing"
	"time"

	"quantarena/internal/config"
	"quantarena/internal/domain"
)

func baseStress() config.Stress {
	cfg := config.Default().Stress
	cfg.Enabled = true
	return cfg
}

func flatBars(n int, price float64) []domain.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol: "AAPL",
			Date:   start.AddDate(0, 0, i),
			Open:   price, High: price * 1.01, Low: price * 0.99, Close: price,
			Volume: 1000000,
		}
	}
	return bars
}

func TestNewGeneratorRejectsInvalidConfig(t *testing.T) {
	cfg := baseStress()
	cfg.JumpDirection = "sideways"
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatal("NewGenerator accepted bad jump_direction")
	}
}

func TestDisabledGeneratorPassesThrough(t *testing.T) {
	cfg := config.Default().Stress
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.PerturbReturn(0.013, nil); got != 0.013 {
		t.Errorf("disabled generator perturbed return: %v", got)
	}
	bars := flatBars(5, 100)
	out := g.Realize(bars)
	for i := range bars {
		if out[i] != bars[i] {
			t.Fatalf("disabled generator changed bar %d", i)
		}
	}
}

// A certain down jump of -20% forces every day's return regardless of the
// base walk, and the decline reproduces under the same seed.
func TestForcedJumpPattern(t *testing.T) {
	cfg := baseStress()
	cfg.JumpEnabled = true
	cfg.JumpProbability = 1.0
	cfg.JumpSizes = []float64{-0.20}
	cfg.JumpDirection = "down"

	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for day := 0; day < 5; day++ {
		base := float64(day) * 0.001
		got := g.PerturbReturn(base, nil)
		if math.Abs(got-(base-0.20)) > 1e-12 {
			t.Fatalf("day %d: perturbed = %v, want base%+v", day, got, -0.20)
		}
	}

	g1, _ := NewGenerator(cfg)
	g2, _ := NewGenerator(cfg)
	bars := flatBars(30, 100)
	a, b := g1.Realize(bars), g2.Realize(bars)
	for i := range a {
		if a[i].Close != b[i].Close {
			t.Fatalf("day %d: same seed produced different closes %v vs %v", i, a[i].Close, b[i].Close)
		}
	}
	if a[len(a)-1].Close >= a[0].Close {
		t.Error("forced down jumps did not produce a declining close path")
	}
}

func TestJumpDirectionFilter(t *testing.T) {
	cfg := baseStress()
	cfg.JumpEnabled = true
	cfg.JumpProbability = 1.0
	cfg.JumpSizes = []float64{0.10, -0.10}

	cfg.JumpDirection = "up"
	g, _ := NewGenerator(cfg)
	for i := 0; i < 20; i++ {
		if got := g.PerturbReturn(0, nil); got < 0 {
			t.Fatalf("up-only jump produced %v", got)
		}
	}

	cfg.JumpDirection = "down"
	g, _ = NewGenerator(cfg)
	for i := 0; i < 20; i++ {
		if got := g.PerturbReturn(0, nil); got > 0 {
			t.Fatalf("down-only jump produced %v", got)
		}
	}
}

func TestExtremeDrawsAreCrashes(t *testing.T) {
	for _, dist := range []string{"gev", "pareto", "threshold"} {
		t.Run(dist, func(t *testing.T) {
			cfg := baseStress()
			cfg.ExtremeEnabled = true
			cfg.ExtremeProbability = 1.0
			cfg.Distribution = dist

			g, err := NewGenerator(cfg)
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 50; i++ {
				got := g.PerturbReturn(0.01, nil)
				if got > -0.05 {
					t.Fatalf("draw %d: extreme return %v above -5%% cap", i, got)
				}
			}
		})
	}
}

func TestExtremeOverridesJump(t *testing.T) {
	cfg := baseStress()
	cfg.JumpEnabled = true
	cfg.JumpProbability = 1.0
	cfg.JumpSizes = []float64{-0.10}
	cfg.ExtremeEnabled = true
	cfg.ExtremeProbability = 1.0
	cfg.Distribution = "threshold"
	cfg.TailThreshold = -0.30

	g, _ := NewGenerator(cfg)
	got := g.PerturbReturn(0, nil)
	// The threshold fallback varies by at most 20% of the threshold, so the
	// result is well away from the jump's -10%.
	if got > -0.24 || got < -0.36 {
		t.Errorf("perturbed = %v, want an extreme draw near -0.30", got)
	}
}

func TestQuantileStageOverridesAll(t *testing.T) {
	cfg := baseStress()
	cfg.JumpEnabled = true
	cfg.JumpProbability = 1.0
	cfg.JumpSizes = []float64{-0.10}
	cfg.ExtremeEnabled = true
	cfg.ExtremeProbability = 1.0
	cfg.QuantileEnabled = true

	g, _ := NewGenerator(cfg)
	// Short history: the fixed prior wins over both earlier stages.
	if got := g.PerturbReturn(0.02, []float64{100, 101}); got != shortHistoryPrior {
		t.Errorf("perturbed = %v, want short-history prior %v", got, shortHistoryPrior)
	}
}

func TestPredictQuantileBounds(t *testing.T) {
	if got := predictQuantile([]float64{100, 99, 98}, 0.01, 30); got != shortHistoryPrior {
		t.Errorf("short history prediction = %v, want %v", got, shortHistoryPrior)
	}

	// A calm series still predicts at least a 5% drop.
	calm := make([]float64, 40)
	for i := range calm {
		calm[i] = 100 + 0.01*float64(i%3)
	}
	if got := predictQuantile(calm, 0.01, 30); got > -0.05 {
		t.Errorf("calm-series prediction = %v, above -5%% cap", got)
	}

	// A crash-ridden series is clamped at -50%.
	wild := []float64{100, 20, 100, 15, 100, 10, 100, 8, 100, 5, 100, 4}
	if got := predictQuantile(wild, 0.01, 30); got < -0.50 {
		t.Errorf("wild-series prediction = %v, below -50%% clamp", got)
	}
}

// The lookback window bounds the sample: crashes that have scrolled out of
// the window must not influence the estimate.
func TestPredictQuantileHonorsLookback(t *testing.T) {
	history := []float64{100, 30, 100, 25, 100}
	for i := 0; i < 20; i++ {
		history = append(history, 100+0.01*float64(i%3))
	}

	narrow := predictQuantile(history, 0.01, 10)
	if narrow != -0.05 {
		t.Errorf("calm-window prediction = %v, want the -5%% cap", narrow)
	}

	wide := predictQuantile(history, 0.01, len(history))
	if wide > -0.30 {
		t.Errorf("full-window prediction = %v, want the early crashes reflected", wide)
	}
}

func TestCalcFeaturesShape(t *testing.T) {
	f := calcFeatures(nil, 30)
	if f.PricePosition != 0.5 {
		t.Errorf("empty-history price position = %v, want 0.5", f.PricePosition)
	}

	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 * math.Pow(1.01, float64(i))
	}
	f = calcFeatures(rising, 30)
	if f.MeanReturn <= 0 {
		t.Errorf("rising series mean return = %v, want positive", f.MeanReturn)
	}
	if f.PricePosition != 1.0 {
		t.Errorf("rising series price position = %v, want 1.0", f.PricePosition)
	}
	if f.MaxDrawdown != 0 {
		t.Errorf("rising series drawdown = %v, want 0", f.MaxDrawdown)
	}
}

func TestRealizeScalesRangeAndKeepsVolume(t *testing.T) {
	cfg := baseStress()
	cfg.JumpEnabled = true
	cfg.JumpProbability = 1.0
	cfg.JumpSizes = []float64{-0.20}

	g, _ := NewGenerator(cfg)
	bars := flatBars(10, 100)
	out := g.Realize(bars)

	if out[0] != bars[0] {
		t.Error("first bar is the anchor and must pass through unchanged")
	}
	for i := 1; i < len(out); i++ {
		factor := out[i].Close / bars[i].Close
		if math.Abs(out[i].High-bars[i].High*factor) > 1e-9 ||
			math.Abs(out[i].Low-bars[i].Low*factor) > 1e-9 {
			t.Fatalf("day %d: range not scaled by the close factor", i)
		}
		if out[i].Volume != bars[i].Volume {
			t.Fatalf("day %d: volume changed", i)
		}
		if out[i].Close <= 0 {
			t.Fatalf("day %d: close %v not positive", i, out[i].Close)
		}
	}
}

func TestSeedChangesSeries(t *testing.T) {
	cfg := baseStress()
	cfg.ExtremeEnabled = true
	cfg.ExtremeProbability = 0.5
	cfg.Distribution = "gev"

	g1, _ := NewGenerator(cfg)
	cfg.Seed = 2
	g2, _ := NewGenerator(cfg)

	bars := flatBars(60, 100)
	a, b := g1.Realize(bars), g2.Realize(bars)
	same := true
	for i := range a {
		if a[i].Close != b[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical series")
	}
}
