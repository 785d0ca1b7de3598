package usecase

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"ExecCore/internal/domain/models"
	applogger "ExecCore/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanLongScenario(t *testing.T) {
	d := newPlannerDeps()
	p := d.planner(testConfig())

	plan := p.Plan(context.Background(), models.PlanContext{Symbol: "btcusdt", MaxSize: 0.1, TargetVol: 0.02})

	assert.Equal(t, models.SignalLong, plan.Signal)
	assert.Equal(t, "BTCUSDT", plan.Symbol)
	assert.Greater(t, plan.TargetSize, 0.0)
	assert.LessOrEqual(t, plan.TargetSize, 0.1)
	assert.False(t, plan.Fallback)
	assert.NotEmpty(t, plan.ID)

	snap, ok := d.sizing.Last()
	require.True(t, ok)
	assert.Equal(t, plan.ID, snap.PlanID)
	assert.InDelta(t, 0.1*math.Exp(-1.5), snap.BaseSize, 1e-12)
	assert.InDelta(t, 0.02/0.03, snap.VolTargetScale, 1e-12)
	assert.Equal(t, 1.0, snap.MicroScale)
	assert.InDelta(t, 0.1*math.Exp(-1.5)*(0.02/0.03), plan.TargetSize, 1e-12)
	assert.Equal(t, 0.8, snap.Confidence)
}

func TestPlanShortFlipsSign(t *testing.T) {
	d := newPlannerDeps()
	d.chooser.choice = models.PolicyChoice{PolicyID: "breakdown_short", Score: -2}
	plan := d.planner(testConfig()).Plan(context.Background(), models.PlanContext{Symbol: "ETHUSDT", MaxSize: 0.1})

	assert.Equal(t, models.SignalShort, plan.Signal)
	assert.Less(t, plan.TargetSize, 0.0)
	assert.InDelta(t, 2.0/3.0, plan.Urgency, 1e-12)
}

func TestPlanFlatShortCircuit(t *testing.T) {
	for _, policy := range []string{"not_a_policy", "", "hold", "risk_off"} {
		d := newPlannerDeps()
		d.chooser.choice = models.PolicyChoice{PolicyID: policy, Score: 5}
		d.vol.err = errUpstream

		plan := d.planner(testConfig()).Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 1})

		assert.Equal(t, models.SignalFlat, plan.Signal, policy)
		assert.Zero(t, plan.TargetSize)
		assert.Zero(t, plan.EstimatedCost)
		assert.False(t, plan.Fallback)
		assert.Zero(t, d.vol.calls)
		assert.Zero(t, d.micro.calls)
		_, ok := d.sizing.Last()
		assert.False(t, ok)
	}
}

func TestKellyFractionNeverExceedsCap(t *testing.T) {
	for _, maxSize := range []float64{0.001, 0.1, 1, 10, 1e6} {
		for _, width := range []float64{1e-9, 0.001, 0.02, 0.5, 10} {
			for _, tv := range []float64{0.001, 0.02, 1, 100} {
				k := KellyFraction(maxSize, width, tv)
				assert.LessOrEqual(t, k, MaxKellyFraction)
				assert.GreaterOrEqual(t, k, 0.0)
			}
		}
	}
	assert.Zero(t, KellyFraction(0, 0.01, 0.02))
	assert.Zero(t, KellyFraction(1, 0.01, 0))
}

func TestPlanKellyCapThroughPlanner(t *testing.T) {
	d := newPlannerDeps()
	d.chooser.choice.Score = 1e9
	d.vol.fc = models.VolatilityForecast{SigmaHAR: 1e-6, SigmaGARCH: 1e-6, Confidence: 0.95}

	d.planner(testConfig()).Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 1e6})

	snap, ok := d.sizing.Last()
	require.True(t, ok)
	assert.Equal(t, MaxKellyFraction, snap.BaseSize)
}

func TestPlanClampsToMaxTradeNotional(t *testing.T) {
	d := newPlannerDeps()
	d.vol.fc = models.VolatilityForecast{SigmaHAR: 0.001, SigmaGARCH: 0.001}
	d.prices.price = 1_000_000
	cfg := testConfig()
	cfg.Planner.MaxTradeNotional = 250_000

	plan := d.planner(cfg).Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 10})
	assert.InDelta(t, 0.25, plan.TargetSize, 1e-12)
	assert.Equal(t, 1_000_000.0, plan.ReferencePrice)
}

func TestPlanMicroScaleShrinksWithSpread(t *testing.T) {
	d := newPlannerDeps()
	d.micro.snap = &models.MicrostructureSnapshot{Symbol: "BTCUSDT", SpreadBps: 10, OBI: 0.5}
	p := d.planner(testConfig())

	plan := p.Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 0.1, TargetVol: 0.02})
	snap, _ := d.sizing.Last()
	assert.Equal(t, 0.5, snap.MicroScale)
	assert.InDelta(t, 0.1*math.Exp(-1.5)*(0.02/0.03)*0.5, plan.TargetSize, 1e-12)
}

func TestPlanFallsBackOnCollaboratorFailure(t *testing.T) {
	cases := map[string]func(d *plannerDeps){
		"chooser error":  func(d *plannerDeps) { d.chooser.err = errUpstream },
		"chooser panic":  func(d *plannerDeps) { d.chooser.panics = true },
		"forecast error": func(d *plannerDeps) { d.vol.err = errUpstream },
		"micro error":    func(d *plannerDeps) { d.micro.err = errUpstream },
		"zero width":     func(d *plannerDeps) { d.vol.fc = models.VolatilityForecast{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := newPlannerDeps()
			mutate(d)
			plan := d.planner(testConfig()).Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 1})

			assert.Equal(t, models.SignalFlat, plan.Signal)
			assert.Zero(t, plan.TargetSize)
			assert.Zero(t, plan.EstimatedCost)
			assert.True(t, plan.Fallback)
		})
	}
}

func TestPlanFallsBackOnTimeout(t *testing.T) {
	d := newPlannerDeps()
	d.vol.delay = 2 * time.Second
	cfg := testConfig()
	cfg.Planner.FetchTimeout = 50 * time.Millisecond

	start := time.Now()
	plan := d.planner(cfg).Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 1})

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, plan.Fallback)
	assert.Zero(t, plan.TargetSize)
}

func TestPlanRecoversFromPanic(t *testing.T) {
	d := newPlannerDeps()
	p := NewPlanner(d.chooser, d.vol, d.micro, d.prices, panickingSizing{}, testMetrics(), applogger.Nop(), testConfig())

	plan := p.Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 1})
	assert.True(t, plan.Fallback)
	assert.Equal(t, models.SignalFlat, plan.Signal)
}

func TestPlanRejectsBadContext(t *testing.T) {
	d := newPlannerDeps()
	p := d.planner(testConfig())
	for _, pctx := range []models.PlanContext{
		{Symbol: "", MaxSize: 1},
		{Symbol: "BTCUSDT", MaxSize: -1},
		{Symbol: "BTCUSDT", MaxSize: math.NaN()},
	} {
		plan := p.Plan(context.Background(), pctx)
		assert.True(t, plan.Fallback)
		assert.Zero(t, plan.TargetSize)
	}
}

func TestPlanDefaultsMissingHorizon(t *testing.T) {
	cfg := testConfig()
	cfg.Planner.DefaultHorizonMinutes = 60

	for _, tt := range []struct{ in, want int }{{0, 60}, {-5, 60}, {1, 1}, {15, 15}} {
		d := newPlannerDeps()
		plan := d.planner(cfg).Plan(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 0.1, HorizonMinutes: tt.in})

		assert.False(t, plan.Fallback)
		assert.Equal(t, int32(tt.want), atomic.LoadInt32(&d.vol.lastH), "horizon %d", tt.in)
	}
}

func TestSimulateDoesNotPersistSizing(t *testing.T) {
	d := newPlannerDeps()
	plan := d.planner(testConfig()).Simulate(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 0.1})
	assert.Greater(t, plan.TargetSize, 0.0)
	_, ok := d.sizing.Last()
	assert.False(t, ok)
}

func TestChooseStyle(t *testing.T) {
	p := newPlannerDeps().planner(testConfig())
	// defaults: large 50k, high micro vol 0.002, tight 5bps, low obi 0.2
	tests := []struct {
		name     string
		notional float64
		snap     *models.MicrostructureSnapshot
		want     models.ExecutionStyle
	}{
		{"large volatile", 100_000, &models.MicrostructureSnapshot{MicroVol: 0.01, SpreadBps: 2}, models.StyleVWAP},
		{"large calm", 100_000, &models.MicrostructureSnapshot{MicroVol: 0.001, SpreadBps: 2}, models.StyleTWAP},
		{"large unknown", 100_000, nil, models.StylePOV},
		{"small tight balanced", 1_000, &models.MicrostructureSnapshot{SpreadBps: 3, OBI: -0.1}, models.StyleImmediate},
		{"small tight imbalanced", 1_000, &models.MicrostructureSnapshot{SpreadBps: 3, OBI: 0.6}, models.StylePOV},
		{"small wide", 1_000, &models.MicrostructureSnapshot{SpreadBps: 20}, models.StylePOV},
		{"small unknown", 1_000, nil, models.StylePOV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.chooseStyle(tt.notional, tt.snap))
		})
	}
}

func TestEstimateCost(t *testing.T) {
	p := newPlannerDeps().planner(testConfig())
	snap := &models.MicrostructureSnapshot{SpreadBps: 4}

	// no notional: half spread only
	assert.InDelta(t, 0.0002, p.estimateCost(0, snap, models.StyleImmediate), 1e-15)
	// default spread when no snapshot
	assert.InDelta(t, 0.0005, p.estimateCost(0, nil, models.StyleImmediate), 1e-15)

	// impact is superlinear in notional
	i1 := p.estimateCost(100_000, snap, models.StyleImmediate) - 0.0002
	i2 := p.estimateCost(200_000, snap, models.StyleImmediate) - 0.0002
	assert.InDelta(t, 0.001, i1, 1e-12)
	assert.Greater(t, i2, 2*i1)

	full := p.estimateCost(100_000, snap, models.StyleImmediate)
	assert.InDelta(t, 0.8*full, p.estimateCost(100_000, snap, models.StylePOV), 1e-12)
	assert.InDelta(t, 0.7*full, p.estimateCost(100_000, snap, models.StyleTWAP), 1e-12)
	assert.InDelta(t, 0.6*full, p.estimateCost(100_000, snap, models.StyleVWAP), 1e-12)
}

func TestUrgencyBounded(t *testing.T) {
	for _, s := range []float64{0, 0.5, -3, 1e12, math.Inf(1), math.NaN()} {
		u := urgency(s)
		assert.GreaterOrEqual(t, u, 0.0)
		assert.LessOrEqual(t, u, 1.0)
	}
}
