package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ExecCore/internal/domain/models"
	"ExecCore/internal/repository"
	"ExecCore/internal/service/riskguard"
	"ExecCore/internal/services/pricing"
	"ExecCore/pkg/config"
	applogger "ExecCore/pkg/logger"
	"ExecCore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeChooser struct {
	choice models.PolicyChoice
	err    error
	panics bool
}

func (f *fakeChooser) ChoosePolicy(context.Context, models.PlanContext) (models.PolicyChoice, error) {
	if f.panics {
		panic("router exploded")
	}
	return f.choice, f.err
}

type fakeForecaster struct {
	fc    models.VolatilityForecast
	err   error
	delay time.Duration
	calls int32
	lastH int32
}

func (f *fakeForecaster) ForecastVol(_ context.Context, symbol string, h int) (models.VolatilityForecast, error) {
	atomic.AddInt32(&f.calls, 1)
	atomic.StoreInt32(&f.lastH, int32(h))
	if f.delay > 0 {
		// ignores ctx on purpose
		time.Sleep(f.delay)
	}
	fc := f.fc
	fc.Symbol, fc.HorizonMinutes = symbol, h
	return fc, f.err
}

type fakeMicro struct {
	snap  *models.MicrostructureSnapshot
	err   error
	calls int32
}

func (f *fakeMicro) GetSnapshot(context.Context, string) (*models.MicrostructureSnapshot, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.snap, f.err
}

type fakePrices struct {
	price float64
	err   error
}

func (f *fakePrices) ReferencePrice(_ context.Context, symbol string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.price <= 0 {
		return 0, fmt.Errorf("%s: %w", symbol, pricing.ErrNoReferencePrice)
	}
	return f.price, nil
}

// exactAdapter fills the whole size at the reference price.
type exactAdapter struct {
	err    error
	panics bool
	calls  int32
}

func (a *exactAdapter) Submit(_ context.Context, plan models.ExecutionPlan, refPrice float64) (models.Fill, error) {
	atomic.AddInt32(&a.calls, 1)
	if a.panics {
		panic("venue exploded")
	}
	if a.err != nil {
		return models.Fill{}, a.err
	}
	return models.Fill{Price: refPrice, Size: plan.TargetSize}, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	recs []models.ExecutionRecord
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, rec models.ExecutionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

type panickingSizing struct{}

func (panickingSizing) Store(models.SizingSnapshot)         { panic("slot broken") }
func (panickingSizing) Last() (models.SizingSnapshot, bool) { return models.SizingSnapshot{}, false }

var errUpstream = errors.New("upstream down")

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Planner.FetchTimeout = 100 * time.Millisecond
	cfg.Router.PublishTimeout = 100 * time.Millisecond
	return cfg
}

func testMetrics() *metrics.Recorder {
	return metrics.New(prometheus.NewRegistry())
}

type plannerDeps struct {
	chooser *fakeChooser
	vol     *fakeForecaster
	micro   *fakeMicro
	prices  *fakePrices
	sizing  *repository.SizingSlot
}

func newPlannerDeps() *plannerDeps {
	return &plannerDeps{
		chooser: &fakeChooser{choice: models.PolicyChoice{PolicyID: "momentum_long", Score: 1}},
		vol:     &fakeForecaster{fc: models.VolatilityForecast{SigmaHAR: 0.03, SigmaGARCH: 0.025, Confidence: 0.8}},
		micro:   &fakeMicro{},
		prices:  &fakePrices{price: 64_000},
		sizing:  repository.NewSizingSlot(),
	}
}

func (d *plannerDeps) planner(cfg *config.Config) *Planner {
	return NewPlanner(d.chooser, d.vol, d.micro, d.prices, d.sizing, testMetrics(), applogger.Nop(), cfg)
}

type routerDeps struct {
	guard   *riskguard.Guard
	adapter *exactAdapter
	prices  *fakePrices
	ledger  *repository.RingLedger
	pub     *capturePublisher
}

func newRouterDeps(symbolCap float64) *routerDeps {
	return &routerDeps{
		guard:   riskguard.New(symbolCap),
		adapter: &exactAdapter{},
		prices:  &fakePrices{price: 100_000},
		ledger:  repository.NewRingLedger(100),
		pub:     &capturePublisher{},
	}
}

func (d *routerDeps) router(t *testing.T) *Router {
	t.Helper()
	r := NewRouter(d.guard, d.adapter, d.prices, d.ledger, d.pub, testMetrics(), applogger.Nop(), testConfig())
	t.Cleanup(func() { _ = r.Close() })
	return r
}
