package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
	domsvc "ExecCore/internal/domain/service"
	"ExecCore/pkg/config"
	"ExecCore/pkg/id"
	applogger "ExecCore/pkg/logger"
)

// MaxKellyFraction caps the Kelly-lite fraction regardless of inputs.
const MaxKellyFraction = 0.25

type plannerSettings struct {
	horizon          int
	targetVol        float64
	riskBudget       float64
	maxTradeNotional float64
	largeNotional    float64
	highMicroVol     float64
	tightSpreadBps   float64
	lowImbalance     float64
	defaultSpreadBps float64
	impactK          float64
	impactAlpha      float64
	impactRef        float64
	fetchTimeout     time.Duration
	discount         map[models.ExecutionStyle]float64
}

func newPlannerSettings(cfg *config.Config) plannerSettings {
	p := cfg.Planner
	return plannerSettings{
		horizon:          p.DefaultHorizonMinutes,
		targetVol:        p.DefaultTargetVol,
		riskBudget:       p.DefaultRiskBudget,
		maxTradeNotional: p.MaxTradeNotional,
		largeNotional:    p.LargeNotional,
		highMicroVol:     p.HighMicroVol,
		tightSpreadBps:   p.TightSpreadBps,
		lowImbalance:     p.LowImbalance,
		defaultSpreadBps: p.DefaultSpreadBps,
		impactK:          p.ImpactK,
		impactAlpha:      p.ImpactAlpha,
		impactRef:        p.ImpactRefNotional,
		fetchTimeout:     p.FetchTimeout,
		discount: map[models.ExecutionStyle]float64{
			models.StyleImmediate: 1,
			models.StylePOV:       p.StyleDiscount.POV,
			models.StyleTWAP:      p.StyleDiscount.TWAP,
			models.StyleVWAP:      p.StyleDiscount.VWAP,
		},
	}
}

// Planner turns a plan context into a sized, styled and costed ExecutionPlan.
// Plan never fails: any collaborator error, timeout or panic yields a flat
// zero-size plan.
type Planner struct {
	chooser domsvc.PolicyChooser
	vol     domsvc.VolatilityForecaster
	micro   domsvc.MicrostructureProvider
	prices  domsvc.PriceSource
	sizing  domrepo.SizingStore
	metrics domrepo.Metrics
	log     *applogger.Logger
	cfg     plannerSettings
	now     func() time.Time
}

func NewPlanner(
	chooser domsvc.PolicyChooser,
	vol domsvc.VolatilityForecaster,
	micro domsvc.MicrostructureProvider,
	prices domsvc.PriceSource,
	sizing domrepo.SizingStore,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *Planner {
	return &Planner{
		chooser: chooser,
		vol:     vol,
		micro:   micro,
		prices:  prices,
		sizing:  sizing,
		metrics: metrics,
		log:     log,
		cfg:     newPlannerSettings(cfg),
		now:     time.Now,
	}
}

// Plan builds a plan and records its sizing snapshot.
func (p *Planner) Plan(ctx context.Context, pctx models.PlanContext) models.ExecutionPlan {
	return p.plan(ctx, pctx, true)
}

// Simulate builds the same plan Plan would, without touching the sizing slot.
func (p *Planner) Simulate(ctx context.Context, pctx models.PlanContext) models.ExecutionPlan {
	return p.plan(ctx, pctx, false)
}

func (p *Planner) plan(ctx context.Context, pctx models.PlanContext, persist bool) (plan models.ExecutionPlan) {
	start := time.Now()
	pctx = p.withDefaults(pctx)

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("planner panic, returning flat plan",
				applogger.Symbol(pctx.Symbol),
				applogger.Any("panic", r),
			)
			p.metrics.RecordPlannerFallback("panic")
			plan = p.flatPlan(pctx, "", true)
		}
	}()

	built, err := p.build(ctx, pctx, persist)
	if err != nil {
		p.log.Error("planning failed, returning flat plan",
			applogger.Symbol(pctx.Symbol),
			applogger.Error(err),
		)
		p.metrics.RecordPlannerFallback(fallbackReason(err))
		return p.flatPlan(pctx, "", true)
	}

	p.metrics.RecordPlan(built.Signal, built.ExecutionStyle)
	p.metrics.RecordLatency("plan", time.Since(start).Seconds())
	return built
}

func (p *Planner) build(ctx context.Context, pctx models.PlanContext, persist bool) (models.ExecutionPlan, error) {
	if pctx.Symbol == "" {
		return models.ExecutionPlan{}, &planError{stage: "input", err: errors.New("symbol is required")}
	}
	if !(pctx.MaxSize > 0) || math.IsInf(pctx.MaxSize, 0) {
		return models.ExecutionPlan{}, &planError{stage: "input", err: fmt.Errorf("max size must be positive, got %v", pctx.MaxSize)}
	}

	choice, err := callWithTimeout(ctx, p.cfg.fetchTimeout, func(ctx context.Context) (models.PolicyChoice, error) {
		return p.chooser.ChoosePolicy(ctx, pctx)
	})
	if err != nil {
		return models.ExecutionPlan{}, &planError{stage: "policy", err: err}
	}

	signal := models.SignalForPolicy(models.PolicyID(choice.PolicyID))
	if signal == models.SignalFlat {
		return p.flatPlan(pctx, choice.PolicyID, false), nil
	}

	fc, err := callWithTimeout(ctx, p.cfg.fetchTimeout, func(ctx context.Context) (models.VolatilityForecast, error) {
		return p.vol.ForecastVol(ctx, pctx.Symbol, pctx.HorizonMinutes)
	})
	if err != nil {
		return models.ExecutionPlan{}, &planError{stage: "forecast", err: err}
	}
	snap, err := callWithTimeout(ctx, p.cfg.fetchTimeout, func(ctx context.Context) (*models.MicrostructureSnapshot, error) {
		return p.micro.GetSnapshot(ctx, pctx.Symbol)
	})
	if err != nil {
		return models.ExecutionPlan{}, &planError{stage: "microstructure", err: err}
	}
	if snap == nil {
		p.log.Warn("no microstructure snapshot, using permissive defaults", applogger.Symbol(pctx.Symbol))
	}

	refPrice, err := callWithTimeout(ctx, p.cfg.fetchTimeout, func(ctx context.Context) (float64, error) {
		return p.prices.ReferencePrice(ctx, pctx.Symbol)
	})
	if err != nil {
		p.log.Warn("no reference price, notional unknown", applogger.Symbol(pctx.Symbol), applogger.Error(err))
		refPrice = 0
	}

	width := fc.UncertaintyWidth()
	if !(width > 0) || math.IsInf(width, 0) {
		return models.ExecutionPlan{}, &planError{stage: "forecast", err: fmt.Errorf("uncertainty width not positive: %v", width)}
	}

	uncertaintyScale := math.Exp(-width / pctx.TargetVol)
	kelly := KellyFraction(pctx.MaxSize, width, pctx.TargetVol)
	volTargetScale := pctx.TargetVol / width
	microScale := 1.0
	if snap != nil {
		microScale = 1 / (1 + snap.SpreadBps/10)
	}

	size := kelly * volTargetScale * microScale
	size = math.Min(size, pctx.MaxSize)
	if refPrice > 0 && p.cfg.maxTradeNotional > 0 {
		size = math.Min(size, p.cfg.maxTradeNotional/refPrice)
	}
	size *= signal.Sign()
	if math.IsNaN(size) || math.IsInf(size, 0) {
		return models.ExecutionPlan{}, &planError{stage: "sizing", err: errors.New("size not finite")}
	}

	notional := math.Abs(size) * refPrice
	style := p.chooseStyle(notional, snap)
	cost := p.estimateCost(notional, snap, style)

	plan := models.ExecutionPlan{
		ID:             id.New(),
		Symbol:         pctx.Symbol,
		PolicyID:       choice.PolicyID,
		Signal:         signal,
		TargetSize:     size,
		ExecutionStyle: style,
		Urgency:        urgency(choice.Score),
		EstimatedCost:  cost,
		RiskBudget:     pctx.RiskBudget,
		ReferencePrice: refPrice,
		Timestamp:      p.now().UTC(),
	}

	if persist {
		p.sizing.Store(models.SizingSnapshot{
			PlanID:           plan.ID,
			Symbol:           plan.Symbol,
			BaseSize:         kelly,
			UncertaintyWidth: width,
			UncertaintyScale: uncertaintyScale,
			VolTargetScale:   volTargetScale,
			MicroScale:       microScale,
			FinalSize:        size,
			Confidence:       fc.Confidence,
			Timestamp:        plan.Timestamp,
		})
	}

	p.log.Debug("plan built",
		applogger.Symbol(plan.Symbol),
		applogger.String("policy", plan.PolicyID),
		applogger.String("signal", string(plan.Signal)),
		applogger.Float64("size", plan.TargetSize),
		applogger.String("style", string(plan.ExecutionStyle)),
		applogger.Float64("cost", plan.EstimatedCost),
	)
	return plan, nil
}

// KellyFraction is min(0.25, maxSize * exp(-width/targetVol)).
func KellyFraction(maxSize, width, targetVol float64) float64 {
	if !(maxSize > 0) || !(targetVol > 0) {
		return 0
	}
	k := maxSize * math.Exp(-width/targetVol)
	if math.IsNaN(k) {
		return 0
	}
	return math.Min(MaxKellyFraction, k)
}

// chooseStyle picks how to work the order. Large orders are spread over time
// or volume; small orders cross immediately only when the book is tight and
// balanced. Anything unknown or mixed gets pov.
func (p *Planner) chooseStyle(notional float64, snap *models.MicrostructureSnapshot) models.ExecutionStyle {
	if notional > p.cfg.largeNotional {
		switch {
		case snap == nil:
			return models.StylePOV
		case snap.MicroVol > p.cfg.highMicroVol:
			return models.StyleVWAP
		default:
			return models.StyleTWAP
		}
	}
	if snap != nil && snap.SpreadBps <= p.cfg.tightSpreadBps && math.Abs(snap.OBI) <= p.cfg.lowImbalance {
		return models.StyleImmediate
	}
	return models.StylePOV
}

// estimateCost is (k*(notional/ref)^alpha + halfSpread) scaled by the style
// discount. Without a snapshot the configured default spread is assumed.
func (p *Planner) estimateCost(notional float64, snap *models.MicrostructureSnapshot, style models.ExecutionStyle) float64 {
	spreadBps := p.cfg.defaultSpreadBps
	if snap != nil {
		spreadBps = snap.SpreadBps
	}
	impact := 0.0
	if notional > 0 && p.cfg.impactRef > 0 {
		impact = p.cfg.impactK * math.Pow(notional/p.cfg.impactRef, p.cfg.impactAlpha)
	}
	spreadCost := spreadBps / 10000 / 2
	d, ok := p.cfg.discount[style]
	if !ok {
		d = 1
	}
	return math.Max(0, (impact+spreadCost)*d)
}

func (p *Planner) flatPlan(pctx models.PlanContext, policyID string, fallback bool) models.ExecutionPlan {
	return models.ExecutionPlan{
		ID:             id.New(),
		Symbol:         pctx.Symbol,
		PolicyID:       policyID,
		Signal:         models.SignalFlat,
		TargetSize:     0,
		ExecutionStyle: models.StylePOV,
		RiskBudget:     pctx.RiskBudget,
		Fallback:       fallback,
		Timestamp:      p.now().UTC(),
	}
}

func (p *Planner) withDefaults(pctx models.PlanContext) models.PlanContext {
	pctx.Symbol = strings.ToUpper(strings.TrimSpace(pctx.Symbol))
	if !(pctx.TargetVol > 0) {
		pctx.TargetVol = p.cfg.targetVol
	}
	if !(pctx.RiskBudget > 0) {
		pctx.RiskBudget = p.cfg.riskBudget
	}
	// non-positive means unset
	if pctx.HorizonMinutes < 1 {
		pctx.HorizonMinutes = p.cfg.horizon
	}
	return pctx
}

// urgency maps an unbounded score into [0, 1).
func urgency(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	s := math.Abs(score)
	return s / (1 + s)
}

// planError tags a planning failure with the step that produced it.
type planError struct {
	stage string
	err   error
}

func (e *planError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *planError) Unwrap() error { return e.err }

func fallbackReason(err error) string {
	var pe *planError
	if errors.As(err, &pe) {
		return pe.stage
	}
	return "unknown"
}
