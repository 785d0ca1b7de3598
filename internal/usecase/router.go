package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
	domsvc "ExecCore/internal/domain/service"
	"ExecCore/internal/services/execution"
	"ExecCore/internal/services/pricing"
	"ExecCore/pkg/cache"
	"ExecCore/pkg/config"
	"ExecCore/pkg/id"
	applogger "ExecCore/pkg/logger"
)

// ErrPlanConsumed is logged when a plan id reaches the router a second time.
var ErrPlanConsumed = errors.New("plan already executed")

const consumedCapacity = 10_000

// Router gates plans through the risk guard and hands approved ones to the
// execution adapter. Every Execute call stores exactly one terminal record.
type Router struct {
	guard   domsvc.RiskGuard
	adapter domsvc.ExecutionAdapter
	prices  domsvc.PriceSource
	ledger  domrepo.Ledger
	pub     domrepo.RecordPublisher
	metrics domrepo.Metrics
	log     *applogger.Logger

	publishTimeout time.Duration
	locks          *symbolLocks
	consumed       *cache.MemoryCache
	now            func() time.Time
}

func NewRouter(
	guard domsvc.RiskGuard,
	adapter domsvc.ExecutionAdapter,
	prices domsvc.PriceSource,
	ledger domrepo.Ledger,
	pub domrepo.RecordPublisher,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *Router {
	return &Router{
		guard:          guard,
		adapter:        adapter,
		prices:         prices,
		ledger:         ledger,
		pub:            pub,
		metrics:        metrics,
		log:            log,
		publishTimeout: cfg.Router.PublishTimeout,
		locks:          newSymbolLocks(),
		consumed:       cache.NewMemoryCache(cache.WithMemoryMaxSize(consumedCapacity)),
		now:            time.Now,
	}
}

// Execute runs plan to a terminal record. Calls for the same symbol are
// serialized through the ledger append; the guard reservation bounds
// exposure across symbols.
func (r *Router) Execute(ctx context.Context, plan models.ExecutionPlan) models.ExecutionRecord {
	start := time.Now()
	sym := strings.ToUpper(plan.Symbol)

	unlock := r.locks.lock(sym)
	rec := r.run(ctx, plan)
	r.ledger.Append(rec)
	unlock()

	r.metrics.RecordExecution(rec.Status, rec.BlockReason)
	r.metrics.RecordLatency("execute", time.Since(start).Seconds())
	r.publish(ctx, rec)
	return rec
}

// History returns up to limit records, newest first.
func (r *Router) History(limit int) []models.ExecutionRecord {
	return r.ledger.Recent(limit)
}

func (r *Router) Record(id string) (models.ExecutionRecord, bool) {
	return r.ledger.Get(id)
}

func (r *Router) run(ctx context.Context, plan models.ExecutionPlan) (rec models.ExecutionRecord) {
	rec = models.ExecutionRecord{ID: id.New(), Plan: plan, Timestamp: r.now().UTC()}
	_ = rec.Transition(models.StatusPending)

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("execution panic, cancelling",
				applogger.Symbol(plan.Symbol),
				applogger.String("plan_id", plan.ID),
				applogger.Any("panic", p),
			)
			fresh := models.ExecutionRecord{ID: rec.ID, Plan: plan, Status: models.StatusPending, Timestamp: rec.Timestamp}
			rec = r.cancel(fresh, fmt.Sprintf("panic: %v", p))
		}
	}()

	if plan.ID != "" && !r.consume(ctx, plan) {
		r.log.Warn("plan replay rejected",
			applogger.Symbol(plan.Symbol),
			applogger.String("plan_id", plan.ID),
			applogger.Error(ErrPlanConsumed),
		)
		return r.cancel(rec, models.ReasonPlanAlreadyExecuted)
	}
	if plan.IsNoTrade() || math.IsNaN(plan.TargetSize) {
		return r.cancel(rec, models.ReasonZeroSize)
	}

	price := plan.ReferencePrice
	if !(price > 0) {
		var err error
		price, err = r.prices.ReferencePrice(ctx, plan.Symbol)
		if err != nil {
			if errors.Is(err, pricing.ErrNoReferencePrice) {
				r.log.Warn("no reference price, cancelling", applogger.Symbol(plan.Symbol))
				return r.cancel(rec, models.ReasonNoReferencePrice)
			}
			r.log.Error("reference price lookup failed", applogger.Symbol(plan.Symbol), applogger.Error(err))
			return r.cancel(rec, err.Error())
		}
	}

	// Worst-case notional: full size at the highest price the adapter may fill.
	notional := math.Abs(plan.TargetSize) * price * (1 + execution.MaxSlippageMultiple*math.Max(0, plan.EstimatedCost))
	rec.Notional = notional

	decision := r.guard.Reserve(plan.Symbol, notional)
	if !decision.Allowed {
		r.metrics.RecordGuardDenial(decision.Reason)
		r.log.Warn("order blocked by risk guard",
			applogger.Symbol(plan.Symbol),
			applogger.String("reason", decision.Reason),
			applogger.Float64("notional", notional),
		)
		rec.BlockReason = decision.Reason
		_ = rec.Transition(models.StatusBlocked)
		return rec
	}
	committed := false
	defer func() {
		if !committed {
			r.guard.Release(plan.Symbol, notional)
		}
	}()

	fill, err := r.adapter.Submit(ctx, plan, price)
	if err != nil {
		r.log.Error("order submission failed",
			applogger.Symbol(plan.Symbol),
			applogger.String("plan_id", plan.ID),
			applogger.Error(err),
		)
		return r.cancel(rec, err.Error())
	}

	filled := math.Abs(fill.Size) * fill.Price
	rec.FillPrice = &fill.Price
	rec.FillSize = &fill.Size
	rec.Notional = filled
	_ = rec.Transition(models.StatusFilled)
	r.guard.Commit(plan.Symbol, notional, filled)
	committed = true

	r.log.Info("order filled",
		applogger.Symbol(plan.Symbol),
		applogger.String("signal", string(plan.Signal)),
		applogger.Float64("size", fill.Size),
		applogger.Float64("price", fill.Price),
		applogger.Float64("cost", plan.EstimatedCost),
		applogger.String("style", string(plan.ExecutionStyle)),
	)
	return rec
}

// consume marks plan.ID as executed and reports false if it already was.
// Ids are forgotten oldest first once consumedCapacity is reached.
func (r *Router) consume(ctx context.Context, plan models.ExecutionPlan) bool {
	fresh, err := r.consumed.SetNX(ctx, cache.GenerateKeyWithParams("plan", plan.ID), plan.Symbol, 0)
	return err != nil || fresh
}

// Close releases the consumed-plan set.
func (r *Router) Close() error {
	return r.consumed.Close()
}

func (r *Router) cancel(rec models.ExecutionRecord, reason string) models.ExecutionRecord {
	rec.BlockReason = reason
	rec.FillPrice = nil
	rec.FillSize = nil
	_ = rec.Transition(models.StatusCancelled)
	return rec
}

// publish ships the record downstream. Failures are logged and never change
// the outcome.
func (r *Router) publish(ctx context.Context, rec models.ExecutionRecord) {
	pctx := context.WithoutCancel(ctx)
	if r.publishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, r.publishTimeout)
		defer cancel()
	}
	if err := r.pub.Publish(pctx, rec); err != nil {
		r.metrics.RecordError("publish_record")
		r.log.Warn("execution record publish failed",
			applogger.String("record_id", rec.ID),
			applogger.Symbol(rec.Plan.Symbol),
			applogger.Error(err),
		)
	}
}

// symbolLocks hands out one mutex per symbol. Entries are never removed; the
// symbol universe is small.
type symbolLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{m: make(map[string]*sync.Mutex)}
}

func (l *symbolLocks) lock(symbol string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.m[symbol]
	if !ok {
		m = &sync.Mutex{}
		l.m[symbol] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
