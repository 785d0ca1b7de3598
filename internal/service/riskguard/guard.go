package riskguard

import (
	"math"
	"strings"
	"sync"
	"time"

	"ExecCore/internal/domain/models"

	"github.com/shopspring/decimal"
)

type fill struct {
	at       time.Time
	notional decimal.Decimal
}

// Guard caps the notional traded per symbol and across all symbols within a
// rolling window. CheckOrder is read-only.
//
// Reserve checks and holds headroom in one step, so concurrent orders on
// different symbols cannot overrun the global cap between check and fill.
// Every successful Reserve must be followed by Commit or Release.
type Guard struct {
	mu         sync.RWMutex
	fills      map[string][]fill
	held       map[string]decimal.Decimal
	defaultCap decimal.Decimal
	symbolCaps map[string]decimal.Decimal
	globalCap  decimal.Decimal
	window     time.Duration
	now        func() time.Time
}

type Option func(*Guard)

// WithSymbolCap overrides the cap for one symbol.
func WithSymbolCap(symbol string, limit float64) Option {
	return func(g *Guard) {
		g.symbolCaps[normalize(symbol)] = decimal.NewFromFloat(limit)
	}
}

// WithSymbolCaps applies a set of per-symbol overrides.
func WithSymbolCaps(caps map[string]float64) Option {
	return func(g *Guard) {
		for s, c := range caps {
			g.symbolCaps[normalize(s)] = decimal.NewFromFloat(c)
		}
	}
}

// WithGlobalCap bounds the summed notional across symbols. Zero disables it.
func WithGlobalCap(limit float64) Option {
	return func(g *Guard) { g.globalCap = decimal.NewFromFloat(limit) }
}

func WithWindow(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a guard with symbolCap applied to every symbol without an override.
func New(symbolCap float64, opts ...Option) *Guard {
	g := &Guard{
		fills:      make(map[string][]fill),
		held:       make(map[string]decimal.Decimal),
		defaultCap: decimal.NewFromFloat(symbolCap),
		symbolCaps: make(map[string]decimal.Decimal),
		window:     24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckOrder decides whether notional more can be traded for symbol now.
// Headroom held by open reservations counts as used.
func (g *Guard) CheckOrder(symbol string, notional float64) models.GuardDecision {
	if !validNotional(notional) {
		return models.GuardDecision{Allowed: false, Reason: models.ReasonInvalidNotional}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.decide(normalize(symbol), decimal.NewFromFloat(notional))
}

// Reserve is CheckOrder plus holding notional against both caps when allowed.
func (g *Guard) Reserve(symbol string, notional float64) models.GuardDecision {
	if !validNotional(notional) {
		return models.GuardDecision{Allowed: false, Reason: models.ReasonInvalidNotional}
	}
	sym := normalize(symbol)
	n := decimal.NewFromFloat(notional)

	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.decide(sym, n)
	if d.Allowed {
		g.held[sym] = g.held[sym].Add(n)
	}
	return d
}

// Commit drops a reservation and records the actual fill in its place.
func (g *Guard) Commit(symbol string, reserved, actual float64) {
	sym := normalize(symbol)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.unhold(sym, reserved)
	if validNotional(actual) {
		g.fills[sym] = append(prune(g.fills[sym], now.Add(-g.window)), fill{at: now, notional: decimal.NewFromFloat(actual)})
	}
}

// Release drops a reservation without recording anything.
func (g *Guard) Release(symbol string, reserved float64) {
	g.mu.Lock()
	g.unhold(normalize(symbol), reserved)
	g.mu.Unlock()
}

func (g *Guard) unhold(sym string, reserved float64) {
	if !validNotional(reserved) {
		return
	}
	left := g.held[sym].Sub(decimal.NewFromFloat(reserved))
	if left.IsPositive() {
		g.held[sym] = left
		return
	}
	delete(g.held, sym)
}

// decide must be called with g.mu held.
func (g *Guard) decide(sym string, n decimal.Decimal) models.GuardDecision {
	cutoff := g.now().Add(-g.window)
	used := sumSince(g.fills[sym], cutoff).Add(g.held[sym])
	if used.Add(n).GreaterThan(g.capFor(sym)) {
		return models.GuardDecision{Allowed: false, Reason: models.ReasonSymbolCapExceeded}
	}
	if g.globalCap.IsPositive() {
		total := decimal.Zero
		for _, fs := range g.fills {
			total = total.Add(sumSince(fs, cutoff))
		}
		for _, h := range g.held {
			total = total.Add(h)
		}
		if total.Add(n).GreaterThan(g.globalCap) {
			return models.GuardDecision{Allowed: false, Reason: models.ReasonGlobalCapExceeded}
		}
	}
	return models.GuardDecision{Allowed: true}
}

// RecordOrder accounts for a filled notional. Non-positive values are ignored.
func (g *Guard) RecordOrder(symbol string, notional float64) {
	if !validNotional(notional) {
		return
	}
	sym := normalize(symbol)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.fills[sym] = append(prune(g.fills[sym], now.Add(-g.window)), fill{at: now, notional: decimal.NewFromFloat(notional)})
}

// GetState returns a copy of the windowed counters.
func (g *Guard) GetState() models.RiskGuardState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := g.now()
	cutoff := now.Add(-g.window)
	st := models.RiskGuardState{
		Symbols:    make(map[string]models.SymbolExposure, len(g.fills)),
		GlobalCap:  g.globalCap.InexactFloat64(),
		DefaultCap: g.defaultCap.InexactFloat64(),
		Window:     g.window,
		AsOf:       now,
	}
	total := decimal.Zero
	for sym, fs := range g.fills {
		used := decimal.Zero
		orders := 0
		for _, f := range fs {
			if f.at.After(cutoff) {
				used = used.Add(f.notional)
				orders++
			}
		}
		if orders == 0 {
			continue
		}
		total = total.Add(used)
		st.Symbols[sym] = models.SymbolExposure{
			Notional: used.InexactFloat64(),
			Cap:      g.capFor(sym).InexactFloat64(),
			Orders:   orders,
		}
	}
	st.GlobalNotional = total.InexactFloat64()
	return st
}

// Reset clears every counter and open reservation. Caps are kept.
func (g *Guard) Reset() {
	g.mu.Lock()
	g.fills = make(map[string][]fill)
	g.held = make(map[string]decimal.Decimal)
	g.mu.Unlock()
}

func validNotional(n float64) bool {
	return n > 0 && !math.IsNaN(n) && !math.IsInf(n, 0)
}

func (g *Guard) capFor(sym string) decimal.Decimal {
	if c, ok := g.symbolCaps[sym]; ok {
		return c
	}
	return g.defaultCap
}

func sumSince(fs []fill, cutoff time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fs {
		if f.at.After(cutoff) {
			total = total.Add(f.notional)
		}
	}
	return total
}

// prune drops fills at or before cutoff. fs is in insertion order.
func prune(fs []fill, cutoff time.Time) []fill {
	i := 0
	for i < len(fs) && !fs[i].at.After(cutoff) {
		i++
	}
	if i == 0 {
		return fs
	}
	return append(fs[:0:0], fs[i:]...)
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
