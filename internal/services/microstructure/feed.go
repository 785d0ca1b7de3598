package microstructure

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"ExecCore/internal/domain/models"
	domsvc "ExecCore/internal/domain/service"
)

// Feed holds the latest snapshot per symbol as pushed by the market data
// pipeline. Snapshots older than maxStaleness read as absent.
type Feed struct {
	mu           sync.RWMutex
	snaps        map[string]models.MicrostructureSnapshot
	maxStaleness time.Duration
	now          func() time.Time
}

type Option func(*Feed)

func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

func NewFeed(maxStaleness time.Duration, opts ...Option) *Feed {
	f := &Feed{
		snaps:        make(map[string]models.MicrostructureSnapshot),
		maxStaleness: maxStaleness,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Update stores snap unless a newer one is already held.
func (f *Feed) Update(snap models.MicrostructureSnapshot) error {
	if err := validate(snap); err != nil {
		return err
	}
	snap.Symbol = strings.ToUpper(snap.Symbol)
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.snaps[snap.Symbol]; ok && cur.CapturedAt.After(snap.CapturedAt) {
		return nil
	}
	f.snaps[snap.Symbol] = snap
	return nil
}

// GetSnapshot returns the live snapshot, or nil when none is fresh.
func (f *Feed) GetSnapshot(_ context.Context, symbol string) (*models.MicrostructureSnapshot, error) {
	f.mu.RLock()
	snap, ok := f.snaps[strings.ToUpper(symbol)]
	f.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if f.maxStaleness > 0 && f.now().Sub(snap.CapturedAt) > f.maxStaleness {
		return nil, nil
	}
	return &snap, nil
}

// Symbols lists every symbol with a held snapshot, fresh or not.
func (f *Feed) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.snaps))
	for s := range f.snaps {
		out = append(out, s)
	}
	return out
}

func validate(s models.MicrostructureSnapshot) error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("snapshot: symbol required")
	}
	for name, v := range map[string]float64{"spread_bps": s.SpreadBps, "obi": s.OBI, "micro_vol": s.MicroVol, "mid_price": s.MidPrice} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("snapshot %s: %s not finite", s.Symbol, name)
		}
	}
	if s.SpreadBps < 0 || s.MicroVol < 0 || s.MidPrice < 0 {
		return fmt.Errorf("snapshot %s: negative spread, micro vol or mid price", s.Symbol)
	}
	if s.OBI < -1 || s.OBI > 1 {
		return fmt.Errorf("snapshot %s: obi %v outside [-1, 1]", s.Symbol, s.OBI)
	}
	return nil
}

var _ domsvc.MicrostructureProvider = (*Feed)(nil)
