package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
)

// MemoryBarStore keeps the most recent bars per symbol at a base timeframe and
// resamples on read. It is fed by Observe (price ticks) or Append (whole bars).
type MemoryBarStore struct {
	mu      sync.RWMutex
	bars    map[string][]models.Candle
	base    domrepo.Timeframe
	maxBars int
}

func NewMemoryBarStore(base domrepo.Timeframe, maxBars int) *MemoryBarStore {
	if maxBars <= 0 {
		maxBars = 1441
	}
	return &MemoryBarStore{
		bars:    make(map[string][]models.Candle),
		base:    base,
		maxBars: maxBars,
	}
}

// Observe folds a price tick into the current bar.
func (s *MemoryBarStore) Observe(symbol string, price, volume float64, at time.Time) {
	if price <= 0 {
		return
	}
	sym := strings.ToUpper(symbol)
	bucket := at.UTC().Truncate(s.base.Duration())

	s.mu.Lock()
	defer s.mu.Unlock()

	bs := s.bars[sym]
	if n := len(bs); n > 0 {
		last := &bs[n-1]
		if last.Bucket.Equal(bucket) {
			last.High = max(last.High, price)
			last.Low = min(last.Low, price)
			last.Close = price
			last.Volume += volume
			return
		}
		if bucket.Before(last.Bucket) {
			return
		}
	}
	s.bars[sym] = s.trim(append(bs, models.Candle{
		Bucket: bucket, Symbol: sym,
		Open: price, High: price, Low: price, Close: price, Volume: volume,
	}))
}

// Append adds completed bars in ascending order.
func (s *MemoryBarStore) Append(symbol string, candles ...models.Candle) {
	sym := strings.ToUpper(symbol)
	s.mu.Lock()
	s.bars[sym] = s.trim(append(s.bars[sym], candles...))
	s.mu.Unlock()
}

func (s *MemoryBarStore) GetLatestNCandles(_ context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.RLock()
	src := s.bars[strings.ToUpper(symbol)]
	out := make([]models.Candle, len(src))
	copy(out, src)
	s.mu.RUnlock()

	if tf != s.base && tf.Duration() > s.base.Duration() {
		out = resample(out, tf.Duration())
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (s *MemoryBarStore) trim(bs []models.Candle) []models.Candle {
	if len(bs) <= s.maxBars {
		return bs
	}
	return append(bs[:0:0], bs[len(bs)-s.maxBars:]...)
}

// resample merges ascending bars into buckets of width d.
func resample(in []models.Candle, d time.Duration) []models.Candle {
	out := make([]models.Candle, 0, len(in))
	for _, c := range in {
		b := c.Bucket.Truncate(d)
		if n := len(out); n > 0 && out[n-1].Bucket.Equal(b) {
			last := &out[n-1]
			last.High = max(last.High, c.High)
			last.Low = min(last.Low, c.Low)
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		c.Bucket = b
		out = append(out, c)
	}
	return out
}

var _ domrepo.BarStore = (*MemoryBarStore)(nil)
