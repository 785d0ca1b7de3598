package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string) models.ExecutionRecord {
	return models.ExecutionRecord{ID: id, Status: models.StatusFilled}
}

func TestRingLedgerRecentNewestFirst(t *testing.T) {
	l := NewRingLedger(10)
	for i := 0; i < 4; i++ {
		l.Append(rec(fmt.Sprint(i)))
	}
	got := l.Recent(3)
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "1", got[2].ID)

	assert.Len(t, l.Recent(0), 4)
	assert.Len(t, l.Recent(100), 4)
}

func TestRingLedgerEvictsOldest(t *testing.T) {
	l := NewRingLedger(3)
	for i := 0; i < 5; i++ {
		l.Append(rec(fmt.Sprint(i)))
	}
	assert.Equal(t, 3, l.Len())

	_, ok := l.Get("1")
	assert.False(t, ok)
	r, ok := l.Get("4")
	require.True(t, ok)
	assert.Equal(t, "4", r.ID)

	ids := []string{}
	for _, r := range l.Recent(10) {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"4", "3", "2"}, ids)
}

func TestRingLedgerConcurrentAppend(t *testing.T) {
	l := NewRingLedger(1000)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Append(rec(fmt.Sprint(i)))
			_ = l.Recent(5)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, l.Len())
}

func TestSizingSlotLastWriterWins(t *testing.T) {
	s := NewSizingSlot()
	_, ok := s.Last()
	assert.False(t, ok)

	s.Store(models.SizingSnapshot{Symbol: "BTCUSDT", FinalSize: 1})
	s.Store(models.SizingSnapshot{Symbol: "ETHUSDT", FinalSize: 2})
	got, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", got.Symbol)
}

func TestMemoryBarStoreObserveAggregates(t *testing.T) {
	s := NewMemoryBarStore(domrepo.TF1m, 10)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Observe("btcusdt", 100, 1, t0)
	s.Observe("BTCUSDT", 105, 1, t0.Add(10*time.Second))
	s.Observe("BTCUSDT", 95, 1, t0.Add(20*time.Second))
	s.Observe("BTCUSDT", 101, 1, t0.Add(time.Minute))
	// late tick for a closed bar is ignored
	s.Observe("BTCUSDT", 500, 1, t0.Add(30*time.Second))

	bars, err := s.GetLatestNCandles(context.Background(), "BTCUSDT", 10, domrepo.TF1m)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 105.0, bars[0].High)
	assert.Equal(t, 95.0, bars[0].Low)
	assert.Equal(t, 95.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[0].Volume)
	assert.Equal(t, 101.0, bars[1].Close)
}

func TestMemoryBarStoreTrimAndResample(t *testing.T) {
	s := NewMemoryBarStore(domrepo.TF1m, 10)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		p := float64(100 + i)
		s.Append("ETHUSDT", models.Candle{Bucket: t0.Add(time.Duration(i) * time.Minute), Symbol: "ETHUSDT", Open: p, High: p, Low: p, Close: p, Volume: 1})
	}

	bars, _ := s.GetLatestNCandles(context.Background(), "ETHUSDT", 100, domrepo.TF1m)
	require.Len(t, bars, 10)
	assert.Equal(t, 102.0, bars[0].Close)

	last, _ := s.GetLatestNCandles(context.Background(), "ETHUSDT", 3, domrepo.TF1m)
	assert.Equal(t, 111.0, last[2].Close)

	five, _ := s.GetLatestNCandles(context.Background(), "ETHUSDT", 100, domrepo.TF5m)
	// minutes 2..11 fold into buckets [0,5) [5,10) [10,15)
	require.Len(t, five, 3)
	assert.Equal(t, 104.0, five[0].Close)
	assert.Equal(t, 3.0, five[0].Volume)
	assert.Equal(t, 5.0, five[1].Volume)
}

func TestBarSchema(t *testing.T) {
	stmts := BarSchema("execcore")
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[1], "execcore.candles_1m")
}
