package microstructure

import (
	"context"
	"math"
	"testing"
	"time"

	"ExecCore/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedReturnsNilWithoutData(t *testing.T) {
	f := NewFeed(time.Minute)
	snap, err := f.GetSnapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFeedUpdateAndStaleness(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeed(30*time.Second, WithClock(func() time.Time { return now }))

	require.NoError(t, f.Update(models.MicrostructureSnapshot{Symbol: "btcusdt", SpreadBps: 2, OBI: 0.1, CapturedAt: now}))
	snap, _ := f.GetSnapshot(context.Background(), "BTCUSDT")
	require.NotNil(t, snap)
	assert.Equal(t, 2.0, snap.SpreadBps)

	now = now.Add(31 * time.Second)
	snap, _ = f.GetSnapshot(context.Background(), "BTCUSDT")
	assert.Nil(t, snap)
}

func TestFeedKeepsNewest(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFeed(0, WithClock(func() time.Time { return t0 }))

	require.NoError(t, f.Update(models.MicrostructureSnapshot{Symbol: "ETHUSDT", SpreadBps: 3, CapturedAt: t0}))
	require.NoError(t, f.Update(models.MicrostructureSnapshot{Symbol: "ETHUSDT", SpreadBps: 9, CapturedAt: t0.Add(-time.Second)}))

	snap, _ := f.GetSnapshot(context.Background(), "ETHUSDT")
	require.NotNil(t, snap)
	assert.Equal(t, 3.0, snap.SpreadBps)
	assert.Equal(t, []string{"ETHUSDT"}, f.Symbols())
}

func TestFeedRejectsInvalid(t *testing.T) {
	f := NewFeed(time.Minute)
	bad := []models.MicrostructureSnapshot{
		{Symbol: ""},
		{Symbol: "X", SpreadBps: -1},
		{Symbol: "X", OBI: 1.5},
		{Symbol: "X", MicroVol: math.NaN()},
	}
	for _, s := range bad {
		assert.Error(t, f.Update(s))
	}
	assert.Empty(t, f.Symbols())
}
