package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"ExecCore/internal/domain/models"
	drepo "ExecCore/internal/domain/repository"
	"ExecCore/internal/repository"
	"ExecCore/internal/services/microstructure"
	applogger "ExecCore/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBars struct{}

func (failingBars) GetLatestNCandles(context.Context, string, int, drepo.Timeframe) ([]models.Candle, error) {
	return nil, errors.New("clickhouse down")
}

func TestReferencePricePrefersBarClose(t *testing.T) {
	bars := repository.NewMemoryBarStore(drepo.TF1m, 10)
	bars.Observe("BTCUSDT", 64_000, 1, time.Now())
	feed := microstructure.NewFeed(time.Minute)
	require.NoError(t, feed.Update(models.MicrostructureSnapshot{Symbol: "BTCUSDT", MidPrice: 63_000}))

	p := NewReferencePrice(bars, drepo.TF1m, feed, applogger.Nop())
	px, err := p.ReferencePrice(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, 64_000.0, px)
}

func TestReferencePriceFallsBackToMid(t *testing.T) {
	feed := microstructure.NewFeed(time.Minute)
	require.NoError(t, feed.Update(models.MicrostructureSnapshot{Symbol: "ETHUSDT", MidPrice: 3_100}))

	p := NewReferencePrice(failingBars{}, drepo.TF1m, feed, applogger.Nop())
	px, err := p.ReferencePrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3_100.0, px)
}

func TestReferencePriceMissing(t *testing.T) {
	p := NewReferencePrice(repository.NewMemoryBarStore(drepo.TF1m, 10), drepo.TF1m, microstructure.NewFeed(time.Minute), applogger.Nop())
	_, err := p.ReferencePrice(context.Background(), "NEWCOIN")
	assert.ErrorIs(t, err, ErrNoReferencePrice)
}
