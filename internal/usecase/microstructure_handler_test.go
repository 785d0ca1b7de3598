package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	domrepo "ExecCore/internal/domain/repository"
	"ExecCore/internal/repository"
	"ExecCore/internal/services/microstructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicrostructureFeedHandler(t *testing.T) {
	feed := microstructure.NewFeed(time.Hour)
	bars := repository.NewMemoryBarStore(domrepo.TF1m, 100)
	h := NewMicrostructureFeedHandler("market.microstructure", feed, bars, testMetrics())
	assert.Equal(t, "market.microstructure", h.Topic())

	ts := time.Now().UnixMilli()
	msg := fmt.Sprintf(`{"symbol":"btcusdt","spread_bps":3.5,"obi":-0.2,"micro_vol":0.001,"mid":64000.5,"ts":%d}`, ts)
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))

	snap, err := feed.GetSnapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3.5, snap.SpreadBps)
	assert.Equal(t, -0.2, snap.OBI)
	assert.Equal(t, 64000.5, snap.MidPrice)
	assert.Equal(t, ts, snap.CapturedAt.UnixMilli())

	candles, err := bars.GetLatestNCandles(context.Background(), "BTCUSDT", 10, domrepo.TF1m)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 64000.5, candles[0].Close)
}

func TestMicrostructureFeedHandlerSecondsTimestamp(t *testing.T) {
	feed := microstructure.NewFeed(time.Hour)
	h := NewMicrostructureFeedHandler("t", feed, nil, testMetrics())

	ts := time.Now().Unix()
	require.NoError(t, h.Handle(context.Background(), []byte(fmt.Sprintf(`{"symbol":"ETHUSDT","spread_bps":1,"ts":%d}`, ts))))

	snap, err := feed.GetSnapshot(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, ts, snap.CapturedAt.Unix())
}

func TestMicrostructureFeedHandlerRejectsBadInput(t *testing.T) {
	feed := microstructure.NewFeed(time.Hour)
	h := NewMicrostructureFeedHandler("t", feed, nil, testMetrics())

	assert.Error(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","obi":3}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"spread_bps":1}`)))
	assert.Empty(t, feed.Symbols())
}
