package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
	pkgkafka "ExecCore/pkg/kafka"
)

// SnapshotSink receives decoded microstructure snapshots.
type SnapshotSink interface {
	Update(models.MicrostructureSnapshot) error
}

// PriceObserver folds mid prices into bars.
type PriceObserver interface {
	Observe(symbol string, price, volume float64, at time.Time)
}

// MicrostructureFeedHandler consumes snapshot messages into the live feed and,
// when an observer is set, into the in-memory bar history.
type MicrostructureFeedHandler struct {
	topic   string
	sink    SnapshotSink
	bars    PriceObserver
	metrics domrepo.Metrics
}

func NewMicrostructureFeedHandler(topic string, sink SnapshotSink, bars PriceObserver, metrics domrepo.Metrics) *MicrostructureFeedHandler {
	return &MicrostructureFeedHandler{topic: topic, sink: sink, bars: bars, metrics: metrics}
}

func (h *MicrostructureFeedHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, spread_bps, obi, micro_vol, mid, depth_usd, ts}
// ts is unix seconds or milliseconds.
func (h *MicrostructureFeedHandler) Handle(_ context.Context, b []byte) error {
	var m struct {
		Symbol    string  `json:"symbol"`
		SpreadBps float64 `json:"spread_bps"`
		OBI       float64 `json:"obi"`
		MicroVol  float64 `json:"micro_vol"`
		Mid       float64 `json:"mid"`
		DepthUSD  float64 `json:"depth_usd"`
		TS        int64   `json:"ts"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode snapshot: %w", err)
	}

	at := time.Now().UTC()
	if m.TS > 0 {
		if m.TS > 1e11 { // ms
			at = time.UnixMilli(m.TS).UTC()
		} else {
			at = time.Unix(m.TS, 0).UTC()
		}
		h.metrics.RecordLatency("snapshot_lag", time.Since(at).Seconds())
	}

	snap := models.MicrostructureSnapshot{
		Symbol:     m.Symbol,
		SpreadBps:  m.SpreadBps,
		OBI:        m.OBI,
		MicroVol:   m.MicroVol,
		MidPrice:   m.Mid,
		DepthUSD:   m.DepthUSD,
		CapturedAt: at,
	}
	if err := h.sink.Update(snap); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return err
	}
	if h.bars != nil && m.Mid > 0 {
		h.bars.Observe(m.Symbol, m.Mid, 0, at)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*MicrostructureFeedHandler)(nil)
