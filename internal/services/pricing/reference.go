package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	drepo "ExecCore/internal/domain/repository"
	domsvc "ExecCore/internal/domain/service"
	"ExecCore/internal/services/features"
	applogger "ExecCore/pkg/logger"
)

var ErrNoReferencePrice = errors.New("no reference price")

// ReferencePrice resolves the price used to convert size to notional: the
// latest bar close, else the live microstructure mid.
type ReferencePrice struct {
	bars  drepo.BarStore
	tf    drepo.Timeframe
	micro domsvc.MicrostructureProvider
	log   *applogger.Logger
}

func NewReferencePrice(bars drepo.BarStore, tf drepo.Timeframe, micro domsvc.MicrostructureProvider, log *applogger.Logger) *ReferencePrice {
	return &ReferencePrice{bars: bars, tf: tf, micro: micro, log: log}
}

func (p *ReferencePrice) ReferencePrice(ctx context.Context, symbol string) (float64, error) {
	sym := strings.ToUpper(symbol)
	candles, err := p.bars.GetLatestNCandles(ctx, sym, 1, p.tf)
	if err != nil {
		p.log.Warn("bar close unavailable for reference price", applogger.Symbol(sym), applogger.Error(err))
	} else if px, ok := features.LastClose(candles); ok {
		return px, nil
	}

	snap, err := p.micro.GetSnapshot(ctx, sym)
	if err != nil {
		return 0, fmt.Errorf("reference price %s: %w", sym, err)
	}
	if snap != nil && snap.MidPrice > 0 {
		return snap.MidPrice, nil
	}
	return 0, fmt.Errorf("%s: %w", sym, ErrNoReferencePrice)
}

var _ domsvc.PriceSource = (*ReferencePrice)(nil)
