package repository

import (
	"context"

	"ExecCore/internal/domain/models"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
)

// BarStore provides read-only access to historical bars.
type BarStore interface {
	// GetLatestNCandles returns up to n bars in ascending time order.
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
