package models

import "time"

// VolatilityForecast carries two independent sigma estimates for a horizon.
// Both sigmas are always strictly positive.
type VolatilityForecast struct {
	Symbol         string    `json:"symbol"`
	HorizonMinutes int       `json:"horizon_minutes"`
	SigmaHAR       float64   `json:"sigma_har"`
	SigmaGARCH     float64   `json:"sigma_garch"`
	Confidence     float64   `json:"confidence"`
	Fallback       bool      `json:"fallback"`
	Observations   int       `json:"observations"`
	Timestamp      time.Time `json:"timestamp"`
}

// UncertaintyWidth is the wider of the two estimates.
func (f VolatilityForecast) UncertaintyWidth() float64 {
	if f.SigmaHAR > f.SigmaGARCH {
		return f.SigmaHAR
	}
	return f.SigmaGARCH
}

// MicrostructureSnapshot is the latest liquidity picture for a symbol.
type MicrostructureSnapshot struct {
	Symbol     string    `json:"symbol"`
	SpreadBps  float64   `json:"spread_bps"`
	OBI        float64   `json:"obi"`
	MicroVol   float64   `json:"micro_vol"`
	MidPrice   float64   `json:"mid_price,omitempty"`
	DepthUSD   float64   `json:"depth_usd,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Candle represents an OHLCV bar used for volatility estimation.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
