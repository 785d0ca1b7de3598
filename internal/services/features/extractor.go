package features

import (
	"math"

	"ExecCore/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
// Bars with a non-positive close are skipped rather than producing a zero return.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		r := math.Log(cur / prev)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RealizedVariance is the mean squared return over the last window bars.
// Returns 0 when fewer than window returns are available.
func RealizedVariance(logReturns []float64, window int) float64 {
	if window <= 0 || len(logReturns) < window {
		return 0
	}
	sum2 := 0.0
	for _, r := range logReturns[len(logReturns)-window:] {
		sum2 += r * r
	}
	return sum2 / float64(window)
}

// SampleVariance is the unbiased variance of the full series.
func SampleVariance(logReturns []float64) float64 {
	n := len(logReturns)
	if n < 2 {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for _, r := range logReturns {
		sum += r
		sum2 += r * r
	}
	fn := float64(n)
	mean := sum / fn
	v := (sum2 - fn*mean*mean) / (fn - 1)
	if v < 0 {
		return 0
	}
	return v
}

// HorizonScale converts a per-bar sigma to a horizon sigma by square-root-of-time.
func HorizonScale(horizonMinutes int, barMinutes float64) float64 {
	if horizonMinutes < 1 {
		horizonMinutes = 1
	}
	if barMinutes <= 0 {
		barMinutes = 1
	}
	return math.Sqrt(float64(horizonMinutes) / barMinutes)
}

// LastClose returns the close of the most recent bar with a positive price.
func LastClose(candles []models.Candle) (float64, bool) {
	for i := len(candles) - 1; i >= 0; i-- {
		if candles[i].Close > 0 {
			return candles[i].Close, true
		}
	}
	return 0, false
}
