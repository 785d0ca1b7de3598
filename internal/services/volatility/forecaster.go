package volatility

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"ExecCore/internal/domain/models"
	drepo "ExecCore/internal/domain/repository"
	domsvc "ExecCore/internal/domain/service"
	"ExecCore/internal/services/features"
	"ExecCore/pkg/cache"
	"ExecCore/pkg/config"
	applogger "ExecCore/pkg/logger"
)

const (
	cachePrefix = "vol"

	maxConfidence      = 0.95
	majorFallbackConf  = 0.3
	altFallbackConf    = 0.2
	garchFallbackRatio = 1.1
	minutesPerDay      = 1440
)

// Forecaster estimates short-horizon volatility from historical bars with a
// HAR-RV blend and a GARCH(1,1) recursion. It never returns an error: missing
// or degenerate history degrades to a symbol-class fallback.
type Forecaster struct {
	bars    drepo.BarStore
	cache   cache.Service
	log     *applogger.Logger
	metrics drepo.Metrics

	tf         drepo.Timeframe
	nBars      int
	minReturns int
	windows    [3]int
	weights    [3]float64
	omega      float64
	alpha      float64
	beta       float64
	ttl        time.Duration
	majors     []string
	majorVol   float64
	altVol     float64
	now        func() time.Time
}

func NewForecaster(bars drepo.BarStore, c cache.Service, cfg *config.Config, log *applogger.Logger, m drepo.Metrics) *Forecaster {
	v := cfg.Volatility
	f := &Forecaster{
		bars:       bars,
		cache:      c,
		log:        log,
		metrics:    m,
		tf:         drepo.NormalizeTimeframe(v.Timeframe),
		nBars:      v.Bars,
		minReturns: v.MinReturns,
		windows:    [3]int{v.ShortWindow, v.MediumWindow, v.LongWindow},
		omega:      v.GARCHOmega,
		alpha:      v.GARCHAlpha,
		beta:       v.GARCHBeta,
		ttl:        v.CacheTTL,
		majorVol:   v.MajorDailyVol,
		altVol:     v.AltDailyVol,
		now:        time.Now,
	}
	copy(f.weights[:], v.HARWeights)
	for _, s := range v.MajorSymbols {
		f.majors = append(f.majors, strings.ToUpper(s))
	}
	if f.minReturns < 2 {
		f.minReturns = 2
	}
	return f
}

// ForecastVol returns the cached forecast for (symbol, horizon) or computes a
// fresh one. Horizons below one minute are clamped to one.
func (f *Forecaster) ForecastVol(ctx context.Context, symbol string, horizonMinutes int) (models.VolatilityForecast, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if horizonMinutes < 1 {
		horizonMinutes = 1
	}

	if cached := f.GetForecast(ctx, sym, horizonMinutes); cached != nil {
		f.metrics.RecordForecast("cache")
		return *cached, nil
	}

	start := time.Now()
	fc := f.compute(ctx, sym, horizonMinutes)
	f.metrics.RecordLatency("forecast_vol", time.Since(start).Seconds())
	if fc.Fallback {
		f.metrics.RecordForecast("fallback")
	} else {
		f.metrics.RecordForecast("model")
	}

	if err := f.cache.Set(ctx, cacheKey(sym, horizonMinutes), fc, f.ttl); err != nil {
		f.log.Warn("vol cache write failed", applogger.Symbol(sym), applogger.Error(err))
	}
	return fc, nil
}

// GetForecast returns the cached forecast or nil.
func (f *Forecaster) GetForecast(ctx context.Context, symbol string, horizonMinutes int) *models.VolatilityForecast {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if horizonMinutes < 1 {
		horizonMinutes = 1
	}
	var fc models.VolatilityForecast
	err := f.cache.Get(ctx, cacheKey(sym, horizonMinutes), &fc)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			f.log.Warn("vol cache read failed", applogger.Symbol(sym), applogger.Error(err))
		}
		return nil
	}
	return &fc
}

// ClearCache evicts every cached horizon for symbol.
func (f *Forecaster) ClearCache(ctx context.Context, symbol string) error {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	return f.cache.DeleteByPattern(ctx, cache.BuildPattern(cache.GenerateKeyWithParams(cachePrefix, cache.EscapePattern(sym))+":"))
}

func (f *Forecaster) compute(ctx context.Context, sym string, h int) models.VolatilityForecast {
	candles, err := f.bars.GetLatestNCandles(ctx, sym, f.nBars, f.tf)
	if err != nil {
		f.log.Warn("bar history unavailable, using fallback vol", applogger.Symbol(sym), applogger.Error(err))
		return f.fallback(sym, h, 0)
	}
	returns := features.ComputeLogReturns(candles)
	if len(returns) < f.minReturns {
		f.log.Warn("insufficient history, using fallback vol",
			applogger.Symbol(sym),
			applogger.Int("returns", len(returns)),
			applogger.Int("required", f.minReturns),
		)
		return f.fallback(sym, h, len(returns))
	}

	scale := features.HorizonScale(h, f.tf.Minutes())
	sigmaHAR := math.Sqrt(f.harVariance(returns)) * scale
	sigmaGARCH := math.Sqrt(f.garchVariance(returns)) * scale
	if !usable(sigmaHAR) || !usable(sigmaGARCH) {
		f.log.Warn("degenerate vol estimate, using fallback vol",
			applogger.Symbol(sym),
			applogger.Float64("sigma_har", sigmaHAR),
			applogger.Float64("sigma_garch", sigmaGARCH),
		)
		return f.fallback(sym, h, len(returns))
	}

	return models.VolatilityForecast{
		Symbol:         sym,
		HorizonMinutes: h,
		SigmaHAR:       sigmaHAR,
		SigmaGARCH:     sigmaGARCH,
		Confidence:     f.confidence(len(returns), sigmaHAR, sigmaGARCH),
		Observations:   len(returns),
		Timestamp:      f.now().UTC(),
	}
}

// harVariance blends short, medium and long realized variance per bar. Windows
// longer than the available history shrink to it.
func (f *Forecaster) harVariance(returns []float64) float64 {
	v := 0.0
	for i, w := range f.windows {
		if w > len(returns) {
			w = len(returns)
		}
		v += f.weights[i] * features.RealizedVariance(returns, w)
	}
	return v
}

// garchVariance runs the GARCH(1,1) recursion seeded at the sample variance and
// returns the one-step-ahead conditional variance. A zero omega means variance
// targeting.
func (f *Forecaster) garchVariance(returns []float64) float64 {
	uncond := features.SampleVariance(returns)
	omega := f.omega
	if omega <= 0 {
		omega = (1 - f.alpha - f.beta) * uncond
	}
	s2 := uncond
	for _, r := range returns {
		s2 = omega + f.alpha*r*r + f.beta*s2
	}
	return s2
}

// confidence grows with history coverage and shrinks when the two models
// disagree. Model-based forecasts sit in [0.5, 0.95].
func (f *Forecaster) confidence(n int, har, garch float64) float64 {
	coverage := math.Min(1, float64(n)/float64(f.windows[2]))
	disagreement := math.Abs(har-garch) / math.Max(har, garch)
	c := 0.5 + 0.45*coverage*(1-disagreement)
	return math.Min(maxConfidence, math.Max(0.5, c))
}

func (f *Forecaster) fallback(sym string, h int, n int) models.VolatilityForecast {
	daily, conf := f.altVol, altFallbackConf
	if f.isMajor(sym) {
		daily, conf = f.majorVol, majorFallbackConf
	}
	if !usable(daily) {
		daily = 0.05
	}
	sigma := daily * math.Sqrt(float64(h)/minutesPerDay)
	return models.VolatilityForecast{
		Symbol:         sym,
		HorizonMinutes: h,
		SigmaHAR:       sigma,
		SigmaGARCH:     sigma * garchFallbackRatio,
		Confidence:     conf,
		Fallback:       true,
		Observations:   n,
		Timestamp:      f.now().UTC(),
	}
}

func (f *Forecaster) isMajor(sym string) bool {
	for _, m := range f.majors {
		if strings.HasPrefix(sym, m) {
			return true
		}
	}
	return false
}

func cacheKey(sym string, h int) string {
	return cache.GenerateKeyWithParams(cachePrefix, sym, h)
}

func usable(x float64) bool {
	return x > 0 && !math.IsNaN(x) && !math.IsInf(x, 0)
}

var _ domsvc.VolatilityForecaster = (*Forecaster)(nil)
