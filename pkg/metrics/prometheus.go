package metrics

import (
	"ExecCore/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	plans       *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	executions  *prometheus.CounterVec
	denials     *prometheus.CounterVec
	forecasts   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		plans: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execcore_plans_total",
				Help: "Execution plans produced, by signal and style",
			},
			[]string{"signal", "style"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execcore_planner_fallbacks_total",
				Help: "Plans replaced by the flat fail-safe plan",
			},
			[]string{"reason"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execcore_executions_total",
				Help: "Execution records by terminal status",
			},
			[]string{"status", "reason"},
		),
		denials: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execcore_guard_denials_total",
				Help: "Risk guard denials by reason code",
			},
			[]string{"reason"},
		),
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execcore_vol_forecasts_total",
				Help: "Volatility forecasts served, by source (model, fallback, cache)",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execcore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execcore_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordPlan(signal models.Signal, style models.ExecutionStyle) {
	r.plans.WithLabelValues(string(signal), string(style)).Inc()
}

func (r *Recorder) RecordPlannerFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordExecution counts a terminal record. Only reason codes go into the
// label, free-text error causes are collapsed to "error".
func (r *Recorder) RecordExecution(status models.RecordStatus, reason string) {
	r.executions.WithLabelValues(string(status), reasonLabel(reason)).Inc()
}

func (r *Recorder) RecordGuardDenial(reason string) {
	r.denials.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordForecast(source string) {
	r.forecasts.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func reasonLabel(reason string) string {
	switch reason {
	case "",
		models.ReasonSymbolCapExceeded,
		models.ReasonGlobalCapExceeded,
		models.ReasonInvalidNotional,
		models.ReasonZeroSize,
		models.ReasonPlanAlreadyExecuted,
		models.ReasonNoReferencePrice:
		return reason
	default:
		return "error"
	}
}
