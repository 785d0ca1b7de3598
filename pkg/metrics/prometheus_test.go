package metrics

import (
	"testing"

	"ExecCore/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordPlan(models.SignalLong, models.StyleTWAP)
	r.RecordPlan(models.SignalLong, models.StyleTWAP)
	r.RecordGuardDenial(models.ReasonSymbolCapExceeded)
	r.RecordForecast("fallback")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.plans.WithLabelValues("long", "twap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.denials.WithLabelValues(models.ReasonSymbolCapExceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecasts.WithLabelValues("fallback")))
}

func TestRecordExecutionCollapsesFreeText(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordExecution(models.StatusCancelled, "dial tcp 10.0.0.1: connection refused")
	r.RecordExecution(models.StatusCancelled, "panic: boom")
	r.RecordExecution(models.StatusBlocked, models.ReasonGlobalCapExceeded)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.executions.WithLabelValues("cancelled", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.executions.WithLabelValues("blocked", models.ReasonGlobalCapExceeded)))
}

func TestNewOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
