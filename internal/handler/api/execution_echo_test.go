package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ExecCore/internal/domain/models"
	drepo "ExecCore/internal/domain/repository"
	"ExecCore/internal/repository"
	"ExecCore/internal/service/riskguard"
	"ExecCore/internal/services/analytics"
	"ExecCore/internal/services/execution"
	"ExecCore/internal/services/microstructure"
	"ExecCore/internal/services/pricing"
	"ExecCore/internal/services/volatility"
	"ExecCore/internal/usecase"
	"ExecCore/pkg/cache"
	"ExecCore/pkg/config"
	xhttp "ExecCore/pkg/http"
	applogger "ExecCore/pkg/logger"
	"ExecCore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv   *xhttp.Server
	guard *riskguard.Guard
	cache *cache.MemoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	log := applogger.Nop()
	m := metrics.New(prometheus.NewRegistry())

	bars := repository.NewMemoryBarStore(drepo.TF1m, 100)
	bars.Append("BTCUSDT", models.Candle{Bucket: time.Now().UTC().Truncate(time.Minute), Symbol: "BTCUSDT", Open: 100, High: 100, Low: 100, Close: 100})
	feed := microstructure.NewFeed(time.Minute)
	mc := cache.NewMemoryCache()
	guard := riskguard.New(cfg.RiskGuard.SymbolCap)
	sizing := repository.NewSizingSlot()
	prices := pricing.NewReferencePrice(bars, drepo.TF1m, feed, log)
	vol := volatility.NewForecaster(bars, mc, cfg, log, m)

	planner := usecase.NewPlanner(analytics.NewStaticPolicyChooser("momentum_long"), vol, feed, prices, sizing, m, log, cfg)
	router := usecase.NewRouter(guard, execution.NewPaperAdapter(0.8, 1.0, 7), prices, repository.NewRingLedger(10), repository.NoopPublisher{}, m, log, cfg)
	uc := usecase.NewExecutionUseCase(planner, router, sizing)

	h := NewExecutionEchoHandler(log, uc, vol, guard, nil)
	return &fixture{srv: xhttp.NewServer(log, []xhttp.Handler{h}), guard: guard, cache: mc}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func data[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Status int `json:"status"`
		Data   T   `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func TestSizingLastIs404BeforeAnyPlan(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/sizing/last", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestSimulateHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/simulate", `{"symbol":"btcusdt","size":0.1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := data[models.ExecutionPlan](t, rec)
	assert.Equal(t, models.SignalLong, plan.Signal)
	assert.Greater(t, plan.TargetSize, 0.0)
	assert.LessOrEqual(t, plan.TargetSize, 0.1)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/sizing/last", "").Code)
	hist := data[xhttp.ListData](t, f.do(http.MethodGet, "/api/history", ""))
	assert.EqualValues(t, 0, hist.Total)
	assert.Empty(t, f.guard.GetState().Symbols)
}

func TestSimulateValidation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/simulate", `{"symbol":"BTCUSDT","size":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"size"`)
}

func TestPlanAndExecuteFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/plan-and-execute", `{"symbol":"BTCUSDT","max_size":0.1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := data[models.ExecutionRecord](t, rec)
	assert.Equal(t, models.StatusFilled, out.Status)
	require.NotNil(t, out.FillSize)

	snap := data[models.SizingSnapshot](t, f.do(http.MethodGet, "/api/sizing/last", ""))
	assert.Equal(t, out.Plan.ID, snap.PlanID)

	got := data[models.ExecutionRecord](t, f.do(http.MethodGet, "/api/history/"+out.ID, ""))
	assert.Equal(t, out.ID, got.ID)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/history/nope", "").Code)

	state := data[models.RiskGuardState](t, f.do(http.MethodGet, "/api/risk/state", ""))
	assert.Greater(t, state.Symbols["BTCUSDT"].Notional, 0.0)

	reset := data[models.RiskGuardState](t, f.do(http.MethodPost, "/api/risk/reset", ""))
	assert.Empty(t, reset.Symbols)
}

func TestPlanAndExecuteWithoutPriceCancels(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/plan-and-execute", `{"symbol":"DOGEUSDT","max_size":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := data[models.ExecutionRecord](t, rec)
	assert.Equal(t, models.StatusCancelled, out.Status)
	assert.Equal(t, models.ReasonNoReferencePrice, out.BlockReason)
}

func TestHistoryLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.do(http.MethodPost, "/api/plan-and-execute", `{"symbol":"BTCUSDT","max_size":0.01}`)
	}
	hist := data[xhttp.ListData](t, f.do(http.MethodGet, "/api/history?limit=2", ""))
	assert.EqualValues(t, 2, hist.Total)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/history?limit=5000", "").Code)
}

func TestVolEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/vol?symbol=ethusdt&horizon=60", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fc := data[models.VolatilityForecast](t, rec)
	assert.Equal(t, "ETHUSDT", fc.Symbol)
	assert.Greater(t, fc.SigmaHAR, 0.0)
	assert.Less(t, fc.Confidence, 0.5)
	assert.Equal(t, 1, f.cache.Len())

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/vol/cache?symbol=ETHUSDT", "").Code)
	assert.Equal(t, 0, f.cache.Len())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/vol", "").Code)
}
