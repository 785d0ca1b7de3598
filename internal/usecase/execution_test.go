package usecase

import (
	"context"
	"sync/atomic"
	"testing"

	"ExecCore/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUseCase(t *testing.T, symbolCap float64) (*ExecutionUseCase, *plannerDeps, *routerDeps) {
	t.Helper()
	pd := newPlannerDeps()
	pd.prices.price = 100_000
	rd := newRouterDeps(symbolCap)
	uc := NewExecutionUseCase(pd.planner(testConfig()), rd.router(t), pd.sizing)
	return uc, pd, rd
}

func TestSimulateIsSideEffectFree(t *testing.T) {
	uc, _, rd := newTestUseCase(t, 10_000)
	req := models.SimulateRequest{Symbol: "BTCUSDT", Size: 0.1, TargetVol: 0.02, HorizonMinutes: 60}

	first := uc.Simulate(context.Background(), req)
	for i := 0; i < 5; i++ {
		again := uc.Simulate(context.Background(), req)
		assert.Equal(t, first.TargetSize, again.TargetSize)
		assert.Equal(t, first.ExecutionStyle, again.ExecutionStyle)
		assert.Equal(t, first.EstimatedCost, again.EstimatedCost)
	}

	assert.Greater(t, first.TargetSize, 0.0)
	_, ok := uc.LastSizing()
	assert.False(t, ok)
	assert.Empty(t, uc.History(0))
	assert.Empty(t, rd.guard.GetState().Symbols)
	assert.Zero(t, atomic.LoadInt32(&rd.adapter.calls))
}

func TestPlanAndExecuteEndToEnd(t *testing.T) {
	uc, _, rd := newTestUseCase(t, 10_000)

	rec := uc.PlanAndExecute(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 0.1, TargetVol: 0.02})

	require.Equal(t, models.StatusFilled, rec.Status)
	assert.Greater(t, *rec.FillSize, 0.0)
	assert.Equal(t, 100_000.0, rec.Plan.ReferencePrice)

	snap, ok := uc.LastSizing()
	require.True(t, ok)
	assert.Equal(t, rec.Plan.ID, snap.PlanID)

	got, ok := uc.Record(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)
	assert.Len(t, uc.History(10), 1)
	assert.Equal(t, 1, rd.pub.count())
}

func TestPlanAndExecuteFlatPolicyCancels(t *testing.T) {
	uc, pd, rd := newTestUseCase(t, 10_000)
	pd.chooser.choice.PolicyID = "risk_off"

	rec := uc.PlanAndExecute(context.Background(), models.PlanContext{Symbol: "BTCUSDT", MaxSize: 1})

	assert.Equal(t, models.StatusCancelled, rec.Status)
	assert.Equal(t, models.ReasonZeroSize, rec.BlockReason)
	assert.Zero(t, atomic.LoadInt32(&rd.adapter.calls))
}
