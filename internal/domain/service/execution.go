package service

import (
	"context"

	"ExecCore/internal/domain/models"
)

// PolicyChooser is the upstream strategy router. Opaque to the core.
type PolicyChooser interface {
	ChoosePolicy(ctx context.Context, pctx models.PlanContext) (models.PolicyChoice, error)
}

// VolatilityForecaster produces short-horizon sigma estimates.
type VolatilityForecaster interface {
	ForecastVol(ctx context.Context, symbol string, horizonMinutes int) (models.VolatilityForecast, error)
}

// MicrostructureProvider returns the current snapshot, or nil when no live
// data exists.
type MicrostructureProvider interface {
	GetSnapshot(ctx context.Context, symbol string) (*models.MicrostructureSnapshot, error)
}

// PriceSource resolves the reference price used to turn size into notional.
type PriceSource interface {
	ReferencePrice(ctx context.Context, symbol string) (float64, error)
}

// RiskGuard is the pre-trade notional gate. CheckOrder never mutates.
type RiskGuard interface {
	CheckOrder(symbol string, notional float64) models.GuardDecision
	RecordOrder(symbol string, notional float64)
	// Reserve checks and holds notional atomically. An allowed reservation
	// must end in exactly one Commit or Release.
	Reserve(symbol string, notional float64) models.GuardDecision
	Commit(symbol string, reserved, actual float64)
	Release(symbol string, reserved float64)
	GetState() models.RiskGuardState
	Reset()
}

// ExecutionAdapter turns an approved plan into a fill. The paper adapter
// simulates; a venue adapter submits for real.
type ExecutionAdapter interface {
	Submit(ctx context.Context, plan models.ExecutionPlan, refPrice float64) (models.Fill, error)
}
