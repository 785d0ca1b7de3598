package usecase

import (
	"context"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
)

// ExecutionUseCase is the entry point the transport layer talks to.
type ExecutionUseCase struct {
	planner *Planner
	router  *Router
	sizing  domrepo.SizingStore
}

func NewExecutionUseCase(planner *Planner, router *Router, sizing domrepo.SizingStore) *ExecutionUseCase {
	return &ExecutionUseCase{planner: planner, router: router, sizing: sizing}
}

// Simulate projects the plan for size without sizing persistence, guard
// interaction or a ledger entry.
func (u *ExecutionUseCase) Simulate(ctx context.Context, req models.SimulateRequest) models.ExecutionPlan {
	return u.planner.Simulate(ctx, models.PlanContext{
		Symbol:         req.Symbol,
		MaxSize:        req.Size,
		TargetVol:      req.TargetVol,
		HorizonMinutes: req.HorizonMinutes,
	})
}

// PlanAndExecute plans a trade and routes the plan.
func (u *ExecutionUseCase) PlanAndExecute(ctx context.Context, pctx models.PlanContext) models.ExecutionRecord {
	plan := u.planner.Plan(ctx, pctx)
	return u.router.Execute(ctx, plan)
}

func (u *ExecutionUseCase) LastSizing() (models.SizingSnapshot, bool) {
	return u.sizing.Last()
}

func (u *ExecutionUseCase) History(limit int) []models.ExecutionRecord {
	return u.router.History(limit)
}

func (u *ExecutionUseCase) Record(id string) (models.ExecutionRecord, bool) {
	return u.router.Record(id)
}
