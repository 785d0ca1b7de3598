package execution

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"ExecCore/internal/domain/models"
	domsvc "ExecCore/internal/domain/service"
)

// MaxSlippageMultiple bounds paper slippage as a multiple of the plan's
// estimated cost.
const MaxSlippageMultiple = 1.5

// PaperAdapter simulates fills. Slippage is drawn uniformly in
// [0.5, 1.5) x plan.EstimatedCost and always moves the price against the
// order. The filled fraction is drawn uniformly in [minFill, maxFill].
type PaperAdapter struct {
	mu      sync.Mutex
	rng     *rand.Rand
	minFill float64
	maxFill float64
}

// NewPaperAdapter creates a simulator. A zero seed draws one from the clock.
func NewPaperAdapter(minFill, maxFill float64, seed int64) *PaperAdapter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if minFill <= 0 || minFill > 1 {
		minFill = 0.8
	}
	if maxFill < minFill || maxFill > 1 {
		maxFill = 1
	}
	return &PaperAdapter{
		rng:     rand.New(rand.NewSource(seed)),
		minFill: minFill,
		maxFill: maxFill,
	}
}

func (a *PaperAdapter) Submit(ctx context.Context, plan models.ExecutionPlan, refPrice float64) (models.Fill, error) {
	if err := ctx.Err(); err != nil {
		return models.Fill{}, err
	}
	if refPrice <= 0 || math.IsNaN(refPrice) || math.IsInf(refPrice, 0) {
		return models.Fill{}, fmt.Errorf("paper fill %s: invalid reference price %v", plan.Symbol, refPrice)
	}
	if plan.TargetSize == 0 {
		return models.Fill{}, fmt.Errorf("paper fill %s: zero size", plan.Symbol)
	}

	a.mu.Lock()
	u1, u2 := a.rng.Float64(), a.rng.Float64()
	a.mu.Unlock()

	slip := math.Max(0, plan.EstimatedCost) * (MaxSlippageMultiple - 1 + u1)
	ratio := a.minFill + u2*(a.maxFill-a.minFill)

	price := refPrice * (1 + slip)
	if plan.TargetSize < 0 {
		price = refPrice * (1 - slip)
	}
	return models.Fill{
		Price: price,
		Size:  plan.TargetSize * ratio,
	}, nil
}

var _ domsvc.ExecutionAdapter = (*PaperAdapter)(nil)
