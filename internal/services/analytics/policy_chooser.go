package analytics

import (
	"context"
	"fmt"
	"time"

	"ExecCore/internal/domain/models"
	domsvc "ExecCore/internal/domain/service"
)

// HTTPPolicyChooser asks the upstream strategy router which policy to run.
type HTTPPolicyChooser struct {
	base    *HTTPServiceBase
	retries int
}

func NewHTTPPolicyChooser(baseURL string, timeout time.Duration, retries int) *HTTPPolicyChooser {
	return &HTTPPolicyChooser{base: NewHTTPServiceBase(baseURL, timeout), retries: retries}
}

type policyResponse struct {
	PolicyID         string  `json:"policy_id"`
	Score            float64 `json:"score"`
	ExplorationBonus float64 `json:"exploration_bonus"`
}

func (p *HTTPPolicyChooser) ChoosePolicy(ctx context.Context, pctx models.PlanContext) (models.PolicyChoice, error) {
	var pr policyResponse
	if err := p.base.PostJSONWithRetry(ctx, "/policy/choose", pctx, &pr, p.retries); err != nil {
		return models.PolicyChoice{}, fmt.Errorf("choose policy: %w", err)
	}
	return models.PolicyChoice{
		PolicyID:         pr.PolicyID,
		Score:            pr.Score,
		ExplorationBonus: pr.ExplorationBonus,
	}, nil
}

// StaticPolicyChooser always returns the configured policy. Paper mode runs
// on it when no upstream router is configured.
type StaticPolicyChooser struct {
	policy string
	score  float64
}

func NewStaticPolicyChooser(policy string) *StaticPolicyChooser {
	return &StaticPolicyChooser{policy: policy, score: 1}
}

func (s *StaticPolicyChooser) ChoosePolicy(context.Context, models.PlanContext) (models.PolicyChoice, error) {
	return models.PolicyChoice{PolicyID: s.policy, Score: s.score}, nil
}

var (
	_ domsvc.PolicyChooser = (*HTTPPolicyChooser)(nil)
	_ domsvc.PolicyChooser = (*StaticPolicyChooser)(nil)
)
