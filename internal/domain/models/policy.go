package models

// PolicyID names a strategy the upstream policy router can pick.
type PolicyID string

const (
	PolicyMomentumLong    PolicyID = "momentum_long"
	PolicyBreakoutLong    PolicyID = "breakout_long"
	PolicyMeanRevertLong  PolicyID = "mean_revert_long"
	PolicyMomentumShort   PolicyID = "momentum_short"
	PolicyBreakdownShort  PolicyID = "breakdown_short"
	PolicyMeanRevertShort PolicyID = "mean_revert_short"
	PolicyHold            PolicyID = "hold"
	PolicyRiskOff         PolicyID = "risk_off"
)

// KnownPolicies lists every policy with an explicit mapping.
var KnownPolicies = []PolicyID{
	PolicyMomentumLong, PolicyBreakoutLong, PolicyMeanRevertLong,
	PolicyMomentumShort, PolicyBreakdownShort, PolicyMeanRevertShort,
	PolicyHold, PolicyRiskOff,
}

// SignalForPolicy maps a policy to its trade direction. Unknown ids are flat.
func SignalForPolicy(p PolicyID) Signal {
	switch p {
	case PolicyMomentumLong, PolicyBreakoutLong, PolicyMeanRevertLong:
		return SignalLong
	case PolicyMomentumShort, PolicyBreakdownShort, PolicyMeanRevertShort:
		return SignalShort
	case PolicyHold, PolicyRiskOff:
		return SignalFlat
	default:
		return SignalFlat
	}
}

// PolicyChoice is the upstream router's pick.
type PolicyChoice struct {
	PolicyID         string  `json:"policy_id"`
	Score            float64 `json:"score"`
	ExplorationBonus float64 `json:"exploration_bonus"`
}

// PlanContext is everything a caller supplies to plan a trade. Fields beyond
// sizing inputs are passed through to the policy chooser.
type PlanContext struct {
	Symbol         string             `json:"symbol"`
	MaxSize        float64            `json:"max_size"`
	TargetVol      float64            `json:"target_vol,omitempty"`
	RiskBudget     float64            `json:"risk_budget,omitempty"`
	HorizonMinutes int                `json:"horizon_minutes,omitempty"`
	Regime         string             `json:"regime,omitempty"`
	Sentiment      float64            `json:"sentiment,omitempty"`
	Features       map[string]float64 `json:"features,omitempty"`
}
