package models

import (
	"fmt"
	"time"
)

// Signal is the trade direction a policy maps to.
type Signal string

const (
	SignalLong  Signal = "long"
	SignalFlat  Signal = "flat"
	SignalShort Signal = "short"
)

// Sign returns +1, 0 or -1.
func (s Signal) Sign() float64 {
	switch s {
	case SignalLong:
		return 1
	case SignalShort:
		return -1
	default:
		return 0
	}
}

// ExecutionStyle is how the order is worked once it reaches a venue.
type ExecutionStyle string

const (
	StyleImmediate ExecutionStyle = "immediate"
	StyleTWAP      ExecutionStyle = "twap"
	StyleVWAP      ExecutionStyle = "vwap"
	StylePOV       ExecutionStyle = "pov"
)

// ExecutionPlan is the sized, styled and costed intent for one order. It is
// built by the planner and consumed once by the router.
type ExecutionPlan struct {
	ID             string         `json:"id"`
	Symbol         string         `json:"symbol"`
	PolicyID       string         `json:"policy_id,omitempty"`
	Signal         Signal         `json:"signal"`
	TargetSize     float64        `json:"target_size"`
	ExecutionStyle ExecutionStyle `json:"execution_style"`
	Urgency        float64        `json:"urgency"`
	EstimatedCost  float64        `json:"estimated_cost"`
	RiskBudget     float64        `json:"risk_budget"`
	ReferencePrice float64        `json:"reference_price,omitempty"`
	Fallback       bool           `json:"fallback,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// IsNoTrade reports whether the plan carries no size.
func (p ExecutionPlan) IsNoTrade() bool {
	return p.Signal == SignalFlat || p.TargetSize == 0
}

// RecordStatus is the lifecycle state of an ExecutionRecord.
type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusFilled    RecordStatus = "filled"
	StatusCancelled RecordStatus = "cancelled"
	StatusBlocked   RecordStatus = "blocked"
)

// Terminal reports whether no further transition is allowed.
func (s RecordStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusBlocked
}

// ExecutionRecord is the router's outcome for one plan.
type ExecutionRecord struct {
	ID          string        `json:"id"`
	Plan        ExecutionPlan `json:"plan"`
	Status      RecordStatus  `json:"status"`
	Notional    float64       `json:"notional,omitempty"`
	FillPrice   *float64      `json:"fill_price,omitempty"`
	FillSize    *float64      `json:"fill_size,omitempty"`
	BlockReason string        `json:"block_reason,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Transition moves the record to next. Terminal states never move again.
func (r *ExecutionRecord) Transition(next RecordStatus) error {
	if r.Status.Terminal() {
		return fmt.Errorf("record %s: %s -> %s: already terminal", r.ID, r.Status, next)
	}
	if next == StatusPending && r.Status != "" {
		return fmt.Errorf("record %s: cannot regress to pending", r.ID)
	}
	r.Status = next
	return nil
}

// Fill is what an execution adapter reports back.
type Fill struct {
	Price float64
	Size  float64
}

// SizingSnapshot captures the factors behind the latest sizing decision.
type SizingSnapshot struct {
	PlanID           string    `json:"plan_id"`
	Symbol           string    `json:"symbol"`
	BaseSize         float64   `json:"base_size"`
	UncertaintyWidth float64   `json:"uncertainty_width"`
	UncertaintyScale float64   `json:"uncertainty_scale"`
	VolTargetScale   float64   `json:"vol_target_scale"`
	MicroScale       float64   `json:"micro_scale"`
	FinalSize        float64   `json:"final_size"`
	Confidence       float64   `json:"confidence"`
	Timestamp        time.Time `json:"timestamp"`
}
