package models

import "time"

// Guard deny reasons.
const (
	ReasonSymbolCapExceeded = "SYMBOL_CAP_EXCEEDED"
	ReasonGlobalCapExceeded = "GLOBAL_CAP_EXCEEDED"
	ReasonInvalidNotional   = "INVALID_NOTIONAL"
)

// Router cancel reasons.
const (
	ReasonZeroSize            = "ZERO_SIZE"
	ReasonPlanAlreadyExecuted = "PLAN_ALREADY_EXECUTED"
	ReasonNoReferencePrice    = "NO_REFERENCE_PRICE"
)

// GuardDecision is the result of a pre-trade check.
type GuardDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// SymbolExposure is the windowed notional already consumed for one symbol.
type SymbolExposure struct {
	Notional float64 `json:"notional"`
	Cap      float64 `json:"cap"`
	Orders   int     `json:"orders"`
}

// RiskGuardState is a point-in-time copy of the guard's counters.
type RiskGuardState struct {
	Symbols        map[string]SymbolExposure `json:"symbols"`
	GlobalNotional float64                   `json:"global_notional"`
	GlobalCap      float64                   `json:"global_cap"`
	DefaultCap     float64                   `json:"default_cap"`
	Window         time.Duration             `json:"window_ns"`
	AsOf           time.Time                 `json:"as_of"`
}
