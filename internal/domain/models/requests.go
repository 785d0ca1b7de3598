package models

// Requests for execution HTTP endpoints. Defined in domain for consistency and reuse.

type SimulateRequest struct {
	Symbol         string  `json:"symbol" validate:"required,max=32"`
	Size           float64 `json:"size" validate:"gt=0"`
	TargetVol      float64 `json:"target_vol" validate:"gte=0,lte=5"`
	HorizonMinutes int     `json:"horizon_minutes" validate:"gte=0,lte=10080"`
}

type PlanExecuteRequest struct {
	Symbol         string             `json:"symbol" validate:"required,max=32"`
	MaxSize        float64            `json:"max_size" validate:"gt=0"`
	TargetVol      float64            `json:"target_vol" validate:"gte=0,lte=5"`
	RiskBudget     float64            `json:"risk_budget" validate:"gte=0,lte=1"`
	HorizonMinutes int                `json:"horizon_minutes" validate:"gte=0,lte=10080"`
	Regime         string             `json:"regime" validate:"max=32"`
	Sentiment      float64            `json:"sentiment" validate:"gte=-1,lte=1"`
	Features       map[string]float64 `json:"features"`
}

// Context converts the request into a planner context.
func (r PlanExecuteRequest) Context() PlanContext {
	return PlanContext{
		Symbol:         r.Symbol,
		MaxSize:        r.MaxSize,
		TargetVol:      r.TargetVol,
		RiskBudget:     r.RiskBudget,
		HorizonMinutes: r.HorizonMinutes,
		Regime:         r.Regime,
		Sentiment:      r.Sentiment,
		Features:       r.Features,
	}
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type VolRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Horizon int    `query:"horizon" json:"horizon" default:"60" validate:"gte=1,lte=10080"`
}

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
}
