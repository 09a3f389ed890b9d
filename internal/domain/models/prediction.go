package models

import "time"

// Action is the predicted next move for a symbol.
type Action string

const (
	ActionBuy      Action = "buy"
	ActionSell     Action = "sell"
	ActionLeanBuy  Action = "lean_buy"
	ActionLeanSell Action = "lean_sell"
	ActionWait     Action = "wait"
)

// Validators are the four independent sub-scores that feed a prediction,
// kept on the published record for explainability.
type Validators struct {
	RecentActivity    float64 `json:"recent_activity"`
	HistoricalSuccess float64 `json:"historical_success"`
	MarketContext     float64 `json:"market_context"`
	ShapeHistory      float64 `json:"shape_history"`
}

// BehaviorPrediction is published once per classification consumed.
// It is never persisted.
type BehaviorPrediction struct {
	Symbol         string     `json:"symbol"`
	Action         Action     `json:"action"`
	Confidence     float64    `json:"confidence"`
	HorizonMinutes int        `json:"horizon_minutes"`
	Validators     Validators `json:"validators"`
	Coherence      float64    `json:"coherence"`
	Lambda         float64    `json:"lambda"`
	PredictedAt    time.Time  `json:"predicted_at"`
}

func (p *BehaviorPrediction) Key() string { return p.Symbol }
