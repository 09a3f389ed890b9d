package models

import (
	"math"
	"time"
)

// Subtype classifies the behavioral read of one orderbook analysis.
type Subtype string

const (
	SubtypeAccumulation Subtype = "accumulation"
	SubtypeDistribution Subtype = "distribution"
	SubtypeManipulation Subtype = "manipulation"
	SubtypeSupport      Subtype = "support"
	SubtypeResistance   Subtype = "resistance"
	SubtypeMixed        Subtype = "mixed"
	SubtypeNeutral      Subtype = "neutral"
)

// PatternType distinguishes the two families of learned patterns.
type PatternType string

const (
	PatternWhale      PatternType = "whale"
	PatternWhaleShape PatternType = "whale_shape"
)

// PatternClassification is produced once per OrderbookAnalysis consumed.
// Score is intentionally unclamped (wall notionals can exceed the
// threshold many times over); display consumers clamp it themselves.
type PatternClassification struct {
	Symbol        string    `json:"symbol"`
	Subtype       Subtype   `json:"subtype"`
	Score         float64   `json:"score"`
	LayeringScore float64   `json:"layering_score"`
	BidDepth      float64   `json:"bid_depth"`
	AskDepth      float64   `json:"ask_depth"`
	PatternID     string    `json:"pattern_id"`
	DetectedAt    time.Time `json:"detected_at"`
}

func (c *PatternClassification) Key() string { return c.Symbol }

// LearnedPattern is the append-forever record kept in Pattern Memory.
// Counters are monotonically non-decreasing; the derived ratios are
// recomputed from the counters on every update.
type LearnedPattern struct {
	ID         string             `json:"id"`
	Type       PatternType        `json:"type"`
	Symbol     string             `json:"symbol"`
	Subtype    Subtype            `json:"subtype"`
	Timeframe  string             `json:"timeframe"`
	Conditions map[string]float64 `json:"conditions"`

	TotalOccurrences int     `json:"total_occurrences"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	TotalProfit      float64 `json:"total_profit"`
	TotalLoss        float64 `json:"total_loss"`

	WinRate           float64 `json:"win_rate"`             // percent, 0..100
	AvgProfitPerTrade float64 `json:"avg_profit_per_trade"`
	ProfitFactor      float64 `json:"profit_factor"`
	Confidence        float64 `json:"confidence"` // percent, 0..100

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// ApplyOutcome folds one realized trade outcome into the counters and
// recomputes the derived ratios. The resulting counters are identical
// regardless of the order outcomes are applied in.
func (p *LearnedPattern) ApplyOutcome(profit float64, isWin bool, now time.Time) {
	p.TotalOccurrences++
	if isWin {
		p.Wins++
		p.TotalProfit += profit
	} else {
		p.Losses++
		p.TotalLoss += math.Abs(profit)
	}
	p.recompute()
	p.LastUpdated = now
}

func (p *LearnedPattern) recompute() {
	if p.TotalOccurrences > 0 {
		p.WinRate = float64(p.Wins) / float64(p.TotalOccurrences) * 100
		p.AvgProfitPerTrade = (p.TotalProfit - p.TotalLoss) / float64(p.TotalOccurrences)
	} else {
		p.WinRate = 0
		p.AvgProfitPerTrade = 0
	}
	if p.TotalLoss > 0 {
		p.ProfitFactor = p.TotalProfit / p.TotalLoss
	} else {
		p.ProfitFactor = 0
	}
	p.Confidence = confidenceFor(p.TotalOccurrences, p.WinRate)
}

// confidenceFor is a step function of sample size capped at 95/85/75/50
// and scaled by how far the win rate deviates from a coin flip.
func confidenceFor(samples int, winRate float64) float64 {
	var cap float64
	switch {
	case samples >= 100:
		cap = 95
	case samples >= 50:
		cap = 85
	case samples >= 20:
		cap = 75
	default:
		cap = 50
	}
	dev := math.Abs(winRate-50) / 50
	if dev > 1 {
		dev = 1
	}
	return cap * dev
}

// Clone returns a deep copy so callers never share the store's record.
func (p *LearnedPattern) Clone() *LearnedPattern {
	cp := *p
	if p.Conditions != nil {
		cp.Conditions = make(map[string]float64, len(p.Conditions))
		for k, v := range p.Conditions {
			cp.Conditions[k] = v
		}
	}
	return &cp
}
