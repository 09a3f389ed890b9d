package strategy

import (
	"math"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domsvc "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/service"
)

// HeuristicClassifier implements the hand-written classification rules.
// The thresholds are hand-tuned starting points carried as
// configuration; nothing here assumes they are optimal.
type HeuristicClassifier struct {
	WallThreshold         float64 // normalizes wall notional into a score
	ManipulationThreshold float64 // layering score above which both-sided walls read as manipulation
	DepthRatio            float64 // depth dominance needed for support/resistance
}

func NewHeuristicClassifier(wallThreshold, manipulationThreshold, depthRatio float64) *HeuristicClassifier {
	if wallThreshold <= 0 {
		wallThreshold = 100_000
	}
	if manipulationThreshold <= 0 {
		manipulationThreshold = 0.6
	}
	if depthRatio <= 0 {
		depthRatio = 1.5
	}
	return &HeuristicClassifier{
		WallThreshold:         wallThreshold,
		ManipulationThreshold: manipulationThreshold,
		DepthRatio:            depthRatio,
	}
}

// Classify evaluates the rules in priority order: one-sided walls, then
// both-sided walls, then depth dominance. The returned score is
// intentionally unclamped for the wall cases.
func (h *HeuristicClassifier) Classify(a *models.OrderbookAnalysis) (models.Subtype, float64) {
	bidWall := a.MaxWallNotional(models.SideBid)
	askWall := a.MaxWallNotional(models.SideAsk)

	switch {
	case bidWall > 0 && askWall == 0:
		return models.SubtypeAccumulation, bidWall / h.WallThreshold
	case askWall > 0 && bidWall == 0:
		return models.SubtypeDistribution, askWall / h.WallThreshold
	case bidWall > 0 && askWall > 0:
		if a.LayeringScore > h.ManipulationThreshold {
			return models.SubtypeManipulation, a.LayeringScore
		}
		return models.SubtypeMixed, a.LayeringScore * 0.5
	}

	switch {
	case a.AskDepth > 0 && a.BidDepth > h.DepthRatio*a.AskDepth:
		return models.SubtypeSupport, math.Min(0.99, a.BidDepth/a.AskDepth/2)
	case a.BidDepth > 0 && a.AskDepth > h.DepthRatio*a.BidDepth:
		return models.SubtypeResistance, math.Min(0.99, a.AskDepth/a.BidDepth/2)
	case a.AskDepth == 0 && a.BidDepth > 0:
		return models.SubtypeSupport, 0.99
	case a.BidDepth == 0 && a.AskDepth > 0:
		return models.SubtypeResistance, 0.99
	}
	return models.SubtypeNeutral, 0
}

// HeuristicScorer is the baseline confidence function: the validator
// average damped by coherence and decay.
type HeuristicScorer struct{}

func (HeuristicScorer) Score(_ *models.PatternClassification, v models.Validators, coherence, lambda float64) float64 {
	avg := (v.RecentActivity + v.HistoricalSuccess + v.MarketContext + v.ShapeHistory) / 4
	return clamp01(avg * coherence * lambda)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

var (
	_ domsvc.Classifier       = (*HeuristicClassifier)(nil)
	_ domsvc.ConfidenceScorer = HeuristicScorer{}
)
