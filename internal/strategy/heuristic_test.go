package strategy

import (
	"testing"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

func defaultClassifier() *HeuristicClassifier {
	return NewHeuristicClassifier(100_000, 0.6, 1.5)
}

func TestClassifyBidWallOnlyIsAccumulation(t *testing.T) {
	a := &models.OrderbookAnalysis{
		Symbol: "BTCUSDT",
		Walls: []models.Wall{
			{Price: 100, Size: 2000, Notional: 200_000, Side: models.SideBid},
		},
	}
	sub, score := defaultClassifier().Classify(a)
	if sub != models.SubtypeAccumulation {
		t.Fatalf("subtype: %s", sub)
	}
	if score != 2.0 {
		t.Fatalf("score: got %v want 2.0", score)
	}
}

func TestClassifyAskWallOnlyIsDistribution(t *testing.T) {
	a := &models.OrderbookAnalysis{
		Walls: []models.Wall{
			{Price: 50, Size: 3000, Notional: 150_000, Side: models.SideAsk},
		},
	}
	sub, score := defaultClassifier().Classify(a)
	if sub != models.SubtypeDistribution {
		t.Fatalf("subtype: %s", sub)
	}
	if score != 1.5 {
		t.Fatalf("score: got %v", score)
	}
}

func TestClassifyBothSides(t *testing.T) {
	walls := []models.Wall{
		{Notional: 150_000, Side: models.SideBid},
		{Notional: 150_000, Side: models.SideAsk},
	}

	sub, score := defaultClassifier().Classify(&models.OrderbookAnalysis{Walls: walls, LayeringScore: 0.8})
	if sub != models.SubtypeManipulation || score != 0.8 {
		t.Fatalf("high layering: %s %v", sub, score)
	}

	sub, score = defaultClassifier().Classify(&models.OrderbookAnalysis{Walls: walls, LayeringScore: 0.4})
	if sub != models.SubtypeMixed || score != 0.2 {
		t.Fatalf("low layering: %s %v", sub, score)
	}
}

func TestClassifyDepthDominance(t *testing.T) {
	sub, score := defaultClassifier().Classify(&models.OrderbookAnalysis{BidDepth: 400_000, AskDepth: 100_000})
	if sub != models.SubtypeSupport {
		t.Fatalf("subtype: %s", sub)
	}
	if score != 0.99 { // 4/2 capped at 0.99
		t.Fatalf("score: %v", score)
	}

	sub, _ = defaultClassifier().Classify(&models.OrderbookAnalysis{BidDepth: 100_000, AskDepth: 200_000})
	if sub != models.SubtypeResistance {
		t.Fatalf("subtype: %s", sub)
	}
}

func TestClassifyBalancedBookIsNeutral(t *testing.T) {
	sub, score := defaultClassifier().Classify(&models.OrderbookAnalysis{BidDepth: 100_000, AskDepth: 100_000})
	if sub != models.SubtypeNeutral || score != 0 {
		t.Fatalf("got %s %v", sub, score)
	}
}

func TestHeuristicScorer(t *testing.T) {
	v := models.Validators{RecentActivity: 0.8, HistoricalSuccess: 0.8, MarketContext: 0.8, ShapeHistory: 0.8}
	got := HeuristicScorer{}.Score(nil, v, 1.0, 1.0)
	if got != 0.8 {
		t.Fatalf("score: %v", got)
	}
	// damped by coherence and decay, clamped to [0,1]
	got = HeuristicScorer{}.Score(nil, v, 0.5, 0.5)
	if got != 0.2 {
		t.Fatalf("damped score: %v", got)
	}
}
