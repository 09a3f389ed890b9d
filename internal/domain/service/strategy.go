package service

import (
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

// Classifier maps one orderbook analysis to a behavioral subtype and a
// raw score. Two implementations exist: the hand-written heuristic rules
// and a learned model trained from recorded outcomes. The learned one is
// preferred whenever its artifact is present.
type Classifier interface {
	Classify(a *models.OrderbookAnalysis) (models.Subtype, float64)
}

// ConfidenceScorer turns the four validator sub-scores plus the
// coherence/decay correction into the final prediction confidence. The
// classification is passed along so learned scorers can condition on
// its feature attributes; the heuristic ignores it.
type ConfidenceScorer interface {
	Score(c *models.PatternClassification, v models.Validators, coherence, lambda float64) float64
}

// ClassifierSelector resolves the classifier to use for the next call,
// so a freshly trained artifact takes effect without restarts.
type ClassifierSelector interface {
	Classifier() Classifier
}

// ScorerSelector resolves the confidence scorer to use for the next call.
type ScorerSelector interface {
	Scorer() ConfidenceScorer
}
