package strategy

import (
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domsvc "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/service"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/trainer"
)

// LearnedClassifier classifies through the trained subtype head.
type LearnedClassifier struct {
	trainer *trainer.Trainer
}

func NewLearnedClassifier(t *trainer.Trainer) *LearnedClassifier {
	return &LearnedClassifier{trainer: t}
}

func (l *LearnedClassifier) Classify(a *models.OrderbookAnalysis) (models.Subtype, float64) {
	out := l.trainer.Predict(analysisFeatures(a))
	sub, ok := out["subtype"].(string)
	if !ok {
		return models.SubtypeNeutral, 0
	}
	conf, _ := out["subtype_confidence"].(float64)
	return models.Subtype(sub), conf
}

// LearnedScorer replaces the validator average with the trained win
// probability, keeping the coherence/decay corrections so predictions
// stay comparable with the heuristic ones.
type LearnedScorer struct {
	trainer  *trainer.Trainer
	fallback domsvc.ConfidenceScorer
}

func NewLearnedScorer(t *trainer.Trainer) *LearnedScorer {
	return &LearnedScorer{trainer: t, fallback: HeuristicScorer{}}
}

func (l *LearnedScorer) Score(c *models.PatternClassification, v models.Validators, coherence, lambda float64) float64 {
	out := l.trainer.Predict(classificationFeatures(c))
	p, ok := out["win_probability"].(float64)
	if !ok {
		return l.fallback.Score(c, v, coherence, lambda)
	}
	return clamp01(p * coherence * lambda)
}

func analysisFeatures(a *models.OrderbookAnalysis) map[string]float64 {
	return map[string]float64{
		"layering_score":  a.LayeringScore,
		"depth_imbalance": depthImbalance(a.BidDepth, a.AskDepth),
		"wall_count":      float64(len(a.Walls)),
		"hour_of_day":     float64(a.DetectedAt.UTC().Hour()),
	}
}

func classificationFeatures(c *models.PatternClassification) map[string]float64 {
	return map[string]float64{
		"layering_score":  c.LayeringScore,
		"depth_imbalance": depthImbalance(c.BidDepth, c.AskDepth),
		"hour_of_day":     float64(c.DetectedAt.UTC().Hour()),
	}
}

func depthImbalance(bid, ask float64) float64 {
	total := bid + ask
	if total == 0 {
		return 0
	}
	return (bid - ask) / total
}

// Selector resolves heuristic vs learned per call, so freshly trained
// artifacts take effect on the next prediction without restarts.
type Selector struct {
	trainer    *trainer.Trainer
	heuristicC domsvc.Classifier
	learnedC   domsvc.Classifier
	heuristicS domsvc.ConfidenceScorer
	learnedS   domsvc.ConfidenceScorer
}

func NewSelector(t *trainer.Trainer, heuristic *HeuristicClassifier) *Selector {
	return &Selector{
		trainer:    t,
		heuristicC: heuristic,
		learnedC:   NewLearnedClassifier(t),
		heuristicS: HeuristicScorer{},
		learnedS:   NewLearnedScorer(t),
	}
}

func (s *Selector) Classifier() domsvc.Classifier {
	if s.trainer != nil && s.trainer.HasHead(trainer.HeadSubtype) {
		return s.learnedC
	}
	return s.heuristicC
}

func (s *Selector) Scorer() domsvc.ConfidenceScorer {
	if s.trainer != nil && s.trainer.HasHead(trainer.HeadOutcome) {
		return s.learnedS
	}
	return s.heuristicS
}

var (
	_ domsvc.Classifier         = (*LearnedClassifier)(nil)
	_ domsvc.ConfidenceScorer   = (*LearnedScorer)(nil)
	_ domsvc.ClassifierSelector = (*Selector)(nil)
	_ domsvc.ScorerSelector     = (*Selector)(nil)
)
