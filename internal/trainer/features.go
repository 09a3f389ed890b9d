package trainer

import (
	"context"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
)

// FeatureKeys is the fixed feature-vector layout shared by training and
// prediction. Condition attributes missing from a pattern contribute 0.
var FeatureKeys = []string{
	"spectral_centroid",
	"spectral_bandwidth",
	"spectral_flatness",
	"energy",
	"peak_count",
	"layering_score",
	"depth_imbalance",
	"wall_count",
	"dominant_freq",
	"harmonic_coherence",
	"phase_alignment",
	"volatility",
	"volume",
	"hour_of_day",
}

// Sample is one labeled training example extracted from Pattern Memory.
type Sample struct {
	Features []float64
	Subtype  models.Subtype
	Win      bool
	Profit   float64
}

// Vectorize projects a feature map onto the fixed layout.
func Vectorize(features map[string]float64) []float64 {
	v := make([]float64, len(FeatureKeys))
	for i, k := range FeatureKeys {
		v[i] = features[k]
	}
	return v
}

// ExtractSamples pulls every whale_shape pattern with at least one
// recorded occurrence out of Pattern Memory and labels it with its
// realized performance.
func ExtractSamples(ctx context.Context, store domrepo.PatternStore) ([]Sample, error) {
	patterns, err := store.ByType(ctx, models.PatternWhaleShape)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(patterns))
	for _, p := range patterns {
		if p.TotalOccurrences < 1 {
			continue
		}
		feats := make(map[string]float64, len(p.Conditions)+1)
		for k, v := range p.Conditions {
			feats[k] = v
		}
		if _, ok := feats["hour_of_day"]; !ok {
			feats["hour_of_day"] = float64(p.FirstSeen.UTC().Hour())
		}
		out = append(out, Sample{
			Features: Vectorize(feats),
			Subtype:  p.Subtype,
			Win:      p.WinRate > 50,
			Profit:   p.AvgProfitPerTrade,
		})
	}
	return out, nil
}
