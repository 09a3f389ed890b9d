package memory

import (
	"context"
	"sort"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

// Thresholds for route annotations. A pair needs a minimum number of
// recorded outcomes before it earns either marker.
const (
	goldenWinRate  = 65.0
	blockedWinRate = 35.0
	pathMinSamples = 10
)

// Paths derives golden/blocked annotations over ordered symbol pairs
// from the recorded per-symbol performance. External routing
// collaborators consume these to bias or veto routes; this pipeline
// only offers them.
func (s *Store) Paths(ctx context.Context) ([]models.PathAnnotation, error) {
	all, err := s.ByType(ctx, "")
	if err != nil {
		return nil, err
	}

	type agg struct {
		wins  int
		total int
	}
	perSymbol := make(map[string]*agg)
	for _, p := range all {
		if p.TotalOccurrences == 0 {
			continue
		}
		a, ok := perSymbol[p.Symbol]
		if !ok {
			a = &agg{}
			perSymbol[p.Symbol] = a
		}
		a.wins += p.Wins
		a.total += p.TotalOccurrences
	}

	symbols := make([]string, 0, len(perSymbol))
	for sym := range perSymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	out := make([]models.PathAnnotation, 0, len(symbols)*(len(symbols)-1))
	for _, from := range symbols {
		for _, to := range symbols {
			if from == to {
				continue
			}
			f, t := perSymbol[from], perSymbol[to]
			samples := f.total + t.total
			if samples == 0 {
				continue
			}
			winRate := float64(f.wins+t.wins) / float64(samples) * 100
			out = append(out, models.PathAnnotation{
				From:    from,
				To:      to,
				WinRate: winRate,
				Samples: samples,
				Golden:  samples >= pathMinSamples && winRate >= goldenWinRate,
				Blocked: samples >= pathMinSamples && winRate <= blockedWinRate,
			})
		}
	}
	return out, nil
}
