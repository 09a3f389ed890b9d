package extractor

import (
	"context"
	"math"
	"math/cmplx"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

const (
	defaultWindow = 32
	minScore      = 0.15
)

// Spectral turns the per-symbol stream of orderbook analyses into shape
// signals. It windows the depth-imbalance series, runs a DFT over it
// and emits a ShapeSignal whenever the window carries enough energy to
// read as deliberate structure rather than noise.
type Spectral struct {
	bus     *bus.Bus
	log     *logger.Logger
	metrics domrepo.Metrics
	clock   clock.Clock
	window  int

	mu     sync.Mutex
	series map[string][]*models.OrderbookAnalysis
}

func New(b *bus.Bus, log *logger.Logger, metrics domrepo.Metrics, clk clock.Clock, window int) *Spectral {
	if window < 8 {
		window = defaultWindow
	}
	return &Spectral{
		bus:     b,
		log:     log.With("spectral"),
		metrics: metrics,
		clock:   clk,
		window:  window,
		series:  make(map[string][]*models.OrderbookAnalysis),
	}
}

// Register subscribes the extractor to the analyzer's topic.
func (s *Spectral) Register() {
	s.bus.Subscribe(bus.TopicOrderbookAnalyzed, s.handle)
}

func (s *Spectral) handle(ctx context.Context, e bus.Envelope) {
	a, ok := e.Payload.(*models.OrderbookAnalysis)
	if !ok {
		return
	}
	if sig := s.Observe(a); sig != nil {
		s.bus.Publish(ctx, bus.TopicShapeDetected, sig)
		s.metrics.RecordEvent(bus.TopicShapeDetected)
	}
}

// Observe folds one analysis into the symbol's window and returns a
// shape signal once the window is full and carries signal, nil
// otherwise.
func (s *Spectral) Observe(a *models.OrderbookAnalysis) *models.ShapeSignal {
	s.mu.Lock()
	w := append(s.series[a.Symbol], a)
	if len(w) > s.window {
		w = w[len(w)-s.window:]
	}
	s.series[a.Symbol] = w
	window := make([]*models.OrderbookAnalysis, len(w))
	copy(window, w)
	s.mu.Unlock()

	if len(window) < s.window {
		return nil
	}

	features, score := s.featuresOf(window)
	if score < minScore {
		return nil
	}

	subtype := subtypeOf(features)
	if subtype == models.SubtypeNeutral {
		return nil
	}

	s.log.Debug("shape detected",
		logger.String("symbol", a.Symbol),
		logger.String("subtype", string(subtype)),
		logger.Float64("score", score),
	)
	return &models.ShapeSignal{
		Symbol:     a.Symbol,
		Subtype:    subtype,
		Score:      score,
		Features:   features,
		DetectedAt: s.clock.Now().UTC(),
	}
}

// featuresOf computes the spectral feature map over the window's
// depth-imbalance series.
func (s *Spectral) featuresOf(window []*models.OrderbookAnalysis) (map[string]float64, float64) {
	series := make([]float64, len(window))
	var layering, wallCount, volume float64
	for i, a := range window {
		series[i] = imbalance(a)
		layering += a.LayeringScore
		wallCount += float64(len(a.Walls))
		volume += a.BidDepth + a.AskDepth
	}
	n := float64(len(window))
	layering /= n
	wallCount /= n
	volume /= n

	power, phases := dft(series)
	centroid, bandwidth := centroidBandwidth(power)
	flatness := flatnessOf(power)
	energy := energyOf(series)
	domFreq, domIdx := dominantFrequency(power)

	features := map[string]float64{
		"spectral_centroid":  centroid,
		"spectral_bandwidth": bandwidth,
		"spectral_flatness":  flatness,
		"energy":             energy,
		"peak_count":         float64(peakCount(series)),
		"layering_score":     layering,
		"depth_imbalance":    mean(series),
		"wall_count":         wallCount,
		"dominant_freq":      domFreq,
		"harmonic_coherence": harmonicCoherence(power, domIdx),
		"phase_alignment":    phaseAlignment(phases),
		"volatility":         stddev(series),
		"volume":             volume,
		"hour_of_day":        float64(s.clock.Now().UTC().Hour()),
	}

	score := clamp01(energy + layering/2)
	return features, score
}

// subtypeOf reads the window's direction: sustained positive imbalance
// is accumulation, sustained negative is distribution, high layering
// with an oscillating book is manipulation.
func subtypeOf(features map[string]float64) models.Subtype {
	if features["layering_score"] > 0.6 {
		return models.SubtypeManipulation
	}
	switch imb := features["depth_imbalance"]; {
	case imb > 0.15:
		return models.SubtypeAccumulation
	case imb < -0.15:
		return models.SubtypeDistribution
	default:
		return models.SubtypeNeutral
	}
}

// imbalance maps one analysis to [-1,1]: +1 all bid depth, -1 all ask.
func imbalance(a *models.OrderbookAnalysis) float64 {
	total := a.BidDepth + a.AskDepth
	if total == 0 {
		return 0
	}
	return (a.BidDepth - a.AskDepth) / total
}

// dft returns per-bin power and phase for bins 1..n/2. The DC bin is
// excluded; windows are short enough that the naive transform is fine.
func dft(series []float64) (power, phases []float64) {
	n := len(series)
	bins := n / 2
	power = make([]float64, 0, bins)
	phases = make([]float64, 0, bins)
	for k := 1; k <= bins; k++ {
		var sum complex128
		for t, x := range series {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += complex(x, 0) * cmplx.Exp(complex(0, angle))
		}
		power = append(power, cmplx.Abs(sum)*cmplx.Abs(sum)/float64(n))
		phases = append(phases, cmplx.Phase(sum))
	}
	return power, phases
}

func centroidBandwidth(power []float64) (centroid, bandwidth float64) {
	var total float64
	for _, p := range power {
		total += p
	}
	if total == 0 {
		return 0, 0
	}
	for i, p := range power {
		centroid += float64(i+1) * p / total
	}
	for i, p := range power {
		d := float64(i+1) - centroid
		bandwidth += d * d * p / total
	}
	// normalize both to [0,1] by the bin count
	n := float64(len(power))
	return centroid / n, math.Sqrt(bandwidth) / n
}

func flatnessOf(power []float64) float64 {
	var logSum, sum float64
	count := 0
	for _, p := range power {
		if p <= 0 {
			continue
		}
		logSum += math.Log(p)
		sum += p
		count++
	}
	if count == 0 || sum == 0 {
		return 0
	}
	geo := math.Exp(logSum / float64(count))
	arith := sum / float64(count)
	return geo / arith
}

func energyOf(series []float64) float64 {
	var e float64
	for _, x := range series {
		e += x * x
	}
	return e / float64(len(series))
}

func dominantFrequency(power []float64) (freq float64, idx int) {
	best := -1.0
	for i, p := range power {
		if p > best {
			best = p
			idx = i
		}
	}
	if len(power) == 0 {
		return 0, 0
	}
	return float64(idx+1) / float64(len(power)), idx
}

// harmonicCoherence is the share of power held by the dominant bin and
// its integer harmonics.
func harmonicCoherence(power []float64, domIdx int) float64 {
	var total, harmonic float64
	for _, p := range power {
		total += p
	}
	if total == 0 {
		return 0
	}
	base := domIdx + 1
	for i, p := range power {
		if (i+1)%base == 0 {
			harmonic += p
		}
	}
	return harmonic / total
}

// phaseAlignment is near 1 when neighboring bins advance by a constant
// phase step, i.e. the window holds one coherent oscillation.
func phaseAlignment(phases []float64) float64 {
	if len(phases) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(phases); i++ {
		sum += math.Cos(phases[i] - phases[i-1])
	}
	return math.Abs(sum / float64(len(phases)-1))
}

func peakCount(series []float64) int {
	count := 0
	for i := 1; i < len(series)-1; i++ {
		if series[i] > series[i-1] && series[i] > series[i+1] {
			count++
		}
	}
	return count
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
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
