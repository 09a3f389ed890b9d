package predictor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	domsvc "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/service"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

const (
	defaultValidator = 0.45
	noHistoryPrior   = 0.4
	driftEpsilon     = 1e-3
)

type recentEvent struct {
	subtype models.Subtype
	at      time.Time
}

// Predictor consumes pattern classifications and publishes a behavior
// prediction for each one. Four independent validators are combined
// through a coherence/decay correction; the scorer that folds them into
// the final confidence is resolved per call so a freshly trained model
// takes effect without restarts.
type Predictor struct {
	store   domrepo.PatternStore
	stats   domrepo.TradeStats
	scorers domsvc.ScorerSelector
	bus     *bus.Bus
	log     *logger.Logger
	metrics domrepo.Metrics
	clock   clock.Clock

	maxRecent int

	mu     sync.Mutex
	recent map[string][]recentEvent
}

func New(
	store domrepo.PatternStore,
	stats domrepo.TradeStats,
	scorers domsvc.ScorerSelector,
	b *bus.Bus,
	log *logger.Logger,
	metrics domrepo.Metrics,
	clk clock.Clock,
	maxRecent int,
) *Predictor {
	if maxRecent <= 0 {
		maxRecent = 10
	}
	return &Predictor{
		store:     store,
		stats:     stats,
		scorers:   scorers,
		bus:       b,
		log:       log.With("predictor"),
		metrics:   metrics,
		clock:     clk,
		maxRecent: maxRecent,
		recent:    make(map[string][]recentEvent),
	}
}

// Register subscribes the predictor to the mapper's topic.
func (p *Predictor) Register() {
	p.bus.Subscribe(bus.TopicPatternClassified, p.handle)
}

func (p *Predictor) handle(ctx context.Context, e bus.Envelope) {
	c, ok := e.Payload.(*models.PatternClassification)
	if !ok {
		p.metrics.RecordError("predictor_payload")
		return
	}
	p.Predict(ctx, c)
}

// Predict folds one classification into the per-symbol history and
// publishes the resulting prediction.
func (p *Predictor) Predict(ctx context.Context, c *models.PatternClassification) *models.BehaviorPrediction {
	start := p.clock.Now()
	events := p.push(c.Symbol, recentEvent{subtype: c.Subtype, at: c.DetectedAt})

	v := models.Validators{
		RecentActivity:    recentActivity(events),
		HistoricalSuccess: p.patternSuccess(ctx, c.Symbol, models.PatternWhale),
		MarketContext:     p.marketContext(ctx, c.Symbol),
		ShapeHistory:      p.patternSuccess(ctx, c.Symbol, models.PatternWhaleShape),
	}

	coherence := coherenceOf(v)
	lambda := decayOf(events)
	final := p.scorers.Scorer().Score(c, v, coherence, lambda)
	avg := (v.RecentActivity + v.HistoricalSuccess + v.MarketContext + v.ShapeHistory) / 4

	pred := &models.BehaviorPrediction{
		Symbol:         c.Symbol,
		Action:         actionFor(final, avg),
		Confidence:     final,
		HorizonMinutes: horizonFor(final),
		Validators:     v,
		Coherence:      coherence,
		Lambda:         lambda,
		PredictedAt:    p.clock.Now().UTC(),
	}

	p.bus.Publish(ctx, bus.TopicBehaviorPredicted, pred)
	p.metrics.RecordEvent(bus.TopicBehaviorPredicted)
	p.metrics.RecordLatency("predict", p.clock.Since(start).Seconds())
	return pred
}

// push appends one event to the symbol's bounded history and returns a
// snapshot of it.
func (p *Predictor) push(symbol string, e recentEvent) []recentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := append(p.recent[symbol], e)
	if len(h) > p.maxRecent {
		h = h[len(h)-p.maxRecent:]
	}
	p.recent[symbol] = h
	out := make([]recentEvent, len(h))
	copy(out, h)
	return out
}

// recentActivity is validator p1: a directional vote over the recent
// subtype mix, anchored at 0.5.
func recentActivity(events []recentEvent) float64 {
	if len(events) == 0 {
		return noHistoryPrior
	}
	var acc, dist, manip int
	for _, e := range events {
		switch e.subtype {
		case models.SubtypeAccumulation:
			acc++
		case models.SubtypeDistribution:
			dist++
		case models.SubtypeManipulation:
			manip++
		}
	}
	total := len(events)
	if total < 1 {
		total = 1
	}
	return clamp01(0.5 + float64(acc-dist-manip)/float64(total))
}

// patternSuccess is validators p2 and p4: the confidence-weighted
// average win rate over the symbol's stored patterns of one type.
func (p *Predictor) patternSuccess(ctx context.Context, symbol string, ptype models.PatternType) float64 {
	patterns, err := p.store.BySymbol(ctx, symbol, ptype)
	if err != nil {
		p.metrics.RecordError("memory_read")
		p.log.Warn("pattern memory read failed",
			logger.String("symbol", symbol),
			logger.Error(err),
		)
		return defaultValidator
	}
	var weighted, weights float64
	for _, lp := range patterns {
		w := lp.Confidence / 100
		weighted += w * lp.WinRate / 100
		weights += w
	}
	if weights == 0 {
		return defaultValidator
	}
	return clamp01(weighted / weights)
}

// marketContext is validator p3: a liquidity proxy stepped on the
// symbol's historical trade count.
func (p *Predictor) marketContext(ctx context.Context, symbol string) float64 {
	if p.stats == nil {
		return defaultValidator
	}
	count, err := p.stats.TradeCount(ctx, symbol)
	if err != nil {
		return defaultValidator
	}
	switch {
	case count >= 1000:
		return 0.75
	case count >= 100:
		return 0.6
	default:
		return 0.4
	}
}

func coherenceOf(v models.Validators) float64 {
	vals := [4]float64{v.RecentActivity, v.HistoricalSuccess, v.MarketContext, v.ShapeHistory}
	min, max := vals[0], vals[0]
	for _, x := range vals[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return 1 - (max - min)
}

// decayOf dampens the prediction by the drift of the recent events'
// inter-arrival times. One event carries no spacing information, so no
// decay is applied.
func decayOf(events []recentEvent) float64 {
	if len(events) < 2 {
		return 1
	}
	var total float64
	for i := 1; i < len(events); i++ {
		total += events[i].at.Sub(events[i-1].at).Seconds()
	}
	avgGap := total / float64(len(events)-1)
	if avgGap < 0 {
		avgGap = 0
	}
	drift := 1 / (avgGap + driftEpsilon)
	return math.Exp(-0.5 * drift)
}

func actionFor(final, avg float64) models.Action {
	switch {
	case final > 0.7:
		if avg > 0.6 {
			return models.ActionBuy
		}
		return models.ActionSell
	case final > 0.5:
		if avg > 0.6 {
			return models.ActionLeanBuy
		}
		return models.ActionLeanSell
	default:
		return models.ActionWait
	}
}

func horizonFor(final float64) int {
	h := 30 * final
	if h < 1 {
		h = 1
	}
	if h > 60 {
		h = 60
	}
	return int(math.Round(h))
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
