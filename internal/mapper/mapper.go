package mapper

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	domsvc "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/service"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// Mapper consumes orderbook analyses, classifies a behavioral subtype
// and records the pattern into Pattern Memory. A Pattern Memory write
// failure never blocks the downstream prediction; it is logged and
// surfaced through the error counter.
type Mapper struct {
	store     domrepo.PatternStore
	selector  domsvc.ClassifierSelector
	bus       *bus.Bus
	log       *logger.Logger
	metrics   domrepo.Metrics
	clock     clock.Clock
	interval  time.Duration
	timeframe string
}

func New(
	store domrepo.PatternStore,
	selector domsvc.ClassifierSelector,
	b *bus.Bus,
	log *logger.Logger,
	metrics domrepo.Metrics,
	clk clock.Clock,
	interval time.Duration,
	timeframe string,
) *Mapper {
	if interval <= 0 {
		interval = time.Second
	}
	if timeframe == "" {
		timeframe = "1s"
	}
	return &Mapper{
		store:     store,
		selector:  selector,
		bus:       b,
		log:       log.With("mapper"),
		metrics:   metrics,
		clock:     clk,
		interval:  interval,
		timeframe: timeframe,
	}
}

// Register subscribes the mapper to the analyzer's topic.
func (m *Mapper) Register() {
	m.bus.Subscribe(bus.TopicOrderbookAnalyzed, m.handle)
}

func (m *Mapper) handle(ctx context.Context, e bus.Envelope) {
	analysis, ok := e.Payload.(*models.OrderbookAnalysis)
	if !ok {
		m.metrics.RecordError("mapper_payload")
		return
	}
	m.Classify(ctx, analysis)
}

// Classify runs one analysis through the active classifier, upserts the
// pattern record and publishes the classification.
func (m *Mapper) Classify(ctx context.Context, analysis *models.OrderbookAnalysis) *models.PatternClassification {
	subtype, score := m.selector.Classifier().Classify(analysis)
	now := m.clock.Now().UTC()

	c := &models.PatternClassification{
		Symbol:        analysis.Symbol,
		Subtype:       subtype,
		Score:         score,
		LayeringScore: analysis.LayeringScore,
		BidDepth:      analysis.BidDepth,
		AskDepth:      analysis.AskDepth,
		PatternID:     PatternID(analysis.Symbol, subtype, now, m.interval),
		DetectedAt:    now,
	}

	pattern := &models.LearnedPattern{
		ID:        c.PatternID,
		Type:      models.PatternWhale,
		Symbol:    c.Symbol,
		Subtype:   subtype,
		Timeframe: m.timeframe,
		Conditions: map[string]float64{
			"score":          score,
			"layering_score": c.LayeringScore,
			"bid_depth":      c.BidDepth,
			"ask_depth":      c.AskDepth,
			"wall_count":     float64(len(analysis.Walls)),
		},
		FirstSeen:   now,
		LastUpdated: now,
	}
	if err := m.store.Upsert(ctx, pattern); err != nil {
		// persistence hiccups must not block prediction
		m.metrics.RecordError("memory_write")
		m.log.Error("pattern memory write failed",
			logger.String("pattern_id", c.PatternID),
			logger.Error(err),
		)
	}

	m.bus.Publish(ctx, bus.TopicPatternClassified, c)
	m.metrics.RecordEvent(bus.TopicPatternClassified)
	return c
}

// PatternID derives a deterministic id from symbol, subtype and the
// detection time truncated to the polling interval, so repeated
// detections of the same structural event within one interval collapse
// onto a single Pattern Memory record.
func PatternID(symbol string, subtype models.Subtype, at time.Time, interval time.Duration) string {
	bucket := at.Truncate(interval).Unix()
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d", symbol, subtype, bucket)))
	return hex.EncodeToString(sum[:])
}
