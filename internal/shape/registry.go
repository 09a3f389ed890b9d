package shape

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/mapper"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/memory"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// Registry records externally detected orderbook shapes into Pattern
// Memory and feeds realized trade outcomes back onto them. The recorded
// whale_shape patterns are what the trainer learns from and what the
// shape-history validator reads.
type Registry struct {
	store    domrepo.PatternStore
	bus      *bus.Bus
	log      *logger.Logger
	metrics  domrepo.Metrics
	clock    clock.Clock
	interval time.Duration
}

func New(
	store domrepo.PatternStore,
	b *bus.Bus,
	log *logger.Logger,
	metrics domrepo.Metrics,
	clk clock.Clock,
	interval time.Duration,
) *Registry {
	if interval <= 0 {
		interval = time.Second
	}
	return &Registry{
		store:    store,
		bus:      b,
		log:      log.With("shape_registry"),
		metrics:  metrics,
		clock:    clk,
		interval: interval,
	}
}

// Register subscribes the registry to the extractor's topic.
func (r *Registry) Register() {
	r.bus.Subscribe(bus.TopicShapeDetected, r.handle)
}

func (r *Registry) handle(ctx context.Context, e bus.Envelope) {
	sig, ok := e.Payload.(*models.ShapeSignal)
	if !ok {
		r.metrics.RecordError("shape_payload")
		return
	}
	r.Record(ctx, sig)
}

// Record upserts one shape signal as a whale_shape pattern and
// acknowledges it on the bus.
func (r *Registry) Record(ctx context.Context, sig *models.ShapeSignal) *models.ShapeRecorded {
	now := r.clock.Now().UTC()
	id := mapper.PatternID(sig.Symbol, sig.Subtype, now, r.interval)

	conditions := make(map[string]float64, len(sig.Features)+1)
	for k, v := range sig.Features {
		conditions[k] = v
	}
	conditions["score"] = sig.Score

	pattern := &models.LearnedPattern{
		ID:          id,
		Type:        models.PatternWhaleShape,
		Symbol:      sig.Symbol,
		Subtype:     sig.Subtype,
		Conditions:  conditions,
		FirstSeen:   now,
		LastUpdated: now,
	}
	if err := r.store.Upsert(ctx, pattern); err != nil {
		r.metrics.RecordError("memory_write")
		r.log.Error("shape write failed",
			logger.String("pattern_id", id),
			logger.Error(err),
		)
	}

	rec := &models.ShapeRecorded{
		Symbol:     sig.Symbol,
		PatternID:  id,
		Subtype:    sig.Subtype,
		Score:      sig.Score,
		RecordedAt: now,
	}
	r.bus.Publish(ctx, bus.TopicShapeRecorded, rec)
	r.metrics.RecordEvent(bus.TopicShapeRecorded)
	return rec
}

// RecordShapeOutcome folds one realized trade outcome into the shape's
// counters. An unknown id is logged and swallowed: outcomes may arrive
// for shapes recorded before a restart, and the caller cannot act on
// the miss anyway.
func (r *Registry) RecordShapeOutcome(ctx context.Context, patternID string, profit float64, isWin bool) error {
	_, err := r.store.RecordOutcome(ctx, patternID, profit, isWin)
	if errors.Is(err, memory.ErrUnknownPattern) {
		r.log.Warn("outcome for unknown shape pattern",
			logger.String("pattern_id", patternID),
		)
		return nil
	}
	return err
}
