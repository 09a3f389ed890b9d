package mapper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domsvc "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/service"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/strategy"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

type recordingStore struct {
	upserts []*models.LearnedPattern
	err     error
}

func (s *recordingStore) Upsert(_ context.Context, p *models.LearnedPattern) error {
	s.upserts = append(s.upserts, p)
	return s.err
}

func (s *recordingStore) Get(context.Context, string) (*models.LearnedPattern, error) {
	return nil, errors.New("not implemented")
}

func (s *recordingStore) RecordOutcome(context.Context, string, float64, bool) (*models.LearnedPattern, error) {
	return nil, errors.New("not implemented")
}

func (s *recordingStore) BySymbol(context.Context, string, models.PatternType) ([]*models.LearnedPattern, error) {
	return nil, nil
}

func (s *recordingStore) ByType(context.Context, models.PatternType) ([]*models.LearnedPattern, error) {
	return nil, nil
}

func (s *recordingStore) Paths(context.Context) ([]models.PathAnnotation, error) { return nil, nil }
func (s *recordingStore) Flush(context.Context) error                            { return nil }
func (s *recordingStore) Close() error                                           { return nil }

type countingMetrics struct {
	events map[string]int
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{events: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) RecordEvent(topic string)       { m.events[topic]++ }
func (m *countingMetrics) RecordError(kind string)        { m.errors[kind]++ }
func (m *countingMetrics) RecordWall(string, string)      {}
func (m *countingMetrics) RecordLayering(string, float64) {}
func (m *countingMetrics) RecordLatency(string, float64)  {}

type fixedSelector struct{ c domsvc.Classifier }

func (s fixedSelector) Classifier() domsvc.Classifier { return s.c }

func newTestMapper(t *testing.T, store *recordingStore, metrics *countingMetrics) (*Mapper, *bus.Bus, *clock.Mock) {
	t.Helper()
	b := bus.New(logger.Nop(), metrics)
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 1, 12, 0, 0, 500_000_000, time.UTC))
	sel := fixedSelector{c: strategy.NewHeuristicClassifier(100_000, 0.6, 1.5)}
	m := New(store, sel, b, logger.Nop(), metrics, clk, time.Second, "1s")
	m.Register()
	return m, b, clk
}

func bidWallAnalysis(symbol string) *models.OrderbookAnalysis {
	return &models.OrderbookAnalysis{
		Symbol:   symbol,
		Exchange: "binance",
		Walls: []models.Wall{
			{Price: 100, Size: 2000, Notional: 200_000, Side: models.SideBid},
		},
		LayeringScore: 0.3,
		BidDepth:      500_000,
		AskDepth:      400_000,
	}
}

func TestClassifyPublishesAndUpserts(t *testing.T) {
	store := &recordingStore{}
	metrics := newCountingMetrics()
	_, b, _ := newTestMapper(t, store, metrics)

	var got *models.PatternClassification
	b.Subscribe(bus.TopicPatternClassified, func(_ context.Context, e bus.Envelope) {
		got = e.Payload.(*models.PatternClassification)
	})

	b.Publish(context.Background(), bus.TopicOrderbookAnalyzed, bidWallAnalysis("BTCUSDT"))

	if got == nil {
		t.Fatal("no classification published")
	}
	if got.Subtype != models.SubtypeAccumulation {
		t.Fatalf("subtype = %s, want accumulation", got.Subtype)
	}
	if got.Score != 2.0 {
		t.Fatalf("score = %v, want 2.0", got.Score)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	p := store.upserts[0]
	if p.ID != got.PatternID {
		t.Fatalf("pattern id mismatch: %s vs %s", p.ID, got.PatternID)
	}
	if p.Type != models.PatternWhale {
		t.Fatalf("type = %s, want whale", p.Type)
	}
	if p.TotalOccurrences != 0 {
		t.Fatalf("upsert must not touch counters, got %d occurrences", p.TotalOccurrences)
	}
	if p.Conditions["layering_score"] != 0.3 {
		t.Fatalf("layering condition = %v", p.Conditions["layering_score"])
	}
}

func TestClassifyPublishesDespiteStoreFailure(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	metrics := newCountingMetrics()
	_, b, _ := newTestMapper(t, store, metrics)

	published := 0
	b.Subscribe(bus.TopicPatternClassified, func(context.Context, bus.Envelope) { published++ })

	b.Publish(context.Background(), bus.TopicOrderbookAnalyzed, bidWallAnalysis("ETHUSDT"))

	if published != 1 {
		t.Fatalf("published = %d, want 1 despite store failure", published)
	}
	if metrics.errors["memory_write"] != 1 {
		t.Fatalf("memory_write errors = %d, want 1", metrics.errors["memory_write"])
	}
}

func TestPatternIDStableWithinBucket(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 100_000_000, time.UTC)
	a := PatternID("BTCUSDT", models.SubtypeAccumulation, base, time.Second)
	b := PatternID("BTCUSDT", models.SubtypeAccumulation, base.Add(800*time.Millisecond), time.Second)
	if a != b {
		t.Fatal("ids within one interval bucket must match")
	}
	c := PatternID("BTCUSDT", models.SubtypeAccumulation, base.Add(time.Second), time.Second)
	if a == c {
		t.Fatal("ids across bucket boundary must differ")
	}
	d := PatternID("ETHUSDT", models.SubtypeAccumulation, base, time.Second)
	if a == d {
		t.Fatal("ids for different symbols must differ")
	}
}

func TestRepeatedDetectionsCollapseToOnePattern(t *testing.T) {
	store := &recordingStore{}
	metrics := newCountingMetrics()
	_, b, _ := newTestMapper(t, store, metrics)

	b.Publish(context.Background(), bus.TopicOrderbookAnalyzed, bidWallAnalysis("BTCUSDT"))
	b.Publish(context.Background(), bus.TopicOrderbookAnalyzed, bidWallAnalysis("BTCUSDT"))

	if len(store.upserts) != 2 {
		t.Fatalf("upserts = %d, want 2", len(store.upserts))
	}
	if store.upserts[0].ID != store.upserts[1].ID {
		t.Fatal("same symbol/subtype within one bucket must map to one pattern id")
	}
}
