package memory

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string)             {}
func (nopMetrics) RecordError(string)             {}
func (nopMetrics) RecordWall(string, string)      {}
func (nopMetrics) RecordLayering(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)  {}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.json")
	s, err := NewStore(NewFilePersister(path), logger.Nop(), nopMetrics{}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func whalePattern(id, symbol string) *models.LearnedPattern {
	return &models.LearnedPattern{
		ID:         id,
		Type:       models.PatternWhale,
		Symbol:     symbol,
		Subtype:    models.SubtypeAccumulation,
		Timeframe:  "1s",
		Conditions: map[string]float64{"layering_score": 0.3},
		FirstSeen:  time.Now().UTC(),
	}
}

func TestUpsertDoesNotTouchCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, whalePattern("p1", "BTCUSDT")))
	_, err := s.RecordOutcome(ctx, "p1", 3.0, true)
	require.NoError(t, err)

	// re-classification of the same structural event
	require.NoError(t, s.Upsert(ctx, whalePattern("p1", "BTCUSDT")))

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalOccurrences)
	require.Equal(t, 1, got.Wins)
}

func TestFirstWinningOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, whalePattern("p1", "BTCUSDT")))

	got, err := s.RecordOutcome(ctx, "p1", 5.0, true)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalOccurrences)
	require.Equal(t, 100.0, got.WinRate)
	require.Equal(t, 5.0, got.AvgProfitPerTrade)
	require.LessOrEqual(t, got.Confidence, 50.0)
}

func TestOutcomesCommute(t *testing.T) {
	ctx := context.Background()
	type outcome struct {
		profit float64
		win    bool
	}
	outcomes := []outcome{{5, true}, {-2, false}, {1.5, true}, {-0.5, false}, {8, true}}

	apply := func(order []outcome) *models.LearnedPattern {
		s := newTestStore(t)
		require.NoError(t, s.Upsert(ctx, whalePattern("p1", "BTCUSDT")))
		var last *models.LearnedPattern
		for _, o := range order {
			var err error
			last, err = s.RecordOutcome(ctx, "p1", o.profit, o.win)
			require.NoError(t, err)
		}
		return last
	}

	forward := apply(outcomes)
	reversed := make([]outcome, len(outcomes))
	for i, o := range outcomes {
		reversed[len(outcomes)-1-i] = o
	}
	backward := apply(reversed)

	require.Equal(t, forward.TotalOccurrences, backward.TotalOccurrences)
	require.Equal(t, forward.Wins, backward.Wins)
	require.Equal(t, forward.Losses, backward.Losses)
	require.InDelta(t, forward.TotalProfit, backward.TotalProfit, 1e-12)
	require.InDelta(t, forward.TotalLoss, backward.TotalLoss, 1e-12)
	require.InDelta(t, forward.WinRate, backward.WinRate, 1e-12)
	require.InDelta(t, forward.ProfitFactor, backward.ProfitFactor, 1e-12)
}

func TestConfidenceStepFunction(t *testing.T) {
	cases := []struct {
		outcomes int
		maxConf  float64
	}{
		{10, 50},
		{30, 75},
		{60, 85},
		{120, 95},
	}
	for _, tc := range cases {
		p := whalePattern("p", "BTCUSDT")
		now := time.Now().UTC()
		for i := 0; i < tc.outcomes; i++ {
			p.ApplyOutcome(1.0, true, now) // 100% win rate hits the cap
		}
		require.Equal(t, tc.maxConf, p.Confidence, "outcomes=%d", tc.outcomes)
	}

	// a coin-flip win rate earns no confidence regardless of samples
	p := whalePattern("p", "BTCUSDT")
	now := time.Now().UTC()
	for i := 0; i < 100; i++ {
		p.ApplyOutcome(1.0, i%2 == 0, now)
	}
	require.Equal(t, 0.0, p.Confidence)
}

func TestRecordOutcomeUnknownID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RecordOutcome(context.Background(), "nope", 1.0, true)
	require.ErrorIs(t, err, ErrUnknownPattern)
}

func TestRoundTripPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "patterns.json")

	s, err := NewStore(NewFilePersister(path), logger.Nop(), nopMetrics{}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, whalePattern("p1", "BTCUSDT")))
	require.NoError(t, s.Upsert(ctx, whalePattern("p2", "ETHUSDT")))
	_, err = s.RecordOutcome(ctx, "p1", 5.0, true)
	require.NoError(t, err)
	_, err = s.RecordOutcome(ctx, "p1", -2.0, false)
	require.NoError(t, err)
	before, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := NewStore(NewFilePersister(path), logger.Nop(), nopMetrics{}, time.Hour)
	require.NoError(t, err)
	defer s2.Close()
	after, err := s2.Get(ctx, "p1")
	require.NoError(t, err)

	bj, err := json.Marshal(before)
	require.NoError(t, err)
	aj, err := json.Marshal(after)
	require.NoError(t, err)
	require.Equal(t, string(bj), string(aj))
}

func TestPathsAnnotations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, whalePattern("btc", "BTCUSDT")))
	require.NoError(t, s.Upsert(ctx, whalePattern("eth", "ETHUSDT")))
	for i := 0; i < 10; i++ {
		_, err := s.RecordOutcome(ctx, "btc", 1.0, true)
		require.NoError(t, err)
		_, err = s.RecordOutcome(ctx, "eth", 1.0, true)
		require.NoError(t, err)
	}

	paths, err := s.Paths(ctx)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		require.True(t, p.Golden, "pair %s->%s", p.From, p.To)
		require.False(t, p.Blocked)
		require.Equal(t, 100.0, p.WinRate)
	}
}

func TestWritesAfterCloseRejected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "patterns.json")

	s, err := NewStore(NewFilePersister(path), logger.Nop(), nopMetrics{}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, whalePattern("p1", "BTCUSDT")))
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Upsert(ctx, whalePattern("p2", "ETHUSDT")), ErrClosed)
	_, err = s.RecordOutcome(ctx, "p1", 1.0, true)
	require.ErrorIs(t, err, ErrClosed)

	// the durable snapshot holds exactly what was written before Close
	loaded, err := NewFilePersister(path).Load(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "p1")
	require.NotContains(t, loaded, "p2")
}
