package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

type fakeExchange struct {
	book *models.RawOrderbook
	err  error
}

func (f *fakeExchange) GetOrderbook(_ context.Context, _ string) (*models.RawOrderbook, error) {
	return f.book, f.err
}

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string)             {}
func (nopMetrics) RecordError(string)             {}
func (nopMetrics) RecordWall(string, string)      {}
func (nopMetrics) RecordLayering(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)  {}

func pairs(levels ...[2]float64) []interface{} {
	out := make([]interface{}, 0, len(levels))
	for _, l := range levels {
		out = append(out, []interface{}{l[0], l[1]})
	}
	return out
}

func newTestAnalyzer(book *models.RawOrderbook, err error) (*Analyzer, *bus.Bus) {
	b := bus.New(logger.Nop(), nil)
	a := New(&fakeExchange{book: book, err: err}, b, logger.Nop(), nopMetrics{}, clock.NewMock(), Config{})
	return a, b
}

func TestAnalyzeDetectsBidWall(t *testing.T) {
	book := &models.RawOrderbook{
		Symbol:   "BTCUSDT",
		Exchange: "binance",
		Bids:     pairs([2]float64{100, 2000}, [2]float64{99, 1}),
		Asks:     pairs([2]float64{101, 1}),
	}
	a, _ := newTestAnalyzer(book, nil)

	got, err := a.Analyze(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(got.Walls) != 1 {
		t.Fatalf("expected 1 wall, got %d", len(got.Walls))
	}
	w := got.Walls[0]
	if w.Side != models.SideBid || w.Notional != 200_000 {
		t.Fatalf("unexpected wall %+v", w)
	}
}

func TestAnalyzePublishesAlertForOutsizedWall(t *testing.T) {
	// 600k notional exceeds 5x the 100k threshold
	book := &models.RawOrderbook{
		Symbol: "BTCUSDT",
		Bids:   pairs([2]float64{100, 6000}),
	}
	a, b := newTestAnalyzer(book, nil)

	alerts := 0
	b.Subscribe(bus.TopicWallAlert, func(_ context.Context, _ bus.Envelope) { alerts++ })

	if _, err := a.Analyze(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if alerts != 1 {
		t.Fatalf("expected 1 alert, got %d", alerts)
	}
}

func TestAnalyzeFetchFailurePublishesNothing(t *testing.T) {
	a, b := newTestAnalyzer(nil, errors.New("venue down"))

	published := 0
	b.Subscribe(bus.TopicOrderbookAnalyzed, func(_ context.Context, _ bus.Envelope) { published++ })

	if _, err := a.Analyze(context.Background(), "BTCUSDT"); err == nil {
		t.Fatalf("expected error")
	}
	if published != 0 {
		t.Fatalf("partial analysis published on fetch failure")
	}
}

func TestLayeringScoreBoundsAndGridPreference(t *testing.T) {
	grid := make([]interface{}, 0, 12)
	for i := 0; i < 12; i++ {
		grid = append(grid, []interface{}{100.0 - float64(i)*0.5, 10.0})
	}
	ragged := pairs(
		[2]float64{100, 1}, [2]float64{99.9, 80}, [2]float64{97, 3},
		[2]float64{96.8, 40}, [2]float64{90, 7}, [2]float64{89.9, 200},
	)

	a, _ := newTestAnalyzer(&models.RawOrderbook{Bids: grid}, nil)
	gridScore := a.layeringScore(mustNormalize(t, grid), nil)
	raggedScore := a.layeringScore(mustNormalize(t, ragged), nil)

	for _, s := range []float64{gridScore, raggedScore} {
		if s < 0 || s > 1 {
			t.Fatalf("layering score out of [0,1]: %v", s)
		}
	}
	// perfect grid: zero size variance, perfectly regular spacing
	if gridScore != 1 {
		t.Fatalf("grid should score 1, got %v", gridScore)
	}
	if raggedScore >= gridScore {
		t.Fatalf("ragged book (%v) should score below grid (%v)", raggedScore, gridScore)
	}
}

func TestLayeringScoreTooFewLevels(t *testing.T) {
	a, _ := newTestAnalyzer(nil, nil)
	levels := []models.Level{{Price: 100, Size: 1}, {Price: 99, Size: 1}}
	if s := a.layeringScore(levels, nil); s != 0 {
		t.Fatalf("expected 0 for <3 levels, got %v", s)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	book := &models.RawOrderbook{Symbol: "ETHUSDT", Bids: pairs([2]float64{10, 1})}
	a, _ := newTestAnalyzer(book, nil)
	a.cfg.HistorySize = 5
	for i := 0; i < 20; i++ {
		if _, err := a.Analyze(context.Background(), "ETHUSDT"); err != nil {
			t.Fatalf("analyze: %v", err)
		}
	}
	if got := len(a.History("ETHUSDT", 100)); got != 5 {
		t.Fatalf("history not bounded: %d", got)
	}
}

func mustNormalize(t *testing.T, raw []interface{}) []models.Level {
	t.Helper()
	out, err := NormalizeLevels(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return out
}

// gatedExchange blocks the first fetch until released so a poll cycle
// can be held in flight; later fetches pass straight through.
type gatedExchange struct {
	entered chan struct{}
	release chan struct{}
	book    *models.RawOrderbook
	once    sync.Once
}

func (g *gatedExchange) GetOrderbook(_ context.Context, _ string) (*models.RawOrderbook, error) {
	g.once.Do(func() {
		g.entered <- struct{}{}
		<-g.release
	})
	return g.book, nil
}

func TestStopCompletesInFlightCycle(t *testing.T) {
	gate := &gatedExchange{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		book:    &models.RawOrderbook{Symbol: "BTCUSDT", Bids: pairs([2]float64{100, 1})},
	}
	b := bus.New(logger.Nop(), nil)
	mock := clock.NewMock()
	a := New(gate, b, logger.Nop(), nopMetrics{}, mock, Config{})

	var analyses int32
	b.Subscribe(bus.TopicOrderbookAnalyzed, func(_ context.Context, _ bus.Envelope) {
		atomic.AddInt32(&analyses, 1)
	})

	go a.Run(context.Background(), []string{"BTCUSDT"})

	// the mock ticker registers inside Run; nudge until a cycle starts
	started := false
	for i := 0; i < 100 && !started; i++ {
		mock.Add(a.cfg.PollInterval)
		select {
		case <-gate.entered:
			started = true
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !started {
		t.Fatal("poll cycle never started")
	}

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was still in flight")
	case <-time.After(50 * time.Millisecond):
	}
	if n := atomic.LoadInt32(&analyses); n != 0 {
		t.Fatalf("analysis published before the fetch was released: %d", n)
	}

	close(gate.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle completed")
	}
	if n := atomic.LoadInt32(&analyses); n < 1 {
		t.Fatalf("in-flight cycle was aborted: %d analyses", n)
	}
}
