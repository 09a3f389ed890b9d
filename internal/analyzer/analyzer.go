package analyzer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// Config carries the analyzer thresholds. The defaults are hand-tuned
// starting points; treat them as configuration, not ground truth.
type Config struct {
	PollInterval    time.Duration
	WallThreshold   float64 // notional above which a level is a wall
	AlertMultiplier float64 // wall alert at threshold x multiplier
	DepthLevels     int     // top-N levels summed into bid/ask depth
	LayeringLevels  int     // top-N levels scored for layering
	HistorySize     int
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.WallThreshold <= 0 {
		c.WallThreshold = 100_000
	}
	if c.AlertMultiplier <= 0 {
		c.AlertMultiplier = 5
	}
	if c.DepthLevels <= 0 {
		c.DepthLevels = 20
	}
	if c.LayeringLevels <= 0 {
		c.LayeringLevels = 12
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 100
	}
}

// Analyzer polls order-book snapshots per symbol, detects walls and a
// layering score, and publishes orderbook.analyzed events.
type Analyzer struct {
	client  domrepo.ExchangeClient
	bus     *bus.Bus
	log     *logger.Logger
	metrics domrepo.Metrics
	clock   clock.Clock
	cfg     Config

	mu   sync.Mutex
	hist map[string]*history

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(client domrepo.ExchangeClient, b *bus.Bus, log *logger.Logger, metrics domrepo.Metrics, clk clock.Clock, cfg Config) *Analyzer {
	cfg.applyDefaults()
	return &Analyzer{
		client:  client,
		bus:     b,
		log:     log.With("analyzer"),
		metrics: metrics,
		clock:   clk,
		cfg:     cfg,
		hist:    make(map[string]*history),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Analyze fetches, normalizes and scores the current order book for one
// symbol, publishes the analysis and appends it to the symbol history.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*models.OrderbookAnalysis, error) {
	start := a.clock.Now()

	raw, err := a.client.GetOrderbook(ctx, symbol)
	if err != nil {
		a.metrics.RecordError("fetch")
		return nil, fmt.Errorf("fetch orderbook %s: %w", symbol, err)
	}

	bids, err := NormalizeLevels(raw.Bids)
	if err != nil {
		a.metrics.RecordError("normalize")
		return nil, fmt.Errorf("normalize bids %s: %w", symbol, err)
	}
	asks, err := NormalizeLevels(raw.Asks)
	if err != nil {
		a.metrics.RecordError("normalize")
		return nil, fmt.Errorf("normalize asks %s: %w", symbol, err)
	}

	analysis := &models.OrderbookAnalysis{
		Symbol:        symbol,
		Exchange:      raw.Exchange,
		DetectedAt:    a.clock.Now().UTC(),
		Walls:         a.detectWalls(bids, asks),
		LayeringScore: a.layeringScore(bids, asks),
		BidDepth:      depth(bids, a.cfg.DepthLevels),
		AskDepth:      depth(asks, a.cfg.DepthLevels),
	}

	for _, w := range analysis.Walls {
		a.metrics.RecordWall(symbol, string(w.Side))
	}
	a.metrics.RecordLayering(symbol, analysis.LayeringScore)

	a.historyFor(symbol).append(analysis)

	a.bus.Publish(ctx, bus.TopicOrderbookAnalyzed, analysis)
	a.metrics.RecordEvent(bus.TopicOrderbookAnalyzed)

	if alert := a.alertWall(analysis); alert != nil {
		a.log.Warn("outsized wall",
			logger.String("symbol", symbol),
			logger.String("side", string(alert.Side)),
			logger.Float64("notional", alert.Notional),
		)
		a.bus.Publish(ctx, bus.TopicWallAlert, analysis)
		a.metrics.RecordEvent(bus.TopicWallAlert)
	}

	a.metrics.RecordLatency("analyze", a.clock.Since(start).Seconds())
	return analysis, nil
}

// Run polls every configured symbol once per interval until ctx is
// cancelled or Stop is called. The in-flight cycle always completes
// before Run returns, so ctx must outlive the cooperative stop; pass a
// context that is not cancelled as part of shutdown.
func (a *Analyzer) Run(ctx context.Context, symbols []string) {
	defer close(a.done)
	ticker := a.clock.Ticker(a.cfg.PollInterval)
	defer ticker.Stop()

	a.log.Info("poller started",
		logger.Strings("symbols", symbols),
		logger.Duration("interval", a.cfg.PollInterval),
	)
	for {
		select {
		case <-ctx.Done():
			a.log.Info("poller stopped")
			return
		case <-a.stop:
			a.log.Info("poller stopped")
			return
		case <-ticker.C:
			for _, sym := range symbols {
				if _, err := a.Analyze(ctx, sym); err != nil {
					// transient by taxonomy: log, skip this cycle for
					// this symbol, never publish a partial analysis
					a.log.Warn("cycle skipped", logger.String("symbol", sym), logger.Error(err))
				}
			}
		}
	}
}

// Stop asks the poller to return once the in-flight cycle completes
// and blocks until Run has exited. Callers close downstream consumers
// only after Stop returns.
func (a *Analyzer) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	<-a.done
}

// History returns up to n recent analyses for a symbol, oldest first.
func (a *Analyzer) History(symbol string, n int) []*models.OrderbookAnalysis {
	return a.historyFor(symbol).recent(n)
}

func (a *Analyzer) historyFor(symbol string) *history {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.hist[symbol]
	if !ok {
		h = newHistory(a.cfg.HistorySize)
		a.hist[symbol] = h
	}
	return h
}

func (a *Analyzer) detectWalls(bids, asks []models.Level) []models.Wall {
	walls := make([]models.Wall, 0, 4)
	for _, l := range bids {
		if n := l.Notional(); n >= a.cfg.WallThreshold {
			walls = append(walls, models.Wall{Price: l.Price, Size: l.Size, Notional: n, Side: models.SideBid})
		}
	}
	for _, l := range asks {
		if n := l.Notional(); n >= a.cfg.WallThreshold {
			walls = append(walls, models.Wall{Price: l.Price, Size: l.Size, Notional: n, Side: models.SideAsk})
		}
	}
	return walls
}

func (a *Analyzer) alertWall(analysis *models.OrderbookAnalysis) *models.Wall {
	limit := a.cfg.WallThreshold * a.cfg.AlertMultiplier
	for i := range analysis.Walls {
		if analysis.Walls[i].Notional > limit {
			return &analysis.Walls[i]
		}
	}
	return nil
}

// layeringScore rewards grid-like, evenly spaced, evenly sized order
// placement, independent of absolute price or size magnitude. Each side
// is scored as the average of a size-stability term and a
// spacing-regularity term; the overall score is the max of the sides.
func (a *Analyzer) layeringScore(bids, asks []models.Level) float64 {
	score := math.Max(
		sideLayering(bids, a.cfg.LayeringLevels),
		sideLayering(asks, a.cfg.LayeringLevels),
	)
	return clamp01(score)
}

func sideLayering(levels []models.Level, topN int) float64 {
	if len(levels) > topN {
		levels = levels[:topN]
	}
	if len(levels) < 3 {
		return 0
	}

	sizes := make([]float64, len(levels))
	for i, l := range levels {
		sizes[i] = l.Size
	}
	gaps := make([]float64, 0, len(levels)-1)
	for i := 1; i < len(levels); i++ {
		gaps = append(gaps, math.Abs(levels[i].Price-levels[i-1].Price))
	}

	sizeMean, sizeVar := meanVariance(sizes)
	gapMean, gapVar := meanVariance(gaps)
	if sizeMean == 0 || gapMean == 0 {
		return 0
	}

	stability := 1 / (1 + math.Sqrt(sizeVar)/sizeMean)
	regularity := 1 / (1 + math.Sqrt(gapVar)/gapMean)
	return (stability + regularity) / 2
}

func depth(levels []models.Level, topN int) float64 {
	if len(levels) > topN {
		levels = levels[:topN]
	}
	sum := 0.0
	for _, l := range levels {
		sum += l.Notional()
	}
	return sum
}

func meanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, variance
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
