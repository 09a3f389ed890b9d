package exchange

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// BinanceClient fetches spot order-book snapshots over REST. Requests
// are throttled client-side so a dense symbol set stays inside the
// venue's request-weight budget.
type BinanceClient struct {
	client  *binance.Client
	limiter *rate.Limiter
	log     *logger.Logger
	depth   int
	timeout time.Duration
}

type BinanceOption func(*BinanceClient)

func WithDepthLimit(limit int) BinanceOption {
	return func(c *BinanceClient) {
		if limit > 0 {
			c.depth = limit
		}
	}
}

func WithFetchTimeout(d time.Duration) BinanceOption {
	return func(c *BinanceClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRequestsPerSec(rps float64) BinanceOption {
	return func(c *BinanceClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func NewBinanceClient(log *logger.Logger, opts ...BinanceOption) *BinanceClient {
	c := &BinanceClient{
		client:  binance.NewClient("", ""),
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		log:     log.With("binance"),
		depth:   100,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrderbook fetches one depth snapshot. Levels are returned in the
// venue's native string-pair encoding; normalization happens in the
// analyzer.
func (c *BinanceClient) GetOrderbook(ctx context.Context, symbol string) (*models.RawOrderbook, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.client.NewDepthService().
		Symbol(symbol).
		Limit(c.depth).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("depth %s: %w", symbol, err)
	}
	c.log.Debug("depth snapshot fetched",
		logger.String("symbol", symbol),
		logger.Int("bids", len(res.Bids)),
		logger.Int("asks", len(res.Asks)),
		logger.Duration("took", time.Since(start)),
	)

	bids := make([]interface{}, len(res.Bids))
	for i, b := range res.Bids {
		bids[i] = []string{b.Price, b.Quantity}
	}
	asks := make([]interface{}, len(res.Asks))
	for i, a := range res.Asks {
		asks[i] = []string{a.Price, a.Quantity}
	}

	return &models.RawOrderbook{
		Symbol:     symbol,
		Exchange:   "binance",
		Bids:       bids,
		Asks:       asks,
		CapturedAt: time.Now().UTC(),
	}, nil
}

var _ domrepo.ExchangeClient = (*BinanceClient)(nil)
