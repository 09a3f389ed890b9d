package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

const (
	defaultStreamURL = "wss://stream.binance.com:9443/stream"
	handshakeTimeout = 10 * time.Second
	readLimit        = 1 << 20
	pongWait         = 90 * time.Second
)

// ErrNoData is returned while the stream has not yet delivered a
// snapshot for the requested symbol.
var ErrNoData = errors.New("no stream data for symbol yet")

// StreamClient keeps a cache of partial-depth snapshots fed by the
// venue's combined websocket stream. GetOrderbook reads are served
// from the cache, so the analyzer's polling cadence is decoupled from
// the stream's push cadence.
type StreamClient struct {
	url          string
	symbols      []string
	depth        int
	maxReconnect time.Duration
	log          *logger.Logger

	mu    sync.RWMutex
	books map[string]*models.RawOrderbook
}

type StreamOption func(*StreamClient)

func WithStreamURL(url string) StreamOption {
	return func(c *StreamClient) {
		if url != "" {
			c.url = url
		}
	}
}

func WithStreamDepth(depth int) StreamOption {
	return func(c *StreamClient) {
		// the venue only serves 5/10/20 level partial streams
		switch {
		case depth <= 5:
			c.depth = 5
		case depth <= 10:
			c.depth = 10
		default:
			c.depth = 20
		}
	}
}

func WithMaxReconnectInterval(d time.Duration) StreamOption {
	return func(c *StreamClient) {
		if d > 0 {
			c.maxReconnect = d
		}
	}
}

func NewStreamClient(log *logger.Logger, symbols []string, opts ...StreamOption) *StreamClient {
	c := &StreamClient{
		url:          defaultStreamURL,
		symbols:      symbols,
		depth:        20,
		maxReconnect: 30 * time.Second,
		log:          log.With("depth_stream"),
		books:        make(map[string]*models.RawOrderbook),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrderbook serves the last snapshot pushed for the symbol.
func (c *StreamClient) GetOrderbook(_ context.Context, symbol string) (*models.RawOrderbook, error) {
	c.mu.RLock()
	book, ok := c.books[symbol]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return book, nil
}

// Run connects and consumes the stream until the context is cancelled,
// reconnecting with exponential backoff on any read failure.
func (c *StreamClient) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = c.maxReconnect
	bo.MaxElapsedTime = 0

	operation := func() error {
		if err := c.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Warn("stream dropped, reconnecting", logger.Error(err))
			return err
		}
		return backoff.Permanent(nil)
	}
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *StreamClient) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	c.log.Info("depth stream connected", logger.Strings("symbols", c.symbols))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.apply(payload); err != nil {
			c.log.Warn("unparseable stream frame", logger.Error(err))
		}
	}
}

func (c *StreamClient) streamURL() string {
	streams := make([]string, len(c.symbols))
	for i, s := range c.symbols {
		streams[i] = fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(s), c.depth)
	}
	return c.url + "?streams=" + strings.Join(streams, "/")
}

type combinedFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		LastUpdateID int64      `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
	} `json:"data"`
}

func (c *StreamClient) apply(payload []byte) error {
	var frame combinedFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	symbol, ok := symbolOf(frame.Stream)
	if !ok {
		return fmt.Errorf("unexpected stream name %q", frame.Stream)
	}

	bids := make([]interface{}, len(frame.Data.Bids))
	for i, b := range frame.Data.Bids {
		bids[i] = []string(b)
	}
	asks := make([]interface{}, len(frame.Data.Asks))
	for i, a := range frame.Data.Asks {
		asks[i] = []string(a)
	}

	book := &models.RawOrderbook{
		Symbol:     symbol,
		Exchange:   "binance",
		Bids:       bids,
		Asks:       asks,
		CapturedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.books[symbol] = book
	c.mu.Unlock()
	return nil
}

// symbolOf maps "btcusdt@depth20@100ms" back to "BTCUSDT".
func symbolOf(stream string) (string, bool) {
	name, _, ok := strings.Cut(stream, "@")
	if !ok || name == "" {
		return "", false
	}
	return strings.ToUpper(name), true
}

var _ domrepo.ExchangeClient = (*StreamClient)(nil)
