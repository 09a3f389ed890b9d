package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// Topics carried by the bus. External collaborators subscribe to the
// exported ones; shape.detected is produced by the spectral extractor.
const (
	TopicOrderbookAnalyzed = "orderbook.analyzed"
	TopicPatternClassified = "pattern.classified"
	TopicBehaviorPredicted = "behavior.predicted"
	TopicShapeDetected     = "shape.detected"
	TopicShapeRecorded     = "shape.recorded"
	TopicWallAlert         = "orderbook.wall_alert"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	ID      string      `json:"id"`
	Topic   string      `json:"topic"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// Handler processes one delivered envelope. Delivery is synchronous in
// the publisher's goroutine; a panicking handler is isolated and does
// not abort delivery to the remaining handlers.
type Handler func(ctx context.Context, e Envelope)

// ErrorSink receives handler-isolation events; the prometheus recorder
// satisfies it.
type ErrorSink interface {
	RecordError(kind string)
}

// Bus is an in-process publish/subscribe transport. No persistence, no
// replay: a subscriber registered after a publish never sees it.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	errors   ErrorSink
}

func New(log *logger.Logger, errors ErrorSink) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log.With("bus"),
		errors:   errors,
	}
}

// Subscribe registers a handler for a topic. Handlers run in
// registration order.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], h)
	b.mu.Unlock()
}

// Publish delivers payload to every subscriber of topic, in order, in
// the calling goroutine. Ordering is guaranteed only within one topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) {
	b.mu.RLock()
	hs := b.handlers[topic]
	b.mu.RUnlock()

	if len(hs) == 0 {
		return
	}

	e := Envelope{
		ID:      uuid.NewString(),
		Topic:   topic,
		At:      time.Now().UTC(),
		Payload: payload,
	}
	for _, h := range hs {
		b.deliver(ctx, h, e)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panic",
				logger.String("topic", e.Topic),
				logger.Any("panic", r),
			)
			if b.errors != nil {
				b.errors.RecordError("subscriber_panic")
			}
		}
	}()
	h(ctx, e)
}
