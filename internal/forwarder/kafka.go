package forwarder

import (
	"context"

	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/kafka"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// keyed is satisfied by every payload published on the bus; the key is
// the symbol, which pins a symbol's event chain to one partition.
type keyed interface {
	Key() string
}

// KafkaForwarder mirrors selected bus topics onto Kafka for external
// trading collaborators. Forwarding is best-effort: a broker outage is
// counted and logged but never disturbs in-process delivery.
type KafkaForwarder struct {
	producer *kafka.Producer
	bus      *bus.Bus
	log      *logger.Logger
	metrics  domrepo.Metrics
	prefix   string
}

func New(producer *kafka.Producer, b *bus.Bus, log *logger.Logger, metrics domrepo.Metrics, topicPrefix string) *KafkaForwarder {
	if topicPrefix == "" {
		topicPrefix = "whale"
	}
	return &KafkaForwarder{
		producer: producer,
		bus:      b,
		log:      log.With("kafka_forwarder"),
		metrics:  metrics,
		prefix:   topicPrefix,
	}
}

// Register subscribes the forwarder to every externally interesting
// topic.
func (f *KafkaForwarder) Register() {
	for _, topic := range []string{
		bus.TopicOrderbookAnalyzed,
		bus.TopicPatternClassified,
		bus.TopicBehaviorPredicted,
		bus.TopicShapeRecorded,
		bus.TopicWallAlert,
	} {
		f.bus.Subscribe(topic, f.forward)
	}
}

func (f *KafkaForwarder) forward(ctx context.Context, e bus.Envelope) {
	var key []byte
	if k, ok := e.Payload.(keyed); ok {
		key = []byte(k.Key())
	}

	topic := f.prefix + "." + e.Topic
	if err := f.producer.Publish(ctx, topic, key, e); err != nil {
		f.metrics.RecordError("kafka_forward")
		f.log.Warn("forward failed",
			logger.String("topic", topic),
			logger.Error(err),
		)
	}
}

// Close flushes the producer.
func (f *KafkaForwarder) Close() error {
	return f.producer.Close()
}
