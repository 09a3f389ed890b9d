package repository

import (
	"context"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

// ExchangeClient fetches the current order book for a symbol. Raw level
// encodings differ per venue and are normalized by the analyzer.
type ExchangeClient interface {
	GetOrderbook(ctx context.Context, symbol string) (*models.RawOrderbook, error)
}

// PatternStore is Pattern Memory: the append-forever shared store of
// learned patterns, keyed by pattern id. Implementations serialize all
// read/modify/write access internally; it is the pipeline's only shared
// synchronization point.
type PatternStore interface {
	// Upsert creates the pattern if absent and refreshes its condition
	// attributes if present. It never touches performance counters.
	Upsert(ctx context.Context, p *models.LearnedPattern) error
	Get(ctx context.Context, id string) (*models.LearnedPattern, error)
	// RecordOutcome folds one realized trade outcome into the pattern's
	// counters and persists the change.
	RecordOutcome(ctx context.Context, id string, profit float64, isWin bool) (*models.LearnedPattern, error)
	BySymbol(ctx context.Context, symbol string, ptype models.PatternType) ([]*models.LearnedPattern, error)
	ByType(ctx context.Context, ptype models.PatternType) ([]*models.LearnedPattern, error)
	Paths(ctx context.Context) ([]models.PathAnnotation, error)
	Flush(ctx context.Context) error
	Close() error
}

// TradeStats exposes historical trade liquidity per symbol, consumed by
// the market-context validator.
type TradeStats interface {
	TradeCount(ctx context.Context, symbol string) (int64, error)
}

// Metrics is the pipeline's observability sink.
type Metrics interface {
	RecordEvent(topic string)
	RecordError(kind string)
	RecordWall(symbol string, side string)
	RecordLayering(symbol string, score float64)
	RecordLatency(op string, seconds float64)
}
