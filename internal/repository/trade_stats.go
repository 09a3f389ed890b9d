package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/cache"
	pkgch "github.com/RA-CONSULTING/aureon-trading-sub008/pkg/clickhouse"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// CHTradeStats serves historical per-symbol trade counts from the
// ClickHouse tick table. Counts move slowly relative to the polling
// cadence, so results are cached with a TTL; stale entries also serve
// as a fallback while the warehouse is briefly unreachable.
type CHTradeStats struct {
	db    *sql.DB
	table string
	ttl   time.Duration
	log   *logger.Logger
	cache *cache.Memory
	stale *cache.Memory
}

func NewCHTradeStats(ch *pkgch.Client, table string, ttl time.Duration, log *logger.Logger) *CHTradeStats {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CHTradeStats{
		db:    ch.DB(),
		table: table,
		ttl:   ttl,
		log:   log.With("trade_stats"),
		cache: cache.NewMemory(10_000, time.Minute),
		stale: cache.NewMemory(10_000, 0),
	}
}

// TradeCount returns the historical trade count for one symbol.
func (s *CHTradeStats) TradeCount(ctx context.Context, symbol string) (int64, error) {
	if v, ok := s.cache.Get(symbol); ok {
		return v.(int64), nil
	}

	q := fmt.Sprintf("SELECT count() FROM %s WHERE symbol = ?", s.table)
	var count int64
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&count); err != nil {
		if v, ok := s.stale.Get(symbol); ok {
			s.log.Warn("trade count query failed, serving stale",
				logger.String("symbol", symbol),
				logger.Error(err),
			)
			return v.(int64), nil
		}
		return 0, fmt.Errorf("trade count %s: %w", symbol, err)
	}

	s.cache.Set(symbol, count, s.ttl)
	s.stale.Set(symbol, count, 0)
	return count, nil
}

// Close releases the cache sweepers.
func (s *CHTradeStats) Close() {
	s.cache.Close()
	s.stale.Close()
}

var _ domrepo.TradeStats = (*CHTradeStats)(nil)
