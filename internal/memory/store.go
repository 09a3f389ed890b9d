package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// ErrUnknownPattern marks an outcome arriving for a pattern id the
// store has never seen.
var ErrUnknownPattern = errors.New("memory: unknown pattern id")

// ErrClosed marks a write arriving after Close. Accepting it would
// silently skip the final flush, so writers get a hard error instead.
var ErrClosed = errors.New("memory: store closed")

// Persister is the durable backend behind the in-memory index. Save
// receives the full keyed record-set.
type Persister interface {
	Load(ctx context.Context) (map[string]*models.LearnedPattern, error)
	Save(ctx context.Context, patterns map[string]*models.LearnedPattern) error
	Close() error
}

// Store is Pattern Memory: append-forever, keyed by pattern id, shared
// by the mapper, the shape registry and the predictor. In-memory state
// is updated immediately under the lock; durability is provided by a
// batched async flush plus a final flush on shutdown.
type Store struct {
	mu       sync.RWMutex
	patterns map[string]*models.LearnedPattern
	dirty    bool
	closed   bool

	persister Persister
	log       *logger.Logger
	metrics   domrepo.Metrics
	interval  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func NewStore(p Persister, log *logger.Logger, metrics domrepo.Metrics, flushInterval time.Duration) (*Store, error) {
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	s := &Store{
		patterns:  make(map[string]*models.LearnedPattern),
		persister: p,
		log:       log.With("memory"),
		metrics:   metrics,
		interval:  flushInterval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	loaded, err := p.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load pattern memory: %w", err)
	}
	if loaded != nil {
		s.patterns = loaded
	}
	s.log.Info("pattern memory loaded", logger.Int("patterns", len(s.patterns)))

	go s.flushLoop()
	return s, nil
}

// Upsert creates the pattern if absent; an existing record only has its
// condition attributes refreshed. Performance counters are touched by
// RecordOutcome exclusively.
func (s *Store) Upsert(_ context.Context, p *models.LearnedPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: upsert %s", ErrClosed, p.ID)
	}

	existing, ok := s.patterns[p.ID]
	if !ok {
		s.patterns[p.ID] = p.Clone()
		s.dirty = true
		return nil
	}
	existing.Conditions = p.Clone().Conditions
	existing.LastUpdated = p.LastUpdated
	s.dirty = true
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.LearnedPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPattern, id)
	}
	return p.Clone(), nil
}

// RecordOutcome applies one realized trade outcome to the stored
// pattern. Outcomes commute: applying A then B equals B then A.
func (s *Store) RecordOutcome(_ context.Context, id string, profit float64, isWin bool) (*models.LearnedPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: outcome for %s", ErrClosed, id)
	}
	p, ok := s.patterns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPattern, id)
	}
	p.ApplyOutcome(profit, isWin, time.Now().UTC())
	s.dirty = true
	return p.Clone(), nil
}

func (s *Store) BySymbol(_ context.Context, symbol string, ptype models.PatternType) ([]*models.LearnedPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.LearnedPattern, 0, 8)
	for _, p := range s.patterns {
		if p.Symbol == symbol && (ptype == "" || p.Type == ptype) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *Store) ByType(_ context.Context, ptype models.PatternType) ([]*models.LearnedPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.LearnedPattern, 0, 16)
	for _, p := range s.patterns {
		if ptype == "" || p.Type == ptype {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// Flush writes the current record-set to the persistent backend.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	snapshot := make(map[string]*models.LearnedPattern, len(s.patterns))
	for id, p := range s.patterns {
		snapshot[id] = p.Clone()
	}
	s.mu.RUnlock()

	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.metrics.RecordError("memory_flush")
		return fmt.Errorf("flush pattern memory: %w", err)
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Close stops the flush loop, rejects further writes, performs a final
// durable flush and closes the backend. The process is safely stopped
// only after Close returns.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	err := s.Flush(context.Background())
	if cerr := s.persister.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Store) flushLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.RLock()
			dirty := s.dirty
			s.mu.RUnlock()
			if !dirty {
				continue
			}
			op := func() error { return s.Flush(context.Background()) }
			pol := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
			if err := backoff.Retry(op, pol); err != nil {
				s.log.Error("flush failed, will retry next interval", logger.Error(err))
			}
		}
	}
}
