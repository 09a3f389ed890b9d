package cache

import (
	"sync"
	"time"
)

type item struct {
	value    interface{}
	expireAt time.Time
}

func (i item) expired() bool {
	return !i.expireAt.IsZero() && time.Now().After(i.expireAt)
}

// Memory is a TTL cache for small hot lookups. Expired entries are
// dropped lazily on read and swept periodically.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]item
	maxSize int
	stop    chan struct{}
	once    sync.Once
}

// NewMemory creates an in-memory cache bounded at maxSize entries.
func NewMemory(maxSize int, sweepInterval time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	m := &Memory{
		data:    make(map[string]item),
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}
	go m.sweep(sweepInterval)
	return m
}

// Get returns the cached value, or false when absent or expired.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	it, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if it.expired() {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return nil, false
	}
	return it.value, true
}

// Set stores a value with a TTL; ttl <= 0 means no expiry.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	if len(m.data) >= m.maxSize {
		m.evictOne()
	}
	m.data[key] = item{value: value, expireAt: expireAt}
	m.mu.Unlock()
}

// Delete removes keys.
func (m *Memory) Delete(keys ...string) {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
}

// Close stops the sweeper.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

// evictOne removes an expired entry if one exists, otherwise an
// arbitrary one. Caller holds the write lock.
func (m *Memory) evictOne() {
	for k, it := range m.data {
		if it.expired() {
			delete(m.data, k)
			return
		}
	}
	for k := range m.data {
		delete(m.data, k)
		return
	}
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			for k, it := range m.data {
				if it.expired() {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
